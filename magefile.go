//go:build mage
// +build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var Default = Build

// compile the capture binary (requires GStreamer development headers)
func Build() error {
	return sh.RunV("go", "build", "-o", "bin/capture-video", "./cmd/capture-video")
}

// run unit tests against the in-memory media framework
func Test() error {
	return sh.RunV("go", "test", "-tags", "test", "-race", "./...")
}

// build a binary that runs without GStreamer installed
func BuildTest() error {
	mg.Deps(Test)
	return sh.RunV("go", "build", "-tags", "test", "-o", "bin/capture-video-test", "./cmd/capture-video")
}
