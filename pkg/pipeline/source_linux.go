//go:build linux
// +build linux

package pipeline

const CameraSourceKind = "v4l2src"
