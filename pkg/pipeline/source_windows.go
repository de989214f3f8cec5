//go:build windows
// +build windows

package pipeline

const CameraSourceKind = "dshowvideosrc"
