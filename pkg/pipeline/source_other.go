//go:build !linux && !windows
// +build !linux,!windows

package pipeline

// autovideosrc picks whatever capture element the platform registers
// (avfvideosrc on macOS).
const CameraSourceKind = "autovideosrc"
