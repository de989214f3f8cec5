//go:build test
// +build test

package gstreamer

import (
	"time"

	"github.com/livekit/livekit-capture/pkg/media"
	"github.com/livekit/livekit-capture/pkg/media/mock"
)

// New returns an in-memory framework that ends the stream after three seconds.
func New() media.Framework {
	return mock.New(
		mock.WithMessages(media.Message{Type: media.MessageEOS, Source: "sink"}),
		mock.WithMessageDelay(time.Second*3),
	)
}
