package mock

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/livekit/livekit-capture/pkg/media"
)

func TestAccounting(t *testing.T) {
	f := New()
	p, err := f.NewPipeline("p")
	require.NoError(t, err)
	a, err := f.NewElement("fakesrc", "a")
	require.NoError(t, err)
	b, err := f.NewElement("fakesink", "b")
	require.NoError(t, err)
	require.Equal(t, []string{"element/a", "element/b", "pipeline/p"}, f.Live())
	require.Equal(t, "fakesrc", a.(*Element).Kind())

	require.NoError(t, p.Add(a))
	b.Release()
	// owned elements go with their pipeline
	a.Release()
	require.Equal(t, []string{"element/a", "pipeline/p"}, f.Live())

	bus := p.GetBus()
	require.Contains(t, f.Live(), "bus/p")
	bus.Release()
	p.Release()
	require.Empty(t, f.Live())
}

func TestFailures(t *testing.T) {
	errFail := errors.New("fail")
	f := New(
		WithElementFailure("b", errFail),
		WithLinkFailure("a", "c", errFail),
		WithStateFailure(media.StatePlaying, errFail),
		WithPropertyFailure("a", "location", errFail),
	)
	p, _ := f.NewPipeline("p")
	a, err := f.NewElement("fakesrc", "a")
	require.NoError(t, err)
	_, err = f.NewElement("fakesink", "b")
	require.ErrorIs(t, err, errFail)
	c, _ := f.NewElement("fakesink", "c")

	require.ErrorIs(t, a.SetProperty("location", "x"), errFail)
	require.NoError(t, a.SetProperty("num-buffers", 10))
	require.Equal(t, map[string]interface{}{"num-buffers": 10}, f.Properties("a"))

	require.ErrorIs(t, p.Link(a, c), errFail)
	require.NoError(t, p.Link(c, a))
	require.ErrorIs(t, p.SetState(media.StatePlaying), errFail)
	require.Equal(t, media.StateNull, p.(*Pipeline).State())
	require.NoError(t, p.SetState(media.StateNull))
	p.Release()
}

func TestPipelineFailure(t *testing.T) {
	errFail := errors.New("fail")
	f := New(WithPipelineFailure(errFail))
	_, err := f.NewPipeline("p")
	require.ErrorIs(t, err, errFail)
	require.Empty(t, f.Live())
	require.Len(t, f.CallsOf(OpNewPipeline), 1)
}

func TestBusFiltering(t *testing.T) {
	f := New(
		WithMessages(
			media.Message{Type: media.MessageWarning, Source: "a"},
			media.Message{Type: media.MessageEOS, Source: "b"},
		),
		WithMessageDelay(time.Millisecond),
	)
	p, _ := f.NewPipeline("p")
	require.NoError(t, p.SetState(media.StatePlaying))
	require.Equal(t, media.StatePlaying, p.(*Pipeline).State())

	bus := p.GetBus()
	msg := bus.Pop(media.MessageEOS | media.MessageError)
	require.NotNil(t, msg)
	require.Equal(t, media.MessageEOS, msg.Type)
	require.Equal(t, "b", msg.Source)

	bus.Release()
	p.Release()
	require.Nil(t, bus.Pop(media.MessageEOS))
}
