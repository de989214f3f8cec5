package pipeline

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/livekit/protocol/logger"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/livekit/livekit-capture/pkg/media"
	"github.com/livekit/livekit-capture/pkg/media/mock"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var (
	eos       = media.Message{Type: media.MessageEOS, Source: "sink"}
	errDevice = errors.New("no such device")
)

func run(t *testing.T, ctx context.Context, fw *mock.Framework) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := New(fw, WithOutput(&stdout, &stderr)).Run(ctx)
	return stdout.String(), stderr.String(), err
}

func linkPairs(fw *mock.Framework) []string {
	var pairs []string
	for _, c := range fw.CallsOf(mock.OpLink) {
		pairs = append(pairs, c.Args[0]+"->"+c.Args[1])
	}
	return pairs
}

func TestEndOfStream(t *testing.T) {
	fw := mock.New(mock.WithMessages(eos))

	stdout, stderr, err := run(t, context.Background(), fw)
	require.NoError(t, err)
	require.Equal(t, "end of stream reached\n", stdout)
	require.Empty(t, stderr)

	require.Equal(t, []string{
		"source->convert",
		"convert->encoder",
		"encoder->parser",
		"parser->muxer",
		"muxer->sink",
	}, linkPairs(fw))

	states := fw.CallsOf(mock.OpSetState)
	require.Len(t, states, 2)
	require.Equal(t, "PLAYING", states[0].Args[0])
	require.Equal(t, "NULL", states[1].Args[0])

	require.Len(t, fw.CallsOf(mock.OpInit), 1)
	require.Empty(t, fw.Live())
}

func TestStageConfiguration(t *testing.T) {
	fw := mock.New(mock.WithMessages(eos))

	_, _, err := run(t, context.Background(), fw)
	require.NoError(t, err)

	created := fw.CallsOf(mock.OpNewElement)
	require.Len(t, created, 6)
	require.Equal(t, []string{CameraSourceKind, "source"}, created[0].Args)
	require.Equal(t, []string{"nvh264enc", "encoder"}, created[2].Args)
	require.Equal(t, []string{"filesink", "sink"}, created[5].Args)

	require.Equal(t, uint(4000), fw.Properties("encoder")["bitrate"])
	require.Equal(t, "output.mp4", fw.Properties("sink")["location"])

	adds := fw.CallsOf(mock.OpAdd)
	require.Len(t, adds, 1)
	require.Equal(t, []string{"source", "convert", "encoder", "parser", "muxer", "sink"}, adds[0].Args)
}

func TestTeardownOrder(t *testing.T) {
	fw := mock.New(mock.WithMessages(eos))

	_, _, err := run(t, context.Background(), fw)
	require.NoError(t, err)

	var tail []string
	for _, c := range fw.Calls() {
		switch c.Op {
		case mock.OpReleaseBus, mock.OpSetState, mock.OpRelease:
			tail = append(tail, c.String())
		}
	}
	require.Equal(t, []string{
		"set-state PLAYING",
		"release-bus",
		"set-state NULL",
		"release-pipeline " + PipelineName,
	}, tail)
}

func TestReleaseLogged(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger.SetLogger(zapr.NewLogger(zap.New(core)), "capture")
	defer logger.SetLogger(logr.Discard(), "capture")

	_, _, err := run(t, context.Background(), mock.New(mock.WithMessages(eos)))
	require.NoError(t, err)

	released := logs.FilterMessage("pipeline released").All()
	require.Len(t, released, 1)
	require.Equal(t, PipelineName, released[0].ContextMap()["pipeline"])
}

func TestCreationFailure(t *testing.T) {
	for _, stage := range DefaultStages() {
		t.Run(stage.Name, func(t *testing.T) {
			fw := mock.New(
				mock.WithElementFailure(stage.Name, errDevice),
				mock.WithMessages(eos),
			)

			stdout, stderr, err := run(t, context.Background(), fw)
			require.ErrorIs(t, err, ErrCreation)
			require.ErrorIs(t, err, errDevice)

			var creationErr *CreationError
			require.True(t, errors.As(err, &creationErr))
			require.Equal(t, stage.Name, creationErr.Name)
			require.Equal(t, stage.Kind, creationErr.Kind)

			require.Empty(t, stdout)
			require.Contains(t, stderr, "could not create element "+stage.Name)

			require.Empty(t, fw.CallsOf(mock.OpAdd))
			require.Empty(t, fw.CallsOf(mock.OpLink))
			require.Empty(t, fw.CallsOf(mock.OpSetState))
			require.Empty(t, fw.CallsOf(mock.OpGetBus))
			require.Empty(t, fw.Live())
		})
	}
}

func TestEncoderMissing(t *testing.T) {
	fw := mock.New(mock.WithElementFailure("encoder", errors.New("no element \"nvh264enc\"")))

	_, stderr, err := run(t, context.Background(), fw)
	require.ErrorIs(t, err, ErrCreation)
	require.Equal(t, "error: could not create element encoder (nvh264enc): no element \"nvh264enc\"\n", stderr)

	// nothing after the encoder is requested
	require.Len(t, fw.CallsOf(mock.OpNewElement), 3)
	require.Len(t, fw.CallsOf(mock.OpReleaseElement), 2)
	require.Len(t, fw.CallsOf(mock.OpRelease), 1)
	require.Empty(t, fw.Live())
}

func TestPipelineCreationFailure(t *testing.T) {
	fw := mock.New(mock.WithPipelineFailure(errDevice))

	stdout, stderr, err := run(t, context.Background(), fw)
	require.ErrorIs(t, err, ErrCreation)
	require.ErrorIs(t, err, errDevice)

	var creationErr *CreationError
	require.True(t, errors.As(err, &creationErr))
	require.Equal(t, PipelineName, creationErr.Name)

	require.Empty(t, stdout)
	require.Contains(t, stderr, "could not create element "+PipelineName)
	require.Empty(t, fw.CallsOf(mock.OpNewElement))
	require.Empty(t, fw.CallsOf(mock.OpRelease))
	require.Empty(t, fw.Live())
}

func TestPropertyFailure(t *testing.T) {
	fw := mock.New(mock.WithPropertyFailure("encoder", "bitrate", errDevice))

	_, _, err := run(t, context.Background(), fw)
	require.ErrorIs(t, err, ErrCreation)
	require.Empty(t, fw.CallsOf(mock.OpAdd))
	require.Empty(t, fw.CallsOf(mock.OpLink))
	require.Empty(t, fw.Live())
}

func TestAddFailure(t *testing.T) {
	fw := mock.New(mock.WithAddFailure(errDevice))

	_, _, err := run(t, context.Background(), fw)
	require.ErrorIs(t, err, ErrCreation)
	require.Empty(t, fw.CallsOf(mock.OpLink))
	require.Empty(t, fw.CallsOf(mock.OpSetState))
	require.Empty(t, fw.Live())
}

func TestLinkFailure(t *testing.T) {
	stages := DefaultStages()
	for i := 1; i < len(stages); i++ {
		src, sink := stages[i-1].Name, stages[i].Name
		t.Run(src+"->"+sink, func(t *testing.T) {
			fw := mock.New(
				mock.WithLinkFailure(src, sink, errDevice),
				mock.WithMessages(eos),
			)

			stdout, stderr, err := run(t, context.Background(), fw)
			require.ErrorIs(t, err, ErrLink)

			var linkErr *LinkError
			require.True(t, errors.As(err, &linkErr))
			require.Equal(t, src, linkErr.Src)
			require.Equal(t, sink, linkErr.Sink)

			require.Empty(t, stdout)
			require.Equal(t, "link error: "+src+" -> "+sink+"\n", stderr)

			// links after the failing one are never attempted
			require.Len(t, fw.CallsOf(mock.OpLink), i)
			require.Empty(t, fw.CallsOf(mock.OpSetState))
			require.Empty(t, fw.CallsOf(mock.OpGetBus))
			require.Empty(t, fw.Live())
		})
	}
}

func TestConvertEncoderLinkFailure(t *testing.T) {
	fw := mock.New(mock.WithLinkFailure("convert", "encoder", errDevice))

	_, stderr, err := run(t, context.Background(), fw)
	require.ErrorIs(t, err, ErrLink)
	require.Contains(t, stderr, "convert")
	require.Contains(t, stderr, "encoder")
	require.Equal(t, []string{"source->convert", "convert->encoder"}, linkPairs(fw))
}

func TestStartFailure(t *testing.T) {
	fw := mock.New(mock.WithStateFailure(media.StatePlaying, errDevice))

	stdout, stderr, err := run(t, context.Background(), fw)
	require.ErrorIs(t, err, ErrStart)
	require.ErrorIs(t, err, errDevice)
	require.Empty(t, stdout)
	require.Equal(t, "error: could not start the pipeline\n", stderr)

	require.Len(t, fw.CallsOf(mock.OpLink), 5)
	require.Empty(t, fw.CallsOf(mock.OpGetBus))
	require.Empty(t, fw.CallsOf(mock.OpPop))
	require.Empty(t, fw.Live())
}

func TestRuntimeError(t *testing.T) {
	fw := mock.New(mock.WithMessages(media.Message{
		Type:   media.MessageError,
		Source: "encoder",
		Error:  "device busy",
	}))

	stdout, stderr, err := run(t, context.Background(), fw)
	require.ErrorIs(t, err, ErrRuntime)

	var runtimeErr *RuntimeError
	require.True(t, errors.As(err, &runtimeErr))
	require.Equal(t, "encoder", runtimeErr.Source)
	require.Equal(t, "device busy", runtimeErr.Message)

	require.Empty(t, stdout)
	require.Equal(t, "error from element encoder: device busy\ndebug info: none\n", stderr)
	require.Empty(t, fw.Live())
}

func TestRuntimeErrorDebug(t *testing.T) {
	fw := mock.New(mock.WithMessages(media.Message{
		Type:   media.MessageError,
		Source: "source",
		Error:  "Could not read from resource.",
		Debug:  "gstv4l2src.c(1092): poll error",
	}))

	_, stderr, err := run(t, context.Background(), fw)
	require.ErrorIs(t, err, ErrRuntime)
	require.Contains(t, stderr, "debug info: gstv4l2src.c(1092): poll error\n")
}

func TestOnlyFirstTerminalMessage(t *testing.T) {
	fw := mock.New(mock.WithMessages(
		media.Message{Type: media.MessageWarning, Source: "muxer"},
		eos,
		media.Message{Type: media.MessageError, Source: "encoder", Error: "late"},
	))

	stdout, stderr, err := run(t, context.Background(), fw)
	require.NoError(t, err)
	require.Equal(t, "end of stream reached\n", stdout)
	require.Empty(t, stderr)
	require.Len(t, fw.CallsOf(mock.OpPop), 1)
}

func TestUnexpectedMessage(t *testing.T) {
	fw := mock.New(
		mock.WithoutFiltering(),
		mock.WithMessages(media.Message{Type: media.MessageWarning, Source: "muxer"}),
	)

	_, stderr, err := run(t, context.Background(), fw)
	require.ErrorIs(t, err, ErrUnexpectedMessage)
	require.Equal(t, "unexpected message received\n", stderr)
	require.Empty(t, fw.Live())
}

func TestContextCancel(t *testing.T) {
	// no scripted terminal message: only the EOS sent on cancel ends the wait
	fw := mock.New(mock.WithMessages(media.Message{Type: media.MessageWarning, Source: "source"}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	stdout, _, err := run(t, ctx, fw)
	require.NoError(t, err)
	require.Equal(t, "end of stream reached\n", stdout)
	require.Len(t, fw.CallsOf(mock.OpSendEOS), 1)
	require.Empty(t, fw.Live())
}

func TestClose(t *testing.T) {
	fw := mock.New(
		mock.WithMessages(eos),
		mock.WithMessageDelay(time.Minute),
	)

	var stdout bytes.Buffer
	p := New(fw, WithOutput(&stdout, &bytes.Buffer{}))
	go func() {
		time.Sleep(50 * time.Millisecond)
		p.Close()
		p.Close()
	}()

	require.NoError(t, p.Run(context.Background()))
	require.Equal(t, "end of stream reached\n", stdout.String())
	require.Len(t, fw.CallsOf(mock.OpSendEOS), 1)
	require.Empty(t, fw.Live())
}

func TestNoEOSWithoutStop(t *testing.T) {
	fw := mock.New(mock.WithMessages(eos))

	_, _, err := run(t, context.Background(), fw)
	require.NoError(t, err)
	require.Empty(t, fw.CallsOf(mock.OpSendEOS))
}
