package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/livekit/livekit-capture/pkg/media/gstreamer"
	"github.com/livekit/livekit-capture/pkg/messaging"
	"github.com/livekit/livekit-capture/pkg/recorder"
	"github.com/livekit/livekit-capture/pkg/service"
)

func runCapture(c *cli.Context) error {
	conf, err := getConfig(c)
	if err != nil {
		return err
	}

	initLogger(conf.LogLevel)

	rec, err := recorder.NewRecorder(conf, gstreamer.New())
	if err != nil {
		return err
	}

	ctx, stop := signalContext(syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if !conf.RedisEnabled() {
		rec.Run(ctx)
		return nil
	}

	bus, err := messaging.NewMessageBus(conf)
	if err != nil {
		return err
	}

	_, err = service.NewService(rec, bus).Run(ctx)
	return err
}

// signalContext is cancelled by the first signal, which ends the stream so
// mp4mux can write its index. Signals are then released, so a second one
// kills the process if EOS never arrives.
func signalContext(signals ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), signals...)
	go func() {
		<-ctx.Done()
		stop()
	}()
	return ctx, stop
}
