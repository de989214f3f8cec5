package pipeline

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/livekit/protocol/logger"

	"github.com/livekit/livekit-capture/pkg/media"
)

type Option func(*Pipeline)

// WithOutput redirects the diagnostic lines normally written to
// os.Stdout and os.Stderr.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(p *Pipeline) {
		p.report.stdout = stdout
		p.report.stderr = stderr
	}
}

func WithStages(stages []Stage) Option {
	return func(p *Pipeline) {
		p.stages = stages
	}
}

// Pipeline runs one capture: build, link, play, wait for EOS or an error,
// tear down. A Pipeline is single use.
type Pipeline struct {
	fw     media.Framework
	stages []Stage
	report reporter

	stop     chan struct{}
	stopOnce sync.Once
}

func New(fw media.Framework, opts ...Option) *Pipeline {
	p := &Pipeline{
		fw:     fw,
		stages: DefaultStages(),
		report: reporter{stdout: os.Stdout, stderr: os.Stderr},
		stop:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run blocks until the pipeline posts EOS or an error. It returns nil on EOS.
// Cancelling ctx, like Close, asks the sources for EOS so the file is
// finalized; Run still returns only once the bus says so.
func (p *Pipeline) Run(ctx context.Context) error {
	p.fw.Init()

	pipeline, elements, buildErr := p.build()
	if buildErr != nil {
		p.report.creationFailed(buildErr)
		logger.Errorw("could not build pipeline", buildErr)
		return buildErr
	}

	if err := p.link(pipeline, elements); err != nil {
		p.report.linkFailed(err)
		logger.Errorw("could not link pipeline", err)
		pipeline.Release()
		return err
	}

	if err := pipeline.SetState(media.StatePlaying); err != nil {
		p.report.startFailed()
		logger.Errorw("could not start pipeline", err)
		pipeline.Release()
		return &StartError{Err: err}
	}
	name := pipeline.Name()
	logger.Infow("pipeline playing", "pipeline", name)

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.watchStop(ctx, pipeline, done)
	}()

	bus := pipeline.GetBus()
	msg := bus.Pop(media.MessageError | media.MessageEOS)
	close(done)
	wg.Wait()

	err := p.handleMessage(msg)

	bus.Release()
	if stateErr := pipeline.SetState(media.StateNull); stateErr != nil {
		logger.Warnw("could not stop pipeline", stateErr)
	}
	pipeline.Release()
	logger.Debugw("pipeline released", "pipeline", name)

	return err
}

// Close requests a graceful end of the capture. Safe to call more than once
// and before Run.
func (p *Pipeline) Close() {
	p.stopOnce.Do(func() {
		close(p.stop)
	})
}

func (p *Pipeline) build() (media.Pipeline, []media.Element, *CreationError) {
	pipeline, err := p.fw.NewPipeline(PipelineName)
	if err != nil {
		return nil, nil, &CreationError{Kind: "pipeline", Name: PipelineName, Err: err}
	}

	elements := make([]media.Element, 0, len(p.stages))
	release := func() {
		for _, e := range elements {
			e.Release()
		}
		pipeline.Release()
	}

	for _, stage := range p.stages {
		e, err := p.fw.NewElement(stage.Kind, stage.Name)
		if err != nil {
			release()
			return nil, nil, &CreationError{Kind: stage.Kind, Name: stage.Name, Err: err}
		}
		elements = append(elements, e)
	}

	for i, stage := range p.stages {
		for _, prop := range stage.Properties {
			if err := elements[i].SetProperty(prop.Key, prop.Value); err != nil {
				release()
				return nil, nil, &CreationError{Kind: stage.Kind, Name: stage.Name, Err: err}
			}
		}
	}

	// elements must be added to pipeline before linking
	if err := pipeline.Add(elements...); err != nil {
		release()
		return nil, nil, &CreationError{Kind: "pipeline", Name: PipelineName, Err: err}
	}

	return pipeline, elements, nil
}

// link connects neighbours in order and stops at the first failure.
func (p *Pipeline) link(pipeline media.Pipeline, elements []media.Element) *LinkError {
	for i := 1; i < len(elements); i++ {
		src, sink := elements[i-1], elements[i]
		if err := pipeline.Link(src, sink); err != nil {
			return &LinkError{Src: src.Name(), Sink: sink.Name(), Err: err}
		}
	}
	return nil
}

func (p *Pipeline) watchStop(ctx context.Context, pipeline media.Pipeline, done <-chan struct{}) {
	select {
	case <-done:
		return
	case <-ctx.Done():
		logger.Infow("capture cancelled, ending stream", "reason", ctx.Err())
	case <-p.stop:
		logger.Infow("capture stop requested, ending stream")
	}

	if err := pipeline.SendEOS(); err != nil {
		logger.Warnw("could not send EOS", err)
	}
}

func (p *Pipeline) handleMessage(msg *media.Message) error {
	if msg == nil {
		logger.Warnw("bus returned without a message", nil)
		return ErrBusFlushed
	}

	switch msg.Type {
	case media.MessageError:
		err := &RuntimeError{Source: msg.Source, Message: msg.Error, Debug: msg.Debug}
		p.report.runtimeError(err)
		logger.Errorw("message error", err, "debug", msg.Debug)
		return err
	case media.MessageEOS:
		p.report.endOfStream()
		logger.Infow("EOS received")
		return nil
	default:
		p.report.unexpected()
		logger.Warnw("unexpected message", nil, "type", msg.Type.String(), "source", msg.Source)
		return ErrUnexpectedMessage
	}
}
