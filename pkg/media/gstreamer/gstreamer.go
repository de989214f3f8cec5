//go:build !test
// +build !test

// Package gstreamer implements media.Framework on top of go-gst.
package gstreamer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/livekit/protocol/logger"
	"github.com/tinyzimmer/go-glib/glib"
	"github.com/tinyzimmer/go-gst/gst"

	"github.com/livekit/livekit-capture/pkg/media"
)

var (
	ErrForeignElement = errors.New("element was not created by gstreamer framework")
	ErrEventRejected  = errors.New("pipeline rejected event")

	initOnce sync.Once
)

type Framework struct{}

func New() media.Framework {
	return &Framework{}
}

// gst.Init needs to be called before using gst but after gst package loads
func (f *Framework) Init() {
	initOnce.Do(func() {
		gst.Init(nil)
	})
}

func (f *Framework) NewPipeline(name string) (media.Pipeline, error) {
	p, err := gst.NewPipeline(name)
	if err != nil {
		return nil, err
	}
	return &Pipeline{pipeline: p}, nil
}

func (f *Framework) NewElement(kind, name string) (media.Element, error) {
	e, err := gst.NewElementWithName(kind, name)
	if err != nil {
		return nil, err
	}
	return &Element{element: e}, nil
}

// go-gst drops its references through finalizers, so Release only
// forgets ours.
type Element struct {
	element *gst.Element
}

func (e *Element) Name() string {
	return e.element.GetName()
}

func (e *Element) SetProperty(key string, value interface{}) error {
	return e.element.SetProperty(key, value)
}

func (e *Element) Release() {
	e.element = nil
}

type Pipeline struct {
	pipeline *gst.Pipeline
}

func (p *Pipeline) Name() string {
	return p.pipeline.GetName()
}

func (p *Pipeline) Add(elements ...media.Element) error {
	gstElements := make([]*gst.Element, 0, len(elements))
	for _, e := range elements {
		el, err := unwrap(e)
		if err != nil {
			return err
		}
		gstElements = append(gstElements, el)
	}
	return p.pipeline.AddMany(gstElements...)
}

func (p *Pipeline) Link(src, sink media.Element) error {
	srcElement, err := unwrap(src)
	if err != nil {
		return err
	}
	sinkElement, err := unwrap(sink)
	if err != nil {
		return err
	}
	return srcElement.Link(sinkElement)
}

func (p *Pipeline) SetState(state media.State) error {
	switch state {
	case media.StatePlaying:
		return p.pipeline.SetState(gst.StatePlaying)
	case media.StateNull:
		return p.pipeline.SetState(gst.StateNull)
	default:
		return fmt.Errorf("unsupported state %s", state)
	}
}

func (p *Pipeline) SendEOS() error {
	logger.Debugw("sending EOS to pipeline")
	if !p.pipeline.SendEvent(gst.NewEOSEvent()) {
		return ErrEventRejected
	}
	return nil
}

func (p *Pipeline) GetBus() media.Bus {
	return &Bus{bus: p.pipeline.GetPipelineBus()}
}

func (p *Pipeline) Release() {
	p.pipeline = nil
}

type Bus struct {
	bus *gst.Bus
}

// Pop iterates a main loop until the watch sees a message in mask.
func (b *Bus) Pop(mask media.MessageType) *media.Message {
	var result *media.Message

	loop := glib.NewMainLoop(glib.MainContextDefault(), false)
	b.bus.AddWatch(func(msg *gst.Message) bool {
		m := convert(msg)
		if m.Type&mask == 0 {
			logger.Debugw("bus message", "type", msg.Type(), "source", msg.Source())
			return true
		}
		result = m
		loop.Quit()
		return false
	})

	// Block and iterate on the main loop
	loop.Run()
	return result
}

func (b *Bus) Release() {
	b.bus = nil
}

func convert(msg *gst.Message) *media.Message {
	m := &media.Message{Source: msg.Source()}
	switch msg.Type() {
	case gst.MessageEOS:
		m.Type = media.MessageEOS
	case gst.MessageError:
		m.Type = media.MessageError
		if gErr := msg.ParseError(); gErr != nil {
			m.Error = gErr.Error()
			m.Debug = gErr.DebugString()
		}
	case gst.MessageStateChanged:
		m.Type = media.MessageStateChanged
	case gst.MessageWarning:
		m.Type = media.MessageWarning
	default:
		m.Type = media.MessageInfo
	}
	return m
}

func unwrap(e media.Element) (*gst.Element, error) {
	el, ok := e.(*Element)
	if !ok || el.element == nil {
		return nil, ErrForeignElement
	}
	return el.element, nil
}
