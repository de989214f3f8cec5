// Package mock is an in-memory media.Framework. It records every call, keeps
// count of outstanding handles and can be told to fail at any step.
package mock

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/livekit/livekit-capture/pkg/media"
)

const (
	OpInit           = "init"
	OpNewPipeline    = "new-pipeline"
	OpNewElement     = "new-element"
	OpSetProperty    = "set-property"
	OpAdd            = "add"
	OpLink           = "link"
	OpSetState       = "set-state"
	OpSendEOS        = "send-eos"
	OpGetBus         = "get-bus"
	OpPop            = "bus-pop"
	OpReleaseBus     = "release-bus"
	OpReleaseElement = "release-element"
	OpRelease        = "release-pipeline"
)

type Call struct {
	Op   string
	Args []string
}

func (c Call) String() string {
	if len(c.Args) == 0 {
		return c.Op
	}
	return c.Op + " " + strings.Join(c.Args, " ")
}

type Option func(*Framework)

func WithPipelineFailure(err error) Option {
	return func(f *Framework) { f.failPipeline = err }
}

// WithElementFailure makes NewElement fail for the element with this name.
func WithElementFailure(name string, err error) Option {
	return func(f *Framework) { f.failElements[name] = err }
}

func WithPropertyFailure(name, key string, err error) Option {
	return func(f *Framework) { f.failProperties[name+"."+key] = err }
}

func WithAddFailure(err error) Option {
	return func(f *Framework) { f.failAdd = err }
}

func WithLinkFailure(src, sink string, err error) Option {
	return func(f *Framework) { f.failLinks[src+"->"+sink] = err }
}

func WithStateFailure(state media.State, err error) Option {
	return func(f *Framework) { f.failStates[state] = err }
}

// WithMessages scripts the messages the pipeline posts once it is PLAYING.
// A state-changed message is always posted first.
func WithMessages(msgs ...media.Message) Option {
	return func(f *Framework) { f.script = append(f.script, msgs...) }
}

// WithMessageDelay spaces scripted messages out in time.
func WithMessageDelay(d time.Duration) Option {
	return func(f *Framework) { f.delay = d }
}

// WithoutFiltering makes Pop ignore its mask, as a misbehaving framework would.
func WithoutFiltering() Option {
	return func(f *Framework) { f.unfiltered = true }
}

type Framework struct {
	mu    sync.Mutex
	calls []Call
	live  map[string]int

	failElements   map[string]error
	failProperties map[string]error
	failLinks      map[string]error
	failStates     map[media.State]error
	failAdd        error
	failPipeline   error

	script     []media.Message
	delay      time.Duration
	unfiltered bool

	properties map[string]map[string]interface{}
}

func New(opts ...Option) *Framework {
	f := &Framework{
		live:           make(map[string]int),
		failElements:   make(map[string]error),
		failProperties: make(map[string]error),
		failLinks:      make(map[string]error),
		failStates:     make(map[media.State]error),
		properties:     make(map[string]map[string]interface{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Framework) record(op string, args ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Op: op, Args: args})
}

func (f *Framework) acquire(handle string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.live[handle]++
}

func (f *Framework) release(handle string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.live[handle] > 0 {
		f.live[handle]--
	}
}

// Calls returns every recorded call, in order.
func (f *Framework) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsOf returns the recorded calls of one kind, in order.
func (f *Framework) CallsOf(op string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Live lists handles that were acquired and never released.
func (f *Framework) Live() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for handle, n := range f.live {
		if n > 0 {
			out = append(out, handle)
		}
	}
	sort.Strings(out)
	return out
}

func (f *Framework) Properties(element string) map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]interface{}, len(f.properties[element]))
	for k, v := range f.properties[element] {
		out[k] = v
	}
	return out
}

func (f *Framework) Init() {
	f.record(OpInit)
}

func (f *Framework) NewPipeline(name string) (media.Pipeline, error) {
	f.record(OpNewPipeline, name)
	if f.failPipeline != nil {
		return nil, f.failPipeline
	}
	f.acquire("pipeline/" + name)
	return &Pipeline{
		fw:   f,
		name: name,
		bus:  make(chan media.Message, len(f.script)+16),
		done: make(chan struct{}),
	}, nil
}

func (f *Framework) NewElement(kind, name string) (media.Element, error) {
	f.record(OpNewElement, kind, name)
	if err := f.failElements[name]; err != nil {
		return nil, err
	}
	f.acquire("element/" + name)
	return &Element{fw: f, kind: kind, name: name}, nil
}

type Element struct {
	fw    *Framework
	kind  string
	name  string
	owner *Pipeline
}

func (e *Element) Name() string { return e.name }

func (e *Element) Kind() string { return e.kind }

func (e *Element) SetProperty(key string, value interface{}) error {
	e.fw.record(OpSetProperty, e.name, key, fmt.Sprint(value))
	if err := e.fw.failProperties[e.name+"."+key]; err != nil {
		return err
	}
	e.fw.mu.Lock()
	defer e.fw.mu.Unlock()
	if e.fw.properties[e.name] == nil {
		e.fw.properties[e.name] = make(map[string]interface{})
	}
	e.fw.properties[e.name][key] = value
	return nil
}

func (e *Element) Release() {
	e.fw.record(OpReleaseElement, e.name)
	if e.owner != nil {
		return
	}
	e.fw.release("element/" + e.name)
}

type Pipeline struct {
	fw       *Framework
	name     string
	elements []*Element
	state    media.State

	bus      chan media.Message
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
	released bool
}

func (p *Pipeline) Name() string { return p.name }

func (p *Pipeline) State() media.State { return p.state }

func (p *Pipeline) Add(elements ...media.Element) error {
	names := make([]string, 0, len(elements))
	for _, e := range elements {
		names = append(names, e.Name())
	}
	p.fw.record(OpAdd, names...)
	if p.fw.failAdd != nil {
		return p.fw.failAdd
	}
	for _, e := range elements {
		el, ok := e.(*Element)
		if !ok {
			return fmt.Errorf("foreign element %s", e.Name())
		}
		el.owner = p
		p.elements = append(p.elements, el)
	}
	return nil
}

func (p *Pipeline) Link(src, sink media.Element) error {
	p.fw.record(OpLink, src.Name(), sink.Name())
	return p.fw.failLinks[src.Name()+"->"+sink.Name()]
}

func (p *Pipeline) SetState(state media.State) error {
	p.fw.record(OpSetState, state.String())
	if err := p.fw.failStates[state]; err != nil {
		return err
	}
	old := p.state
	p.state = state
	if state == media.StatePlaying && old != media.StatePlaying {
		p.post(media.Message{Type: media.MessageStateChanged, Source: p.name})
		p.playScript()
	}
	return nil
}

func (p *Pipeline) playScript() {
	if p.fw.delay == 0 {
		for _, msg := range p.fw.script {
			p.post(msg)
		}
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for _, msg := range p.fw.script {
			select {
			case <-time.After(p.fw.delay):
				p.post(msg)
			case <-p.done:
				return
			}
		}
	}()
}

func (p *Pipeline) post(msg media.Message) {
	select {
	case p.bus <- msg:
	case <-p.done:
	}
}

func (p *Pipeline) SendEOS() error {
	p.fw.record(OpSendEOS)
	p.post(media.Message{Type: media.MessageEOS, Source: p.name})
	return nil
}

func (p *Pipeline) GetBus() media.Bus {
	p.fw.record(OpGetBus)
	p.fw.acquire("bus/" + p.name)
	return &Bus{pipeline: p}
}

func (p *Pipeline) Release() {
	p.fw.record(OpRelease, p.name)
	if p.released {
		return
	}
	p.released = true
	p.once.Do(func() { close(p.done) })
	p.wg.Wait()
	for _, e := range p.elements {
		p.fw.release("element/" + e.name)
	}
	p.fw.release("pipeline/" + p.name)
}

type Bus struct {
	pipeline *Pipeline
}

func (b *Bus) Pop(mask media.MessageType) *media.Message {
	b.pipeline.fw.record(OpPop)
	for {
		select {
		case msg := <-b.pipeline.bus:
			if msg.Type&mask != 0 || (b.pipeline.fw.unfiltered && msg.Type != media.MessageStateChanged) {
				return &msg
			}
		case <-b.pipeline.done:
			return nil
		}
	}
}

func (b *Bus) Release() {
	b.pipeline.fw.record(OpReleaseBus)
	b.pipeline.fw.release("bus/" + b.pipeline.name)
}
