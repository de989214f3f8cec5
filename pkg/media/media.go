// Package media describes the capabilities a capture pipeline needs from a
// media framework. The production implementation lives in media/gstreamer,
// an in-memory one for tests in media/mock.
package media

import "fmt"

type State int

const (
	StateNull State = iota
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateNull:
		return "NULL"
	case StatePlaying:
		return "PLAYING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MessageType is a bit mask so that several kinds can be waited on at once.
type MessageType uint

const (
	MessageEOS MessageType = 1 << iota
	MessageError
	MessageStateChanged
	MessageWarning
	MessageInfo
)

func (t MessageType) String() string {
	switch t {
	case MessageEOS:
		return "eos"
	case MessageError:
		return "error"
	case MessageStateChanged:
		return "state-changed"
	case MessageWarning:
		return "warning"
	case MessageInfo:
		return "info"
	default:
		return fmt.Sprintf("MessageType(%d)", uint(t))
	}
}

// Message is a bus message copied out of the framework.
// Error and Debug are only set for MessageError; Debug may be empty.
type Message struct {
	Type   MessageType
	Source string
	Error  string
	Debug  string
}

type Framework interface {
	// Init performs process-wide setup. Safe to call more than once.
	Init()
	NewPipeline(name string) (Pipeline, error)
	NewElement(kind, name string) (Element, error)
}

type Element interface {
	Name() string
	SetProperty(key string, value interface{}) error
	// Release drops an element that was never handed to a pipeline.
	Release()
}

type Pipeline interface {
	Name() string
	// Add transfers ownership of the elements to the pipeline.
	Add(elements ...Element) error
	Link(src, sink Element) error
	SetState(state State) error
	// SendEOS injects an end-of-stream event at the sources.
	SendEOS() error
	GetBus() Bus
	// Release releases the pipeline and every element it owns.
	Release()
}

type Bus interface {
	// Pop blocks until a message matching mask is posted and returns it.
	// Other messages are discarded. There is no timeout.
	Pop(mask MessageType) *Message
	Release()
}
