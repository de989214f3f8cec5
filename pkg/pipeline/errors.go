package pipeline

import (
	"errors"
	"fmt"
)

var (
	ErrCreation          = errors.New("could not create pipeline elements")
	ErrLink              = errors.New("could not link pipeline elements")
	ErrStart             = errors.New("could not start pipeline")
	ErrRuntime           = errors.New("pipeline error")
	ErrBusFlushed        = errors.New("bus returned no message")
	ErrUnexpectedMessage = errors.New("unexpected bus message")
)

// CreationError reports an element (or the pipeline itself) that could not be
// instantiated, configured or added to the pipeline.
type CreationError struct {
	Kind string
	Name string
	Err  error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("could not create element %s (%s): %v", e.Name, e.Kind, e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }

func (e *CreationError) Is(target error) bool { return target == ErrCreation }

type LinkError struct {
	Src  string
	Sink string
	Err  error
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("link error: %s -> %s: %v", e.Src, e.Sink, e.Err)
}

func (e *LinkError) Unwrap() error { return e.Err }

func (e *LinkError) Is(target error) bool { return target == ErrLink }

type StartError struct {
	Err error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("could not start pipeline: %v", e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

func (e *StartError) Is(target error) bool { return target == ErrStart }

// RuntimeError is an error message posted on the bus by a running element.
type RuntimeError struct {
	Source  string
	Message string
	Debug   string
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("error from element %s: %s", e.Source, e.Message)
}

func (e *RuntimeError) Is(target error) bool { return target == ErrRuntime }
