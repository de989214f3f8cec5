package pipeline

import (
	"fmt"
	"io"
)

const noDebugInfo = "none"

type reporter struct {
	stdout io.Writer
	stderr io.Writer
}

func (r *reporter) creationFailed(err *CreationError) {
	fmt.Fprintf(r.stderr, "error: could not create element %s (%s): %v\n", err.Name, err.Kind, err.Err)
}

func (r *reporter) linkFailed(err *LinkError) {
	fmt.Fprintf(r.stderr, "link error: %s -> %s\n", err.Src, err.Sink)
}

func (r *reporter) startFailed() {
	fmt.Fprintln(r.stderr, "error: could not start the pipeline")
}

func (r *reporter) runtimeError(err *RuntimeError) {
	debug := err.Debug
	if debug == "" {
		debug = noDebugInfo
	}
	fmt.Fprintf(r.stderr, "error from element %s: %s\n", err.Source, err.Message)
	fmt.Fprintf(r.stderr, "debug info: %s\n", debug)
}

func (r *reporter) endOfStream() {
	fmt.Fprintln(r.stdout, "end of stream reached")
}

func (r *reporter) unexpected() {
	fmt.Fprintln(r.stderr, "unexpected message received")
}
