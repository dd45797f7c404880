package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable means no generation backend is configured.
	ErrUnavailable = errors.New("generation backend unavailable")

	// ErrGeneration marks a failed call to a configured backend.
	ErrGeneration = errors.New("generation failed")

	// ErrMalformedOutput marks model output that is not a usable JSON object.
	ErrMalformedOutput = errors.New("malformed model output")
)

// GenerationError wraps a transport or backend failure.
type GenerationError struct {
	Backend string
	Model   string
	Cause   error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s (%s/%s): %v", ErrGeneration, e.Backend, e.Model, e.Cause)
}

func (e *GenerationError) Unwrap() []error { return []error{ErrGeneration, e.Cause} }

// MalformedOutputError carries the start of the offending model output.
type MalformedOutputError struct {
	Prefix string
	Cause  error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("%s: %v (output starts %q)", ErrMalformedOutput, e.Cause, e.Prefix)
}

func (e *MalformedOutputError) Unwrap() []error { return []error{ErrMalformedOutput, e.Cause} }
