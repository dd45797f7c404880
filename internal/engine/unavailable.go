package engine

import (
	"context"
	"fmt"
)

// Unavailable is the engine used when no backend could be configured. Every
// call fails with ErrUnavailable.
type Unavailable struct {
	backend string
	model   string
	reason  string
}

// NewUnavailable returns an engine that explains why generation is off.
func NewUnavailable(backend, model, reason string) *Unavailable {
	return &Unavailable{backend: backend, model: model, reason: reason}
}

func (u *Unavailable) Backend() string { return u.backend }
func (u *Unavailable) Model() string   { return u.model }

// Reason describes the configuration problem.
func (u *Unavailable) Reason() string { return u.reason }

func (u *Unavailable) Generate(context.Context, Request) (string, error) {
	return "", u.err()
}

func (u *Unavailable) Ping(context.Context) error { return u.err() }

func (u *Unavailable) err() error {
	return fmt.Errorf("%w: %s", ErrUnavailable, u.reason)
}
