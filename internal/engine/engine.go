// Package engine abstracts the text-generation backend. The cloud and local
// backends both speak the OpenAI chat/completions protocol and differ only in
// base URL, credentials and model.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kalambet/curador/internal/proxy"
)

// Backend names accepted by New.
const (
	BackendCloud = "cloud"
	BackendLocal = "local"
)

// Engine generates completions for composed prompts.
type Engine interface {
	// Generate sends one system+user exchange and returns the raw model text.
	Generate(ctx context.Context, req Request) (string, error)

	// Backend names the configured backend ("cloud", "local").
	Backend() string

	// Model returns the model identifier requests are sent to.
	Model() string

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}

// Request is a single generation call. Temperature is always zero.
type Request struct {
	System    string
	User      string
	MaxTokens int
	JSON      bool
}

// Options selects and configures a backend.
type Options struct {
	Backend           string
	BaseURL           string
	APIKey            string
	Model             string
	Timeout           time.Duration
	RequestsPerMinute int
}

// New builds the engine for opts.Backend. Configuration problems do not fail
// construction: they yield an Unavailable engine so the service can still
// start and report 503 on generation.
func New(opts Options) Engine {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	switch backend {
	case BackendCloud:
		if opts.APIKey == "" {
			return NewUnavailable(backend, opts.Model, "cloud backend requires an API key")
		}
	case BackendLocal:
	default:
		return NewUnavailable(backend, opts.Model, fmt.Sprintf("unknown generation backend %q", opts.Backend))
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		return NewUnavailable(backend, opts.Model, backend+" backend has no base URL")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return NewUnavailable(backend, opts.Model, backend+" backend has no model")
	}

	pc := proxy.NewClient(opts.APIKey, opts.BaseURL,
		proxy.WithTimeout(opts.Timeout),
		proxy.WithRequestsPerMinute(opts.RequestsPerMinute),
	)
	return NewClient(backend, opts.Model, pc)
}
