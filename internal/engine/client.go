package engine

import (
	"context"
	"fmt"

	"github.com/kalambet/curador/internal/proxy"
)

// Completer is the transport capability Client needs.
type Completer interface {
	Complete(ctx context.Context, req proxy.ChatRequest) (string, error)
	ListModels(ctx context.Context) ([]proxy.Model, error)
}

// Client is the Engine over an OpenAI-compatible transport.
type Client struct {
	backend string
	model   string
	api     Completer
}

// NewClient returns an engine sending requests for model through api.
func NewClient(backend, model string, api Completer) *Client {
	return &Client{backend: backend, model: model, api: api}
}

func (c *Client) Backend() string { return c.backend }
func (c *Client) Model() string   { return c.model }

// Generate sends the exchange at temperature 0. Failures are wrapped as
// *GenerationError and never retried.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	cr := proxy.ChatRequest{
		Model: c.model,
		Messages: []proxy.Message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Temperature: 0,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		cr.ResponseFormat = &proxy.ResponseFormat{Type: "json_object"}
	}

	out, err := c.api.Complete(ctx, cr)
	if err != nil {
		return "", &GenerationError{Backend: c.backend, Model: c.model, Cause: err}
	}
	return out, nil
}

// Ping lists the backend's models.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("%s backend unreachable: %w", c.backend, err)
	}
	return nil
}

// HasModel reports whether the backend lists the configured model.
func (c *Client) HasModel(ctx context.Context) (bool, error) {
	models, err := c.api.ListModels(ctx)
	if err != nil {
		return false, err
	}
	for _, m := range models {
		if m.ID == c.model {
			return true, nil
		}
	}
	return false, nil
}
