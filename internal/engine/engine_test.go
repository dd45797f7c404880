package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/kalambet/curador/internal/proxy"
)

func TestNew_Selection(t *testing.T) {
	tests := []struct {
		name            string
		opts            Options
		wantUnavailable bool
	}{
		{"cloud with key", Options{Backend: "cloud", BaseURL: "https://api.groq.com/openai/v1", APIKey: "k", Model: "llama-3.1-8b-instant"}, false},
		{"cloud without key", Options{Backend: "cloud", BaseURL: "https://api.groq.com/openai/v1", Model: "llama-3.1-8b-instant"}, true},
		{"local without key", Options{Backend: "local", BaseURL: "http://127.0.0.1:11434/v1", Model: "llama3.1:8b"}, false},
		{"case insensitive", Options{Backend: " Local ", BaseURL: "http://127.0.0.1:11434/v1", Model: "llama3.1:8b"}, false},
		{"unknown backend", Options{Backend: "mlx", BaseURL: "http://x", Model: "m"}, true},
		{"empty base url", Options{Backend: "local", Model: "m"}, true},
		{"empty model", Options{Backend: "local", BaseURL: "http://x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.opts)
			_, isUnavailable := e.(*Unavailable)
			if isUnavailable != tt.wantUnavailable {
				t.Errorf("New(%+v) = %T, unavailable want %v", tt.opts, e, tt.wantUnavailable)
			}
		})
	}
}

func TestUnavailable_Generate(t *testing.T) {
	e := New(Options{Backend: "cloud", Model: "llama-3.1-8b-instant"})
	_, err := e.Generate(context.Background(), Request{System: "s", User: "u"})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if e.Backend() != "cloud" || e.Model() != "llama-3.1-8b-instant" {
		t.Errorf("descriptor = %s/%s", e.Backend(), e.Model())
	}
}

func TestClient_GenerateJSON(t *testing.T) {
	fc := &fakeCompleter{reply: `{"a":"b"}`}
	c := NewClient(BackendCloud, "llama-3.1-8b-instant", fc)

	out, err := c.Generate(context.Background(), Request{System: "sys", User: "usr", MaxTokens: 4000, JSON: true})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != `{"a":"b"}` {
		t.Errorf("out = %q", out)
	}

	if len(fc.got) != 1 {
		t.Fatalf("calls = %d, want 1", len(fc.got))
	}
	req := fc.got[0]
	if req.Model != "llama-3.1-8b-instant" || req.Temperature != 0 || req.MaxTokens != 4000 {
		t.Errorf("request = %+v", req)
	}
	if req.ResponseFormat == nil || req.ResponseFormat.Type != "json_object" {
		t.Errorf("ResponseFormat = %+v, want json_object", req.ResponseFormat)
	}
	if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "usr" {
		t.Errorf("Messages = %+v", req.Messages)
	}
}

func TestClient_GeneratePlain(t *testing.T) {
	fc := &fakeCompleter{reply: "solos"}
	c := NewClient(BackendLocal, "llama3.1:8b", fc)

	if _, err := c.Generate(context.Background(), Request{System: "s", User: "u", MaxTokens: 50}); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if fc.got[0].ResponseFormat != nil {
		t.Error("ResponseFormat set without JSON mode")
	}
}

func TestClient_GenerateError(t *testing.T) {
	cause := &proxy.StatusError{Code: 429, Body: "slow down"}
	fc := &fakeCompleter{err: cause}
	c := NewClient(BackendCloud, "m", fc)

	_, err := c.Generate(context.Background(), Request{})
	if !errors.Is(err, ErrGeneration) {
		t.Errorf("err = %v, want ErrGeneration", err)
	}
	var se *proxy.StatusError
	if !errors.As(err, &se) || se.Code != 429 {
		t.Errorf("err = %v, want wrapped StatusError", err)
	}
	var ge *GenerationError
	if !errors.As(err, &ge) || ge.Backend != BackendCloud {
		t.Errorf("err = %v, want *GenerationError for cloud", err)
	}
	if len(fc.got) != 1 {
		t.Errorf("calls = %d, want 1 (no retries)", len(fc.got))
	}
}

func TestClient_GenerateCancelled(t *testing.T) {
	fc := &fakeCompleter{err: context.Canceled}
	_, err := NewClient(BackendLocal, "m", fc).Generate(context.Background(), Request{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled in chain", err)
	}
}
