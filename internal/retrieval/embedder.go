package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// TextEmbedder turns text into a vector.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ModelEmbedder is a backend that embeds with a named model, such as the
// Ollama client.
type ModelEmbedder interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// Embedder binds a ModelEmbedder to one model.
type Embedder struct {
	backend ModelEmbedder
	model   string
}

// NewEmbedder creates an Embedder for model.
func NewEmbedder(backend ModelEmbedder, model string) *Embedder {
	return &Embedder{backend: backend, model: model}
}

// Model returns the embedding model name.
func (e *Embedder) Model() string { return e.model }

// Embed returns the embedding vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.backend.Embed(ctx, e.model, text)
	if err != nil {
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	return vec, nil
}

// EmbedBatch embeds texts concurrently, keeping input order. Returns nil for
// empty input.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.backend.Embed(gCtx, e.model, text)
			if err != nil {
				return fmt.Errorf("embedding text %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
