// Package api exposes the curation service over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/curador/internal/metrics"
	"github.com/kalambet/curador/internal/pipeline"
	"github.com/kalambet/curador/internal/storage"
)

const maxRequestBodySize = 32 << 20 // 32MB

// VectorDeleter removes indexed vectors when a knowledge document is deleted.
type VectorDeleter interface {
	Delete(ctx context.Context, collection string, id string) error
}

// Deps holds the handler dependencies.
type Deps struct {
	Curator   *pipeline.Curator
	Extractor pipeline.TextExtractor
	Store     *storage.Store // optional; nil disables the knowledge routes
	Vectors   VectorDeleter  // optional; if nil, vector cleanup is skipped on delete
	Metrics   *metrics.Metrics

	Version    string
	Collection string
	// Token guards the knowledge routes. Empty leaves them open.
	Token string
}

// NewHandler returns the service router.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", handleRoot(deps))
	r.Get("/health", handleHealth)
	r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	r.Post("/curadoria", handleCurate(deps))
	r.Post("/curate", handleCurate(deps))
	r.Post("/categorize", handleCategorize(deps))

	if deps.Store != nil {
		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(deps.Token))
			r.Post("/knowledge", handleAddKnowledge(deps))
			r.Get("/knowledge", handleListKnowledge(deps))
			r.Get("/knowledge/{id}", handleGetKnowledge(deps))
			r.Delete("/knowledge/{id}", handleDeleteKnowledge(deps))
		})
	}

	return r
}

// ServiceInfo is the descriptor served on GET /.
type ServiceInfo struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Service   string `json:"service"`
	Model     string `json:"model"`
	Partition string `json:"partition"`
}

func handleRoot(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		eng := deps.Curator.Engine()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(ServiceInfo{
			Status:    "online",
			Version:   deps.Version,
			Service:   eng.Backend(),
			Model:     eng.Model(),
			Partition: deps.Curator.Partition().Name,
		})
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
