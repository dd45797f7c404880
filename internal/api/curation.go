package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kalambet/curador/internal/document"
	"github.com/kalambet/curador/internal/engine"
	"github.com/kalambet/curador/internal/pipeline"
)

func handleCurate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeCurationRequest(w, r)
		if !ok {
			return
		}

		values, err := deps.Curator.Curate(r.Context(), req)
		if err != nil {
			writePipelineError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(values)
	}
}

func handleCategorize(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := decodeCurationRequest(w, r)
		if !ok {
			return
		}

		res, err := deps.Curator.Categorize(r.Context(), req)
		if err != nil {
			writePipelineError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(res)
	}
}

func decodeCurationRequest(w http.ResponseWriter, r *http.Request) (pipeline.Request, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()

	var req pipeline.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return req, false
	}
	// An empty encoded_content is an empty document; the short-text guard
	// decides its outcome.
	if req.ContentType == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "content_type is required")
		return req, false
	}
	return req, true
}

// statusFor maps a pipeline error to an HTTP status and error type.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, pipeline.ErrInsufficientText),
		errors.Is(err, document.ErrDecode),
		errors.Is(err, document.ErrExtraction):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, engine.ErrUnavailable):
		return http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, engine.ErrMalformedOutput):
		return http.StatusInternalServerError, "api_error"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, engine.ErrGeneration):
		return http.StatusBadGateway, "api_error"
	default:
		return http.StatusInternalServerError, "api_error"
	}
}

func writePipelineError(w http.ResponseWriter, err error) {
	code, errType := statusFor(err)
	if code >= http.StatusInternalServerError {
		slog.Error("request failed", "status", code, "error", err)
	}
	httpError(w, code, errType, "%v", err)
}
