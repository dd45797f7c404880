package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/curador/internal/document"
	"github.com/kalambet/curador/internal/ingest"
	"github.com/kalambet/curador/internal/retrieval"
	"github.com/kalambet/curador/internal/storage"
)

// KnowledgeRequest is a reference document submitted to the knowledge base.
// The body comes from Text, or from EncodedContent decoded per ContentType.
type KnowledgeRequest struct {
	Title          string `json:"title"`
	Summary        string `json:"summary"`
	Conclusion     string `json:"conclusion"`
	Text           string `json:"text"`
	EncodedContent string `json:"encoded_content"`
	ContentType    string `json:"content_type"`
	Source         string `json:"source"`
	Collection     string `json:"collection"`
}

func handleAddKnowledge(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req KnowledgeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		body := req.Text
		if req.EncodedContent != "" {
			if deps.Extractor == nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "encoded content is not accepted by this server")
				return
			}
			kind, err := document.ParseKind(req.ContentType)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
			doc, err := deps.Extractor.Extract(req.EncodedContent, kind)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
				return
			}
			body = doc.Text
		}

		collection := strings.TrimSpace(req.Collection)
		if collection == "" {
			collection = deps.Collection
		}
		source := req.Source
		if source == "" {
			source = "api"
		}

		doc, err := ingest.Enqueue(deps.Store, storage.KnowledgeDoc{
			Collection: collection,
			Title:      req.Title,
			Summary:    req.Summary,
			Conclusion: req.Conclusion,
			Body:       body,
			Source:     source,
		})
		if errors.Is(err, ingest.ErrNoContent) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to queue document: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{
			"id":     doc.ID,
			"status": doc.Status,
		})
	}
}

func handleListKnowledge(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)
		collection := r.URL.Query().Get("collection")
		if collection == "" {
			collection = deps.Collection
		}

		docs, err := deps.Store.ListKnowledgeDocs(collection, limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list knowledge docs: %v", err)
			return
		}

		if docs == nil {
			docs = []storage.KnowledgeDoc{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(docs)
	}
}

func handleGetKnowledge(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := deps.Store.GetKnowledgeDoc(chi.URLParam(r, "id"))
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "knowledge doc not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get knowledge doc: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(doc)
	}
}

func handleDeleteKnowledge(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		doc, err := deps.Store.GetKnowledgeDoc(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "knowledge doc not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get knowledge doc: %v", err)
			return
		}

		if deps.Vectors != nil && doc.VectorID != "" {
			err := deps.Vectors.Delete(r.Context(), doc.Collection, doc.VectorID)
			if err != nil && !errors.Is(err, retrieval.ErrRecordNotFound) {
				slog.Warn("knowledge.vector_delete_failed", "doc_id", id, "vector_id", doc.VectorID, "error", err)
			}
		}

		if err := deps.Store.DeleteKnowledgeDoc(id); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				httpError(w, http.StatusNotFound, "not_found", "knowledge doc not found")
				return
			}
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete knowledge doc: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "deleted"})
	}
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
