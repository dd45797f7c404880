// Package ingest indexes knowledge base documents in the background: queued
// documents are embedded and written to the vector store.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kalambet/curador/internal/retrieval"
	"github.com/kalambet/curador/internal/storage"
)

// JobType is the queue job type the worker consumes.
const JobType = "kb_index"

// maxEmbedChars bounds the text sent to the embedding model.
const maxEmbedChars = 8000

// JobStore abstracts the job queue and document bookkeeping.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) (bool, error)
	GetKnowledgeDoc(id string) (storage.KnowledgeDoc, error)
	MarkKnowledgeDocIndexed(id, vectorID string) error
	MarkKnowledgeDocFailed(id, errMsg string) error
}

// ContentEmbedder generates embeddings for text.
type ContentEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorInserter inserts records into the vector store.
type VectorInserter interface {
	Insert(ctx context.Context, collection string, records []retrieval.Record) error
}

// Observer is notified of each finished job. outcome is "indexed", "retry" or "failed".
type Observer func(outcome string)

// Worker processes kb_index jobs from the SQLite job queue.
type Worker struct {
	store    JobStore
	embedder ContentEmbedder
	vectors  VectorInserter
	poll     time.Duration
	observe  Observer
	logger   *slog.Logger
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, embedder ContentEmbedder, vectors VectorInserter, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:    store,
		embedder: embedder,
		vectors:  vectors,
		poll:     pollInterval,
		observe:  func(string) {},
		logger:   slog.Default(),
	}
}

// SetObserver installs a job outcome callback.
func (w *Worker) SetObserver(o Observer) {
	if o != nil {
		w.observe = o
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("ingest.iteration_failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job. It reports whether a job was
// processed, regardless of its success.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobType})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	p, err := w.processJob(ctx, job)
	if err != nil {
		w.logger.Warn("ingest.job_failed", "job_id", job.ID, "doc_id", p.DocID, "error", err)
		terminal, failErr := w.store.FailJob(job.ID, err.Error())
		if failErr != nil {
			w.logger.Error("ingest.fail_job", "job_id", job.ID, "error", failErr)
			return true, nil
		}
		if !terminal {
			w.observe("retry")
			return true, nil
		}
		w.observe("failed")
		if p.DocID != "" {
			if err := w.store.MarkKnowledgeDocFailed(p.DocID, err.Error()); err != nil {
				w.logger.Error("ingest.mark_failed", "doc_id", p.DocID, "error", err)
			}
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	w.observe("indexed")
	return true, nil
}

type indexPayload struct {
	DocID string `json:"doc_id"`
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) (indexPayload, error) {
	var p indexPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
		return p, fmt.Errorf("parsing payload: %w", err)
	}

	doc, err := w.store.GetKnowledgeDoc(p.DocID)
	if err != nil {
		return p, fmt.Errorf("loading knowledge doc %s: %w", p.DocID, err)
	}

	text := IndexText(doc)
	if text == "" {
		return p, fmt.Errorf("knowledge doc %s has no text", doc.ID)
	}

	vec, err := w.embedder.Embed(ctx, text)
	if err != nil {
		return p, fmt.Errorf("embedding content: %w", err)
	}

	rec := retrieval.Record{
		ID:       uuid.NewString(),
		SourceID: doc.ID,
		Payload: retrieval.Payload{
			Title:      doc.Title,
			Summary:    doc.Summary,
			Conclusion: doc.Conclusion,
			Text:       doc.Body,
		},
		Embedding: vec,
		CreatedAt: time.Now().UTC(),
	}
	if err := w.vectors.Insert(ctx, doc.Collection, []retrieval.Record{rec}); err != nil {
		return p, fmt.Errorf("inserting vector: %w", err)
	}

	if err := w.store.MarkKnowledgeDocIndexed(doc.ID, rec.ID); err != nil {
		return p, fmt.Errorf("updating vector_id: %w", err)
	}
	w.logger.Debug("ingest.indexed", "doc_id", doc.ID, "vector_id", rec.ID, "collection", doc.Collection)
	return p, nil
}

// IndexText is the text embedded for doc: its descriptive fields followed by
// the body, bounded in length.
func IndexText(doc storage.KnowledgeDoc) string {
	var parts []string
	for _, f := range []string{doc.Title, doc.Summary, doc.Conclusion, doc.Body} {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, f)
		}
	}
	text := strings.Join(parts, "\n\n")
	if r := []rune(text); len(r) > maxEmbedChars {
		text = string(r[:maxEmbedChars])
	}
	return text
}
