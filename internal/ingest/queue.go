package ingest

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kalambet/curador/internal/storage"
)

// ErrNoContent is returned by Enqueue for documents without any text.
var ErrNoContent = errors.New("knowledge document has no title, summary, conclusion or text")

// Queuer persists documents and jobs.
type Queuer interface {
	SaveKnowledgeDoc(doc storage.KnowledgeDoc) error
	EnqueueJob(job storage.Job) error
}

// Enqueue stores doc as queued and schedules its indexing. The document ID is
// generated when empty. The saved document is returned.
func Enqueue(q Queuer, doc storage.KnowledgeDoc) (storage.KnowledgeDoc, error) {
	if IndexText(doc) == "" {
		return storage.KnowledgeDoc{}, ErrNoContent
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	doc.Status = storage.DocQueued

	if err := q.SaveKnowledgeDoc(doc); err != nil {
		return storage.KnowledgeDoc{}, err
	}

	payload, err := json.Marshal(indexPayload{DocID: doc.ID})
	if err != nil {
		return storage.KnowledgeDoc{}, err
	}
	if err := q.EnqueueJob(storage.Job{
		ID:          uuid.NewString(),
		Type:        JobType,
		PayloadJSON: string(payload),
	}); err != nil {
		return storage.KnowledgeDoc{}, fmt.Errorf("enqueueing index job for %s: %w", doc.ID, err)
	}
	return doc, nil
}
