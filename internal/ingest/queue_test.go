package ingest

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/kalambet/curador/internal/storage"
)

func TestEnqueue(t *testing.T) {
	store := openTestStore(t)

	doc, err := Enqueue(store, storage.KnowledgeDoc{Collection: "BaseCurador", Title: "Gessagem"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if doc.ID == "" {
		t.Fatal("ID not generated")
	}
	if doc.Status != storage.DocQueued {
		t.Errorf("Status = %q, want queued", doc.Status)
	}

	saved, err := store.GetKnowledgeDoc(doc.ID)
	if err != nil {
		t.Fatalf("GetKnowledgeDoc: %v", err)
	}
	if saved.Title != "Gessagem" {
		t.Errorf("saved = %+v", saved)
	}

	job, err := store.ClaimNextJob([]string{JobType})
	if err != nil || job == nil {
		t.Fatalf("ClaimNextJob = %v, %v", job, err)
	}
	var p indexPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if p.DocID != doc.ID {
		t.Errorf("payload doc_id = %q, want %q", p.DocID, doc.ID)
	}
}

func TestEnqueue_NoContent(t *testing.T) {
	store := openTestStore(t)
	_, err := Enqueue(store, storage.KnowledgeDoc{Collection: "BaseCurador", Title: "   "})
	if !errors.Is(err, ErrNoContent) {
		t.Errorf("err = %v, want ErrNoContent", err)
	}
}

func TestIndexText(t *testing.T) {
	got := IndexText(storage.KnowledgeDoc{Title: " T ", Conclusion: "C", Body: "B"})
	if got != "T\n\nC\n\nB" {
		t.Errorf("IndexText = %q", got)
	}

	long := IndexText(storage.KnowledgeDoc{Body: strings.Repeat("ã", maxEmbedChars+10)})
	if n := utf8.RuneCountInString(long); n != maxEmbedChars {
		t.Errorf("length = %d, want %d", n, maxEmbedChars)
	}
}
