package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const knowledgeColumns = `id, collection, title, summary, conclusion, body, source, status, vector_id, last_error, created_at, updated_at`

// SaveKnowledgeDoc inserts a document. Empty Status means queued.
func (s *Store) SaveKnowledgeDoc(doc KnowledgeDoc) error {
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.Status == "" {
		doc.Status = DocQueued
	}
	_, err := s.db.Exec(`
		INSERT INTO knowledge_docs (`+knowledgeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.Collection, doc.Title, doc.Summary, doc.Conclusion, doc.Body, doc.Source,
		doc.Status, doc.VectorID, doc.LastError, formatTime(doc.CreatedAt), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("saving knowledge doc %s: %w", doc.ID, err)
	}
	return nil
}

// GetKnowledgeDoc returns the document with id or ErrNotFound.
func (s *Store) GetKnowledgeDoc(id string) (KnowledgeDoc, error) {
	row := s.db.QueryRow(`SELECT `+knowledgeColumns+` FROM knowledge_docs WHERE id = ?`, id)
	d, err := scanKnowledgeDoc(row)
	if errors.Is(err, sql.ErrNoRows) {
		return KnowledgeDoc{}, ErrNotFound
	}
	return d, err
}

// ListKnowledgeDocs returns the newest documents of collection first. An
// empty collection lists every collection.
func (s *Store) ListKnowledgeDocs(collection string, limit, offset int) ([]KnowledgeDoc, error) {
	rows, err := s.db.Query(`
		SELECT `+knowledgeColumns+` FROM knowledge_docs
		WHERE (? = '' OR collection = ?)
		ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`,
		collection, collection, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []KnowledgeDoc
	for rows.Next() {
		d, err := scanKnowledgeDoc(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// CountKnowledgeDocs counts documents per status.
func (s *Store) CountKnowledgeDocs() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM knowledge_docs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// MarkKnowledgeDocIndexed records the vector the document was indexed as.
func (s *Store) MarkKnowledgeDocIndexed(id, vectorID string) error {
	return s.updateKnowledgeDoc(`UPDATE knowledge_docs SET status = ?, vector_id = ?, last_error = '', updated_at = ? WHERE id = ?`,
		DocIndexed, vectorID, formatTime(time.Now()), id)
}

// MarkKnowledgeDocFailed records why indexing gave up.
func (s *Store) MarkKnowledgeDocFailed(id, errMsg string) error {
	return s.updateKnowledgeDoc(`UPDATE knowledge_docs SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		DocFailed, errMsg, formatTime(time.Now()), id)
}

// DeleteKnowledgeDoc removes the document row. Its vector is removed by the
// caller through the vector store.
func (s *Store) DeleteKnowledgeDoc(id string) error {
	return s.updateKnowledgeDoc(`DELETE FROM knowledge_docs WHERE id = ?`, id)
}

func (s *Store) updateKnowledgeDoc(query string, args ...any) error {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanKnowledgeDoc(r rowScanner) (KnowledgeDoc, error) {
	var d KnowledgeDoc
	var createdAt, updatedAt string
	if err := r.Scan(&d.ID, &d.Collection, &d.Title, &d.Summary, &d.Conclusion, &d.Body, &d.Source,
		&d.Status, &d.VectorID, &d.LastError, &createdAt, &updatedAt); err != nil {
		return KnowledgeDoc{}, err
	}
	var err error
	if d.CreatedAt, err = parseTime("created_at", d.ID, createdAt); err != nil {
		return KnowledgeDoc{}, err
	}
	if d.UpdatedAt, err = parseTime("updated_at", d.ID, updatedAt); err != nil {
		return KnowledgeDoc{}, err
	}
	return d, nil
}
