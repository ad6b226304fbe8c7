package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Insert upserts one document into a collection. A document with the
// same (collection, doc_id) is replaced; loading the same fixture
// twice is not an error.
func (s *Store) Insert(ctx context.Context, collection, docID string, fields map[string]any) error {
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("insert %s/%s: marshal body: %w", collection, docID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, doc_id, body)
		VALUES (?, ?, ?)
		ON CONFLICT(collection, doc_id) DO UPDATE SET body = excluded.body
	`, collection, docID, string(body))
	if err != nil {
		return fmt.Errorf("insert %s/%s: %w", collection, docID, err)
	}

	return nil
}

// InsertMany upserts a batch of documents into one collection inside a
// single transaction. Either all documents land or none do.
func (s *Store) InsertMany(ctx context.Context, collection string, docs []Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert many %s: begin tx: %w", collection, err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (collection, doc_id, body)
		VALUES (?, ?, ?)
		ON CONFLICT(collection, doc_id) DO UPDATE SET body = excluded.body
	`)
	if err != nil {
		return fmt.Errorf("insert many %s: prepare: %w", collection, err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		body, err := json.Marshal(doc.Fields)
		if err != nil {
			return fmt.Errorf("insert many %s/%s: marshal body: %w", collection, doc.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, collection, doc.ID, string(body)); err != nil {
			return fmt.Errorf("insert many %s/%s: %w", collection, doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert many %s: commit: %w", collection, err)
	}
	return nil
}
