package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oncomatch/oncomatch/internal/queryir"
	"github.com/oncomatch/oncomatch/internal/querysql"
)

// Document is one stored record: its identifier within the collection
// and its decoded field/value body.
type Document struct {
	ID     string
	Fields map[string]any
}

// Query retrieves the documents of a collection satisfying a predicate.
// Results are ordered deterministically by doc_id. When projection is
// non-empty only the named fields survive in the returned bodies;
// fields absent from a document are simply not present in its map.
//
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) Query(ctx context.Context, collection string, pred queryir.Predicate, projection []string) ([]Document, error) {
	query, params, err := querysql.BuildQuery(pred)
	if err != nil {
		return nil, fmt.Errorf("query %s: compile predicate: %w", collection, err)
	}

	args := make([]any, 0, len(params)+1)
	args = append(args, collection)
	args = append(args, params...)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("query %s: scan: %w", collection, err)
		}

		var fields map[string]any
		if err := json.Unmarshal([]byte(body), &fields); err != nil {
			return nil, fmt.Errorf("query %s/%s: decode body: %w", collection, id, err)
		}
		docs = append(docs, Document{ID: id, Fields: project(fields, projection)})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query %s: iterate: %w", collection, err)
	}

	return docs, nil
}

// project trims a document body to the named fields. An empty
// projection keeps everything.
func project(fields map[string]any, projection []string) map[string]any {
	if len(projection) == 0 {
		return fields
	}
	out := make(map[string]any, len(projection))
	for _, f := range projection {
		if v, ok := fields[f]; ok {
			out[f] = v
		}
	}
	return out
}
