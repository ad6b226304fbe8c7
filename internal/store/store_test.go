package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncomatch/oncomatch/internal/criteria"
	"github.com/oncomatch/oncomatch/internal/queryir"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	var version int
	require.NoError(t, s2.DB().QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestInsertAndQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, "clinical", "s1", map[string]any{
		"sample_id": "s1", "gender": "Female", "birth_date_int": 19900215,
	}))
	require.NoError(t, s.Insert(ctx, "clinical", "s2", map[string]any{
		"sample_id": "s2", "gender": "Male", "birth_date_int": 20150601,
	}))

	docs, err := s.Query(ctx, "clinical", queryir.Eq{Field: "gender", Value: criteria.String("Female")}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "s1", docs[0].ID)
	assert.Equal(t, "Female", docs[0].Fields["gender"])
}

func TestInsert_Upsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, "clinical", "s1", map[string]any{"gender": "Female"}))
	require.NoError(t, s.Insert(ctx, "clinical", "s1", map[string]any{"gender": "Male"}))

	docs, err := s.Query(ctx, "clinical", queryir.True{}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Male", docs[0].Fields["gender"])
}

func TestQuery_RangeOverDateInt(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertMany(ctx, "clinical", []Document{
		{ID: "adult", Fields: map[string]any{"birth_date_int": 19900215}},
		{ID: "child", Fields: map[string]any{"birth_date_int": 20200601}},
	}))

	// Born on or before 2007-07-01, i.e. at least 18 in mid-2025.
	docs, err := s.Query(ctx, "clinical", queryir.Range{
		Field: "birth_date_int", Max: queryir.Bound(20070701),
	}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "adult", docs[0].ID)
}

func TestQuery_PatternAnchoredWildcard(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertMany(ctx, "genomic", []Document{
		{ID: "g1", Fields: map[string]any{"true_hugo_symbol": "TP53"}},
		{ID: "g2", Fields: map[string]any{"true_hugo_symbol": "TP53fs"}},
		{ID: "g3", Fields: map[string]any{"true_hugo_symbol": "BRCA1"}},
	}))

	docs, err := s.Query(ctx, "genomic", queryir.Pattern{Field: "true_hugo_symbol", Wildcard: "TP53*"}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 2)
}

func TestQuery_PatternIsCaseSensitive(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	// Gene symbols are case-sensitive; the SQL path must agree with
	// Pattern.Matches and reject case-folded values.
	require.NoError(t, s.InsertMany(ctx, "genomic", []Document{
		{ID: "g1", Fields: map[string]any{"true_hugo_symbol": "BRAF"}},
		{ID: "g2", Fields: map[string]any{"true_hugo_symbol": "braf_lowercase"}},
	}))

	docs, err := s.Query(ctx, "genomic", queryir.Pattern{Field: "true_hugo_symbol", Wildcard: "BRAF*"}, nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "g1", docs[0].ID)
}

func TestQuery_DeterministicOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InsertMany(ctx, "genomic", []Document{
		{ID: "b", Fields: map[string]any{"x": 1}},
		{ID: "a", Fields: map[string]any{"x": 1}},
		{ID: "c", Fields: map[string]any{"x": 1}},
	}))

	docs, err := s.Query(ctx, "genomic", queryir.True{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "a", docs[0].ID)
	assert.Equal(t, "b", docs[1].ID)
	assert.Equal(t, "c", docs[2].ID)
}

func TestQuery_ProjectionTrimsFields(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, "clinical", "s1", map[string]any{
		"sample_id": "s1", "gender": "Female", "secret": "x",
	}))

	docs, err := s.Query(ctx, "clinical", queryir.True{}, []string{"sample_id", "gender"})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, map[string]any{"sample_id": "s1", "gender": "Female"}, docs[0].Fields)
}

func TestQuery_CollectionsAreIsolated(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, "clinical", "s1", map[string]any{"x": 1}))
	require.NoError(t, s.Insert(ctx, "genomic", "g1", map[string]any{"x": 1}))

	docs, err := s.Query(ctx, "clinical", queryir.True{}, nil)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestQuery_EmptyResultIsNotNil(t *testing.T) {
	s := openTestStore(t)

	docs, err := s.Query(context.Background(), "clinical", queryir.True{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, docs)
	assert.Empty(t, docs)
}

func TestEnsureIndexes_VisibleInSQLiteMaster(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureIndexes(ctx, map[string][]string{
		"genomic": {"true_hugo_symbol"},
	}))
	// Idempotent.
	require.NoError(t, s.EnsureIndexes(ctx, map[string][]string{
		"genomic": {"true_hugo_symbol"},
	}))

	var count int
	require.NoError(t, s.DB().QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_doc_genomic_true_hugo_symbol'`,
	).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestEnsureIndexes_RejectsBadIdentifiers(t *testing.T) {
	s := openTestStore(t)

	err := s.EnsureIndexes(context.Background(), map[string][]string{
		"genomic": {"bad'; DROP TABLE documents; --"},
	})
	assert.Error(t, err)
}
