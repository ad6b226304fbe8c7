package querysql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncomatch/oncomatch/internal/criteria"
	"github.com/oncomatch/oncomatch/internal/queryir"
)

func TestCompile_Eq(t *testing.T) {
	sql, params, err := Compile(queryir.Eq{Field: "gender", Value: criteria.String("Female")})
	require.NoError(t, err)
	assert.Equal(t, "json_extract(body, '$.gender') = ?", sql)
	assert.Equal(t, []any{"Female"}, params)
}

func TestCompile_EqNull(t *testing.T) {
	sql, params, err := Compile(queryir.Eq{Field: "vital_status", Value: criteria.Null{}})
	require.NoError(t, err)
	assert.Equal(t, "json_extract(body, '$.vital_status') IS NULL", sql)
	assert.Empty(t, params)
}

func TestCompile_PatternBecomesGlob(t *testing.T) {
	sql, params, err := Compile(queryir.Pattern{Field: "true_hugo_symbol", Wildcard: "TP53*"})
	require.NoError(t, err)
	assert.Equal(t, "json_extract(body, '$.true_hugo_symbol') GLOB ?", sql)
	assert.Equal(t, []any{"TP53*"}, params)
}

func TestCompile_PatternEscapesGlobMeta(t *testing.T) {
	_, params, err := Compile(queryir.Pattern{Field: "f", Wildcard: "q?[x]done*"})
	require.NoError(t, err)
	assert.Equal(t, []any{"q[?][[]x]done*"}, params)
}

func TestCompile_Range(t *testing.T) {
	sql, params, err := Compile(queryir.Range{
		Field: "birth_date_int",
		Min:   queryir.Bound(19500101),
		Max:   queryir.Bound(20070701),
	})
	require.NoError(t, err)
	assert.Equal(t, "json_extract(body, '$.birth_date_int') >= ? AND json_extract(body, '$.birth_date_int') <= ?", sql)
	assert.Equal(t, []any{float64(19500101), float64(20070701)}, params)
}

func TestCompile_RangeExclusiveBounds(t *testing.T) {
	sql, _, err := Compile(queryir.Range{
		Field: "tmb", Min: queryir.Bound(10), MinExclusive: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "json_extract(body, '$.tmb') > ?", sql)
}

func TestCompile_In(t *testing.T) {
	sql, params, err := Compile(queryir.In{
		Field:  "variant_category",
		Values: []criteria.Value{criteria.String("MUTATION"), criteria.String("CNV")},
	})
	require.NoError(t, err)
	assert.Equal(t, "json_extract(body, '$.variant_category') IN (?, ?)", sql)
	assert.Equal(t, []any{"MUTATION", "CNV"}, params)
}

func TestCompile_EmptyInMatchesNothing(t *testing.T) {
	sql, params, err := Compile(queryir.In{Field: "f"})
	require.NoError(t, err)
	assert.Equal(t, "1 = 0", sql)
	assert.Empty(t, params)
}

func TestCompile_NestedAndOr(t *testing.T) {
	pred := queryir.And{Preds: []queryir.Predicate{
		queryir.Eq{Field: "a", Value: criteria.Int(1)},
		queryir.Or{Preds: []queryir.Predicate{
			queryir.Eq{Field: "b", Value: criteria.Int(2)},
			queryir.Eq{Field: "c", Value: criteria.Int(3)},
		}},
	}}

	sql, params, err := Compile(pred)
	require.NoError(t, err)
	assert.Equal(t,
		"(json_extract(body, '$.a') = ?) AND ((json_extract(body, '$.b') = ?) OR (json_extract(body, '$.c') = ?))",
		sql)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, params)
}

func TestCompile_Not(t *testing.T) {
	sql, _, err := Compile(queryir.Not{Inner: queryir.Eq{Field: "f", Value: criteria.Bool(true)}})
	require.NoError(t, err)
	assert.Equal(t, "NOT (json_extract(body, '$.f') = ?)", sql)
}

func TestCompile_True(t *testing.T) {
	sql, params, err := Compile(queryir.True{})
	require.NoError(t, err)
	assert.Equal(t, "1 = 1", sql)
	assert.Empty(t, params)
}

func TestCompile_RejectsBreakoutFieldNames(t *testing.T) {
	_, _, err := Compile(queryir.Eq{Field: "f') OR ('1'='1", Value: criteria.String("x")})
	assert.Error(t, err)
}

func TestBuildQuery_AlwaysOrdersDeterministically(t *testing.T) {
	sql, params, err := BuildQuery(queryir.Eq{Field: "gender", Value: criteria.String("Female")})
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT doc_id, body FROM documents WHERE collection = ? AND (json_extract(body, '$.gender') = ?) ORDER BY doc_id COLLATE BINARY ASC",
		sql)
	assert.Equal(t, []any{"Female"}, params)
}
