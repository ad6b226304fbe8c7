package querycompile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncomatch/oncomatch/internal/config"
	"github.com/oncomatch/oncomatch/internal/criteria"
	"github.com/oncomatch/oncomatch/internal/queryir"
	"github.com/oncomatch/oncomatch/internal/testutil"
	"github.com/oncomatch/oncomatch/internal/transform"
)

func genomicMapping() config.CollectionMapping {
	return config.CollectionMapping{
		QueryCollection: "genomic",
		JoinField:       "sample_id",
		TrialKeyMappings: map[string]config.MappingRule{
			"hugo_symbol":      {SampleKey: "true_hugo_symbol", SampleValue: "wildcard_regex"},
			"variant_category": {SampleKey: "variant_category", SampleValue: "variant_category_map"},
			"display_name":     {Ignore: true},
		},
	}
}

func clinicalMapping() config.CollectionMapping {
	return config.CollectionMapping{
		QueryCollection: "clinical",
		IDField:         "sample_id",
		TrialKeyMappings: map[string]config.MappingRule{
			"age_numerical": {SampleKey: "birth_date_int", SampleValue: "age_range_to_date_int_query"},
			"gender":        {SampleKey: "gender", SampleValue: "nomap"},
		},
	}
}

func newTestCompiler(t *testing.T, policy Policy) *Compiler {
	t.Helper()
	registry := transform.NewRegistry(testutil.NewFixedClock(testutil.StaticNow), nil)
	return NewCompiler(NewTranslator(registry), policy)
}

func TestCompile_PreservesTreeShape(t *testing.T) {
	c := newTestCompiler(t, Strict)

	tree := criteria.And(
		criteria.NewLeaf("hugo_symbol", "BRAF"),
		criteria.Or(
			criteria.NewLeaf("variant_category", "Mutation"),
			criteria.NewLeaf("variant_category", "Copy Number Variation"),
		),
	)

	pred, err := c.Compile("genomic", genomicMapping(), tree)
	require.NoError(t, err)

	and, ok := pred.(queryir.And)
	require.True(t, ok)
	require.Len(t, and.Preds, 2)
	_, ok = and.Preds[1].(queryir.Or)
	assert.True(t, ok, "nested or must survive compilation")
}

func TestCompile_Deterministic(t *testing.T) {
	c := newTestCompiler(t, Strict)

	tree := criteria.And(
		criteria.NewLeaf("hugo_symbol", "TP53*"),
		criteria.NewLeaf("variant_category", "Any Variation"),
	)

	first, err := c.Compile("genomic", genomicMapping(), tree)
	require.NoError(t, err)
	second, err := c.Compile("genomic", genomicMapping(), tree)
	require.NoError(t, err)

	assert.Equal(t, queryir.MustHash(first), queryir.MustHash(second))
}

func TestCompile_StrictUnmappedKeyFails(t *testing.T) {
	c := newTestCompiler(t, Strict)

	tree := criteria.NewLeaf("totally_unknown_key", "x")

	_, err := c.Compile("genomic", genomicMapping(), tree)
	require.Error(t, err)
	assert.True(t, IsUnmappedCriterion(err))
}

func TestCompile_LenientUnmappedKeyIsNeutral(t *testing.T) {
	c := newTestCompiler(t, Lenient)

	tree := criteria.And(
		criteria.NewLeaf("hugo_symbol", "BRAF"),
		criteria.NewLeaf("totally_unknown_key", "x"),
	)

	pred, err := c.Compile("genomic", genomicMapping(), tree)
	require.NoError(t, err)

	and, ok := pred.(queryir.And)
	require.True(t, ok)
	require.Len(t, and.Preds, 2)
	_, ok = and.Preds[1].(queryir.True)
	assert.True(t, ok, "unmapped leaf becomes the neutral operand")
}

func TestCompile_IgnoredKeyNeverAppears(t *testing.T) {
	c := newTestCompiler(t, Strict)

	tree := criteria.And(
		criteria.NewLeaf("hugo_symbol", "BRAF"),
		criteria.NewLeaf("display_name", "BRAF V600E"),
	)

	pred, err := c.Compile("genomic", genomicMapping(), tree)
	require.NoError(t, err)

	and, ok := pred.(queryir.And)
	require.True(t, ok)
	assert.Len(t, and.Preds, 1, "ignored criterion contributes nothing")
}

func TestCompile_AllIgnoredCompilesToTrue(t *testing.T) {
	c := newTestCompiler(t, Strict)

	pred, err := c.Compile("genomic", genomicMapping(), criteria.NewLeaf("display_name", "x"))
	require.NoError(t, err)

	_, ok := pred.(queryir.True)
	assert.True(t, ok)
}

func TestCompileAll_EmitsOnePredicatePerCollection(t *testing.T) {
	cfg := &config.Config{
		CollectionMappings: map[string]config.CollectionMapping{
			"clinical": clinicalMapping(),
			"genomic":  genomicMapping(),
		},
	}
	c := newTestCompiler(t, Lenient)

	tree := criteria.And(
		criteria.NewLeaf("gender", "Female"),
		criteria.NewLeaf("hugo_symbol", "BRAF"),
	)

	preds, err := c.CompileAll(cfg, tree)
	require.NoError(t, err)
	require.Len(t, preds, 2)
	require.NoError(t, queryir.Validate(preds["clinical"]))
	require.NoError(t, queryir.Validate(preds["genomic"]))
}

func TestTranslate_UnknownTransformName(t *testing.T) {
	registry := transform.NewRegistry(testutil.NewFixedClock(testutil.StaticNow), nil)
	tr := NewTranslator(registry)

	m := config.CollectionMapping{
		TrialKeyMappings: map[string]config.MappingRule{
			"weird": {SampleKey: "weird", SampleValue: "not_registered"},
		},
	}

	_, err := tr.Translate("genomic", m, criteria.Leaf{Key: "weird", Value: criteria.String("x")})
	require.Error(t, err)
	assert.True(t, transform.IsUnknownTransform(err))
}
