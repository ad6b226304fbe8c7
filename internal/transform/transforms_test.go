package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncomatch/oncomatch/internal/config"
	"github.com/oncomatch/oncomatch/internal/criteria"
	"github.com/oncomatch/oncomatch/internal/queryir"
	"github.com/oncomatch/oncomatch/internal/testutil"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(testutil.NewFixedClock(testutil.StaticNow), config.ExternalMapping{
		"Melanoma":          {"Melanoma", "Desmoplastic Melanoma"},
		"_SOLID_":           {"Melanoma", "Lung Adenocarcinoma", "Colorectal Adenocarcinoma"},
		"Single Value Term": {"Exact"},
	})
}

func mustApply(t *testing.T, r *Registry, name, key string, value criteria.Value) queryir.Predicate {
	t.Helper()
	tr, err := r.Lookup(name)
	require.NoError(t, err)
	pred, err := tr.Apply(key, value)
	require.NoError(t, err)
	return pred
}

func TestRegistry_UnknownTransform(t *testing.T) {
	r := testRegistry(t)

	_, err := r.Lookup("does_not_exist")
	require.Error(t, err)
	assert.True(t, IsUnknownTransform(err))
}

func TestRegistry_Names(t *testing.T) {
	r := testRegistry(t)
	assert.Equal(t, []string{
		"age_range_to_date_int_query",
		"cnv_map",
		"external_file_mapping",
		"mmr_ms_map",
		"nomap",
		"tmb_range_to_query",
		"variant_category_map",
		"wildcard_regex",
	}, r.Names())
}

func TestNomap_ExactEquality(t *testing.T) {
	pred := mustApply(t, testRegistry(t), "nomap", "gender", criteria.String("Female"))
	assert.Equal(t, queryir.Eq{Field: "gender", Value: criteria.String("Female")}, pred)
}

func TestWildcardRegex_WildcardValue(t *testing.T) {
	pred := mustApply(t, testRegistry(t), "wildcard_regex", "true_hugo_symbol", criteria.String("TP53*"))

	p, ok := pred.(queryir.Pattern)
	require.True(t, ok)
	assert.True(t, p.Matches("TP53"))
	assert.True(t, p.Matches("TP53fs"))
	assert.False(t, p.Matches("BRCA1"))
}

func TestWildcardRegex_PlainValueFallsBackToEquality(t *testing.T) {
	pred := mustApply(t, testRegistry(t), "wildcard_regex", "true_hugo_symbol", criteria.String("BRAF"))
	assert.Equal(t, queryir.Eq{Field: "true_hugo_symbol", Value: criteria.String("BRAF")}, pred)
}

// StaticNow is 2025-07-01, so an 18-year minimum age cuts off at the
// birth date int 20070701.
func TestAgeRange_MinimumAge(t *testing.T) {
	pred := mustApply(t, testRegistry(t), "age_range_to_date_int_query", "birth_date_int", criteria.String(">=18"))

	r, ok := pred.(queryir.Range)
	require.True(t, ok)
	require.NotNil(t, r.Max)
	assert.Equal(t, float64(20070701), *r.Max)
	assert.False(t, r.MaxExclusive)
	assert.Nil(t, r.Min)
}

func TestAgeRange_BareNumberMeansMinimumAge(t *testing.T) {
	pred := mustApply(t, testRegistry(t), "age_range_to_date_int_query", "birth_date_int", criteria.Int(18))

	r, ok := pred.(queryir.Range)
	require.True(t, ok)
	require.NotNil(t, r.Max)
	assert.Equal(t, float64(20070701), *r.Max)
}

func TestAgeRange_MaximumAgeExclusive(t *testing.T) {
	pred := mustApply(t, testRegistry(t), "age_range_to_date_int_query", "birth_date_int", criteria.String("<10"))

	r, ok := pred.(queryir.Range)
	require.True(t, ok)
	require.NotNil(t, r.Min)
	assert.Equal(t, float64(20150701), *r.Min)
	assert.True(t, r.MinExclusive)
	assert.Nil(t, r.Max)
}

func TestAgeRange_FractionalAgeUsesMonths(t *testing.T) {
	// 0.5 years = 6 months before 2025-07-01.
	pred := mustApply(t, testRegistry(t), "age_range_to_date_int_query", "birth_date_int", criteria.Float(0.5))

	r, ok := pred.(queryir.Range)
	require.True(t, ok)
	require.NotNil(t, r.Max)
	assert.Equal(t, float64(20250101), *r.Max)
}

func TestAgeRange_RejectsNonNumeric(t *testing.T) {
	tr, err := testRegistry(t).Lookup("age_range_to_date_int_query")
	require.NoError(t, err)

	_, err = tr.Apply("birth_date_int", criteria.String(">=adult"))
	assert.Error(t, err)
}

func TestTMBRange_Threshold(t *testing.T) {
	pred := mustApply(t, testRegistry(t), "tmb_range_to_query", "tmb", criteria.String(">=10"))

	r, ok := pred.(queryir.Range)
	require.True(t, ok)
	require.NotNil(t, r.Min)
	assert.Equal(t, float64(10), *r.Min)
	assert.False(t, r.MinExclusive)
}

func TestTMBRange_BareNumberMeansEquality(t *testing.T) {
	pred := mustApply(t, testRegistry(t), "tmb_range_to_query", "tmb", criteria.Float(11.5))
	assert.Equal(t, queryir.Eq{Field: "tmb", Value: criteria.Float(11.5)}, pred)
}

func TestVariantCategoryMap_Membership(t *testing.T) {
	pred := mustApply(t, testRegistry(t), "variant_category_map", "variant_category", criteria.String("Any Variation"))

	in, ok := pred.(queryir.In)
	require.True(t, ok)
	assert.Equal(t, []criteria.Value{
		criteria.String("MUTATION"), criteria.String("CNV"), criteria.String("SV"),
	}, in.Values)
}

func TestVariantCategoryMap_SingleValueCollapsesToEq(t *testing.T) {
	pred := mustApply(t, testRegistry(t), "variant_category_map", "variant_category", criteria.String("Mutation"))
	assert.Equal(t, queryir.Eq{Field: "variant_category", Value: criteria.String("MUTATION")}, pred)
}

func TestCNVMap_UmbrellaToken(t *testing.T) {
	pred := mustApply(t, testRegistry(t), "cnv_map", "cnv_call", criteria.String("Gain"))

	in, ok := pred.(queryir.In)
	require.True(t, ok)
	assert.Contains(t, in.Values, criteria.Value(criteria.String("Gain")))
	assert.Contains(t, in.Values, criteria.Value(criteria.String("High level amplification")))
}

func TestTableLookup_UnknownTokenIsError(t *testing.T) {
	tr, err := testRegistry(t).Lookup("cnv_map")
	require.NoError(t, err)

	// A typo'd curated token ("Mutaton") would otherwise match nothing
	// without any signal.
	_, err = tr.Apply("cnv_call", criteria.String("Novel Call"))
	require.Error(t, err)
	assert.True(t, IsUnknownToken(err))
}

func TestExternalFileMapping_Membership(t *testing.T) {
	pred := mustApply(t, testRegistry(t), "external_file_mapping", "oncotree_primary_diagnosis_name", criteria.String("Melanoma"))

	in, ok := pred.(queryir.In)
	require.True(t, ok)
	assert.Len(t, in.Values, 2)
}

func TestExternalFileMapping_UmbrellaTermIsOrdinaryKey(t *testing.T) {
	pred := mustApply(t, testRegistry(t), "external_file_mapping", "oncotree_primary_diagnosis_name", criteria.String("_SOLID_"))

	in, ok := pred.(queryir.In)
	require.True(t, ok)
	assert.Len(t, in.Values, 3)
}

func TestExternalFileMapping_MissingTerm(t *testing.T) {
	tr, err := testRegistry(t).Lookup("external_file_mapping")
	require.NoError(t, err)

	_, err = tr.Apply("oncotree_primary_diagnosis_name", criteria.String("No Such Diagnosis"))
	require.Error(t, err)
	assert.True(t, IsMissingTerm(err))
}
