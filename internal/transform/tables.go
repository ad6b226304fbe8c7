package transform

// Fixed vocabulary tables compiled into the binary. Each maps the
// curated trial token to the raw values it accepts in sample documents.
// Site-specific vocabularies belong in external mapping files, not here.

var variantCategoryTable = map[string][]string{
	"Mutation":              {"MUTATION"},
	"Copy Number Variation": {"CNV"},
	"Structural Variation":  {"SV"},
	"Any Variation":         {"MUTATION", "CNV", "SV"},
	"Signature":             {"SIGNATURE"},
}

var cnvTable = map[string][]string{
	"High Amplification":    {"High level amplification"},
	"Homozygous Deletion":   {"Homozygous deletion"},
	"Gain":                  {"Gain", "High level amplification"},
	"Heterozygous Deletion": {"Heterozygous deletion", "Homozygous deletion"},
}

var mmrMSTable = map[string][]string{
	"MMR-Proficient": {"Proficient (MMR-P / MSS)"},
	"MMR-Deficient":  {"Deficient (MMR-D / MSI-H)"},
	"MSI-H":          {"Deficient (MMR-D / MSI-H)"},
	"MSI-L":          {"Proficient (MMR-P / MSS)"},
	"MSS":            {"Proficient (MMR-P / MSS)"},
}
