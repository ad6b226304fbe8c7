package config

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed schema.cue
var schemaCUE string

// validateSchema checks a raw configuration document against the
// embedded CUE schema before decoding. Schema violations surface here
// with CUE's field-level positions rather than as silent zero values
// after json.Unmarshal.
func validateSchema(data []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	expr, err := cuejson.Extract("config.json", data)
	if err != nil {
		return fmt.Errorf("parse config document: %w", err)
	}
	doc := ctx.BuildExpr(expr)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("build config document: %w", err)
	}

	unified := schema.Unify(doc)
	if err := unified.Validate(cue.Final(), cue.Concrete(true)); err != nil {
		return fmt.Errorf("config does not satisfy schema: %w", err)
	}
	return nil
}
