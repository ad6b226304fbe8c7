package querysql

import (
	"fmt"
	"strings"

	"github.com/oncomatch/oncomatch/internal/criteria"
	"github.com/oncomatch/oncomatch/internal/queryir"
)

// Compile converts a predicate to a parameterized SQL fragment over a
// JSON document body column. Returns (sql, params, error).
//
// Values are NEVER interpolated into the SQL text, always bound via ?
// placeholders. Field names come from the validated configuration, not
// from user input, but are still rejected if they could break out of
// the JSON path literal.
func Compile(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case queryir.True:
		return "1 = 1", nil, nil

	case queryir.Eq:
		field, err := fieldExpr(pred.Field)
		if err != nil {
			return "", nil, err
		}
		if _, isNull := pred.Value.(criteria.Null); isNull || pred.Value == nil {
			return field + " IS NULL", nil, nil
		}
		param, err := valueToParam(pred.Value)
		if err != nil {
			return "", nil, err
		}
		return field + " = ?", []any{param}, nil

	case queryir.Pattern:
		field, err := fieldExpr(pred.Field)
		if err != nil {
			return "", nil, err
		}
		return field + " GLOB ?", []any{wildcardToGlob(pred.Wildcard)}, nil

	case queryir.Range:
		return compileRange(pred)

	case queryir.In:
		return compileIn(pred)

	case queryir.Not:
		sql, params, err := Compile(pred.Inner)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", params, nil

	case queryir.And:
		return compileGroup(pred.Preds, " AND ", "1 = 1")

	case queryir.Or:
		return compileGroup(pred.Preds, " OR ", "1 = 0")

	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// BuildQuery assembles the full retrieval statement for one collection.
// Every query orders by doc_id with COLLATE BINARY so result order is
// deterministic across SQLite versions.
func BuildQuery(p queryir.Predicate) (string, []any, error) {
	where, params, err := Compile(p)
	if err != nil {
		return "", nil, err
	}
	sql := "SELECT doc_id, body FROM documents WHERE collection = ? AND (" + where + ")" +
		" ORDER BY doc_id COLLATE BINARY ASC"
	return sql, params, nil
}

func compileRange(r queryir.Range) (string, []any, error) {
	field, err := fieldExpr(r.Field)
	if err != nil {
		return "", nil, err
	}
	if r.Min == nil && r.Max == nil {
		return "", nil, fmt.Errorf("range on %q has no bounds", r.Field)
	}

	var parts []string
	var params []any
	if r.Min != nil {
		op := ">="
		if r.MinExclusive {
			op = ">"
		}
		parts = append(parts, field+" "+op+" ?")
		params = append(params, *r.Min)
	}
	if r.Max != nil {
		op := "<="
		if r.MaxExclusive {
			op = "<"
		}
		parts = append(parts, field+" "+op+" ?")
		params = append(params, *r.Max)
	}
	return strings.Join(parts, " AND "), params, nil
}

func compileIn(in queryir.In) (string, []any, error) {
	// Empty membership set matches no rows.
	if len(in.Values) == 0 {
		return "1 = 0", nil, nil
	}
	field, err := fieldExpr(in.Field)
	if err != nil {
		return "", nil, err
	}

	placeholders := make([]string, len(in.Values))
	params := make([]any, len(in.Values))
	for i, v := range in.Values {
		placeholders[i] = "?"
		param, err := valueToParam(v)
		if err != nil {
			return "", nil, err
		}
		params[i] = param
	}
	return field + " IN (" + strings.Join(placeholders, ", ") + ")", params, nil
}

func compileGroup(preds []queryir.Predicate, sep, empty string) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}

	var sqlParts []string
	var allParams []any
	for _, pred := range preds {
		sql, params, err := Compile(pred)
		if err != nil {
			return "", nil, err
		}
		sqlParts = append(sqlParts, "("+sql+")")
		allParams = append(allParams, params...)
	}
	return strings.Join(sqlParts, sep), allParams, nil
}

// fieldExpr renders the json_extract expression for a document field.
func fieldExpr(field string) (string, error) {
	if field == "" {
		return "", fmt.Errorf("empty field name")
	}
	if strings.ContainsAny(field, "'\"[]") {
		return "", fmt.Errorf("invalid field name %q", field)
	}
	return "json_extract(body, '$." + field + "')", nil
}

// wildcardToGlob converts an anchored '*' wildcard into a GLOB pattern.
// GLOB shares the '*' wildcard and, unlike LIKE, compares
// case-sensitively; its '?' and '[' metacharacters are neutralized with
// single-character classes.
func wildcardToGlob(wildcard string) string {
	var b strings.Builder
	for _, r := range wildcard {
		switch r {
		case '?', '[':
			b.WriteByte('[')
			b.WriteRune(r)
			b.WriteByte(']')
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// valueToParam converts a criterion value to a Go native type for a SQL
// parameter. Arrays and objects have no scalar SQL representation.
func valueToParam(v criteria.Value) (any, error) {
	switch val := v.(type) {
	case criteria.String:
		return string(val), nil
	case criteria.Int:
		return int64(val), nil
	case criteria.Float:
		return float64(val), nil
	case criteria.Bool:
		return bool(val), nil
	case criteria.Null:
		return nil, nil
	case criteria.Array:
		return nil, fmt.Errorf("array cannot be used as SQL parameter directly")
	case criteria.Object:
		return nil, fmt.Errorf("object cannot be used as SQL parameter directly")
	default:
		return nil, fmt.Errorf("unsupported value type for SQL parameter: %T", v)
	}
}
