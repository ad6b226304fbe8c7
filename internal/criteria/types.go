package criteria

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Op combines child criteria in a Combinator node.
type Op string

const (
	// OpAnd requires all children to hold.
	OpAnd Op = "and"
	// OpOr requires at least one child to hold.
	OpOr Op = "or"
)

// Criterion is the sealed tree type for trial eligibility expressions.
// A node is either a Leaf (one named attribute requirement) or a
// Combinator (and/or over children). Trees are built once per trial
// lookup and never mutated after construction.
type Criterion interface {
	criterion()
}

// Leaf is a single attribute requirement, e.g. {hugo_symbol: "BRAF"}.
type Leaf struct {
	Key   string
	Value Value
}

func (Leaf) criterion() {}

// Combinator joins child criteria with and/or. Nesting is significant:
// the compiler preserves the tree shape rather than flattening it.
type Combinator struct {
	Op       Op
	Children []Criterion
}

func (Combinator) criterion() {}

// And builds an and-combinator over the given children.
func And(children ...Criterion) Combinator {
	return Combinator{Op: OpAnd, Children: children}
}

// Or builds an or-combinator over the given children.
func Or(children ...Criterion) Combinator {
	return Combinator{Op: OpOr, Children: children}
}

// NewLeaf builds a leaf criterion from a key and a plain Go value.
// Panics only on unsupported value kinds, which indicates a programming
// error in test fixtures; external input goes through Parse.
func NewLeaf(key string, v any) Leaf {
	cv, err := FromGo(v)
	if err != nil {
		panic(fmt.Sprintf("criteria.NewLeaf(%q): %v", key, err))
	}
	return Leaf{Key: key, Value: cv}
}

// Parse decodes a criteria tree from trial document JSON.
//
// The wire shape follows trial eligibility markup: an object whose single
// key is "and" or "or" holding an array of subtrees is a combinator; any
// other object contributes one Leaf per key/value pair (several pairs in
// one object are an implicit and, matching how curated criteria are
// written).
func Parse(data []byte) (Criterion, error) {
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return parseNode(raw)
}

func parseNode(data json.RawMessage) (Criterion, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("criteria node must be an object: %w", err)
	}
	if len(obj) == 0 {
		return nil, fmt.Errorf("empty criteria node")
	}

	if children, ok := obj[string(OpAnd)]; ok && len(obj) == 1 {
		return parseCombinator(OpAnd, children)
	}
	if children, ok := obj[string(OpOr)]; ok && len(obj) == 1 {
		return parseCombinator(OpOr, children)
	}

	// Leaf object: one Leaf per pair, implicit and when several.
	leaves := make([]Criterion, 0, len(obj))
	// Deterministic construction order.
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		val, err := UnmarshalValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("criterion %q: %w", k, err)
		}
		leaves = append(leaves, Leaf{Key: k, Value: val})
	}
	if len(leaves) == 1 {
		return leaves[0], nil
	}
	return Combinator{Op: OpAnd, Children: leaves}, nil
}

func parseCombinator(op Op, data json.RawMessage) (Criterion, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("%s node must hold an array: %w", op, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%s node has no children", op)
	}
	children := make([]Criterion, 0, len(items))
	for i, item := range items {
		child, err := parseNode(item)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", op, i, err)
		}
		children = append(children, child)
	}
	return Combinator{Op: op, Children: children}, nil
}
