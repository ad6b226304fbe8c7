package querycompile

import (
	"fmt"
	"sort"

	"github.com/oncomatch/oncomatch/internal/config"
	"github.com/oncomatch/oncomatch/internal/criteria"
	"github.com/oncomatch/oncomatch/internal/queryir"
	"github.com/oncomatch/oncomatch/internal/transform"
)

// Policy controls what happens when a criterion key has no mapping for
// a collection.
type Policy int

const (
	// Strict fails compilation on an unmapped key. Default.
	Strict Policy = iota
	// Lenient treats an unmapped key as not applicable to the
	// collection and substitutes a neutral true operand.
	Lenient
)

// Translator resolves one leaf criterion against one collection
// mapping: it finds the mapping rule for the criterion key and invokes
// the named transform. Stateless apart from the shared registry.
type Translator struct {
	registry *transform.Registry
}

// NewTranslator builds a translator over the given transform registry.
func NewTranslator(registry *transform.Registry) *Translator {
	return &Translator{registry: registry}
}

// Translate turns a leaf criterion into a predicate fragment for one
// collection. An ignore rule returns (nil, nil): the criterion
// contributes nothing and is not an error. An unmapped key returns
// UnmappedCriterionError regardless of policy; callers apply the
// policy.
func (t *Translator) Translate(collection string, m config.CollectionMapping, leaf criteria.Leaf) (queryir.Predicate, error) {
	rule, ok := m.TrialKeyMappings[leaf.Key]
	if !ok {
		return nil, &UnmappedCriterionError{Key: leaf.Key, Collection: collection}
	}
	if rule.Ignore {
		return nil, nil
	}

	tr, err := t.registry.Lookup(rule.SampleValue)
	if err != nil {
		return nil, fmt.Errorf("criterion %q: %w", leaf.Key, err)
	}
	pred, err := tr.Apply(rule.SampleKey, leaf.Value)
	if err != nil {
		return nil, fmt.Errorf("criterion %q: %w", leaf.Key, err)
	}
	return pred, nil
}

// Compiler walks a criteria tree and emits one compiled predicate per
// mapped collection. The walk preserves the tree's and/or nesting;
// compiling the same tree against the same configuration twice yields
// structurally identical predicates.
type Compiler struct {
	translator *Translator
	policy     Policy
}

// NewCompiler builds a compiler with the given unmapped-key policy.
func NewCompiler(translator *Translator, policy Policy) *Compiler {
	return &Compiler{translator: translator, policy: policy}
}

// CompileAll compiles the tree against every mapped collection, in
// sorted collection order, and returns collection name -> predicate.
func (c *Compiler) CompileAll(cfg *config.Config, tree criteria.Criterion) (map[string]queryir.Predicate, error) {
	names := make([]string, 0, len(cfg.CollectionMappings))
	for name := range cfg.CollectionMappings {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]queryir.Predicate, len(names))
	for _, name := range names {
		pred, err := c.Compile(name, cfg.CollectionMappings[name], tree)
		if err != nil {
			return nil, fmt.Errorf("collection %q: %w", name, err)
		}
		out[name] = pred
	}
	return out, nil
}

// Compile compiles the tree against one collection mapping. A tree
// whose every criterion is ignored for this collection compiles to the
// neutral true predicate.
func (c *Compiler) Compile(collection string, m config.CollectionMapping, tree criteria.Criterion) (queryir.Predicate, error) {
	pred, err := c.compileNode(collection, m, tree)
	if err != nil {
		return nil, err
	}
	if pred == nil {
		return queryir.True{}, nil
	}
	return pred, nil
}

// compileNode returns nil (no error) when the subtree contributes
// nothing to this collection's predicate.
func (c *Compiler) compileNode(collection string, m config.CollectionMapping, node criteria.Criterion) (queryir.Predicate, error) {
	switch n := node.(type) {
	case criteria.Leaf:
		pred, err := c.translator.Translate(collection, m, n)
		if err != nil {
			if c.policy == Lenient && IsUnmappedCriterion(err) {
				return queryir.True{}, nil
			}
			return nil, err
		}
		return pred, nil

	case criteria.Combinator:
		preds := make([]queryir.Predicate, 0, len(n.Children))
		for _, child := range n.Children {
			p, err := c.compileNode(collection, m, child)
			if err != nil {
				return nil, err
			}
			if p == nil {
				continue
			}
			preds = append(preds, p)
		}
		if len(preds) == 0 {
			return nil, nil
		}
		if n.Op == criteria.OpOr {
			return queryir.Or{Preds: preds}, nil
		}
		return queryir.And{Preds: preds}, nil

	default:
		return nil, fmt.Errorf("unknown criterion node %T", node)
	}
}
