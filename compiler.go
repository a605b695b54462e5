package gosieve

import (
	"fmt"
	"reflect"
)

// BuildExpr lowers a filter tree into the IR. Each criterion is dispatched to
// the single handler servicing its operator; groups recurse depth-first and
// an empty group becomes Always.
func BuildExpr(group FilterGroup) (Expr, error) {
	if !group.Conjunction.Valid() {
		return nil, fmt.Errorf("%w: unknown conjunction '%s'", ErrUnsupportedOperation, group.Conjunction)
	}

	if group.IsEmpty() {
		return Always{}, nil
	}

	children := make([]Expr, 0, len(group.Children))
	for _, node := range group.Children {
		var (
			child Expr
			err   error
		)
		switch node := node.(type) {
		case nil:
			continue
		case FilterCriterion:
			child, err = _dispatch.build(node)
		case FilterGroup:
			child, err = BuildExpr(node)
		default:
			panic(fmt.Errorf("unexpected filter node %T", node))
		}
		if err != nil {
			return nil, err
		}

		children = append(children, child)
	}

	return Composite{Conjunction: group.Conjunction.orDefault(), Children: children}, nil
}

type predicateKey struct {
	typ   reflect.Type
	shape string
	scope uint64
}

type compiled struct {
	match predicate
	err   error
}

// compile turns a filter tree into a predicate over elements of t. Results,
// failures included, are cached per element type, tree shape and accessor
// scope.
func (e *Engine) compile(
	t reflect.Type,
	group FilterGroup,
	scope uint64,
	resolve func(path string) (*Accessor, bool),
) (predicate, error) {
	build := func() compiled {
		expr, err := BuildExpr(group)
		if err != nil {
			return compiled{err: err}
		}

		match, err := Lower[predicate](expr, &predicateBuilder{engine: e, typ: t, resolve: resolve})
		if err != nil {
			return compiled{err: err}
		}

		return compiled{match: match}
	}

	var c compiled
	if shape, ok := group.shape(); ok {
		c = e.predicates.getOrCreate(predicateKey{typ: t, shape: shape, scope: scope}, build)
	} else {
		c = build()
	}

	if c.err != nil {
		return nil, fmt.Errorf("cannot compile filter: %w", c.err)
	}

	return c.match, nil
}
