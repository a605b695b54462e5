package gosieve

import (
	"fmt"
	"regexp"
)

// Expr is the backend-agnostic representation of a compiled filter tree.
// Filter trees are lowered into Expr by BuildExpr and then interpreted by a
// Visitor: into in-memory predicates, gorm clauses, SQL text or MongoDB
// filter documents.
type Expr interface {
	expr()
}

type (
	// Always matches everything. Empty groups lower to Always.
	Always struct{}

	// Comparison is Path Operator Value for eq, ne, gt, lt, gte and lte.
	Comparison struct {
		Path     string
		Operator Operator
		Value    any
	}

	// Range is Low < Path < High, or its negation Path < Low OR Path > High.
	Range struct {
		Path    string
		Negated bool
		Low     any
		High    any
	}

	// Membership is Path IN (Values...) or its negation.
	Membership struct {
		Path    string
		Negated bool
		Values  []any
	}

	// StringMatch is a case-insensitive StartsWith or EndsWith test.
	StringMatch struct {
		Path     string
		Operator Operator
		Value    any
	}

	// Containment is a case-insensitive substring test for textual values
	// and an element test for sequences.
	Containment struct {
		Path    string
		Negated bool
		Value   any
	}

	// NullCheck is Path IS NULL, or IS NOT NULL when Negated.
	NullCheck struct {
		Path    string
		Negated bool
	}

	// PatternMatch matches the textual form of Path against Pattern.
	PatternMatch struct {
		Path    string
		Pattern *regexp.Regexp
	}

	// Composite joins children with AND or OR.
	Composite struct {
		Conjunction Conjunction
		Children    []Expr
	}
)

func (Always) expr()       {}
func (Comparison) expr()   {}
func (Range) expr()        {}
func (Membership) expr()   {}
func (StringMatch) expr()  {}
func (Containment) expr()  {}
func (NullCheck) expr()    {}
func (PatternMatch) expr() {}
func (Composite) expr()    {}

// Visitor lowers each IR node into R. VisitComposite receives the already
// lowered children in order.
type Visitor[R any] interface {
	VisitAlways() (R, error)
	VisitComparison(Comparison) (R, error)
	VisitRange(Range) (R, error)
	VisitMembership(Membership) (R, error)
	VisitStringMatch(StringMatch) (R, error)
	VisitContainment(Containment) (R, error)
	VisitNullCheck(NullCheck) (R, error)
	VisitPatternMatch(PatternMatch) (R, error)
	VisitComposite(c Composite, children []R) (R, error)
}

// Lower walks e depth-first and interprets it with v.
func Lower[R any](e Expr, v Visitor[R]) (R, error) {
	switch e := e.(type) {
	case nil, Always:
		return v.VisitAlways()
	case Comparison:
		return v.VisitComparison(e)
	case Range:
		return v.VisitRange(e)
	case Membership:
		return v.VisitMembership(e)
	case StringMatch:
		return v.VisitStringMatch(e)
	case Containment:
		return v.VisitContainment(e)
	case NullCheck:
		return v.VisitNullCheck(e)
	case PatternMatch:
		return v.VisitPatternMatch(e)
	case Composite:
		children := make([]R, 0, len(e.Children))
		for _, child := range e.Children {
			r, err := Lower(child, v)
			if err != nil {
				var zero R
				return zero, err
			}
			children = append(children, r)
		}

		return v.VisitComposite(e, children)
	default:
		panic(fmt.Errorf("unexpected expression node %T", e))
	}
}
