package gosieve

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Conjunction joins the children of a FilterGroup.
type Conjunction string

const (
	ConjunctionAnd Conjunction = "AND"
	ConjunctionOr  Conjunction = "OR"
)

// Valid reports whether c is a known conjunction. The zero value is valid and
// means AND.
func (c Conjunction) Valid() bool {
	return c == "" || c == ConjunctionAnd || c == ConjunctionOr
}

func (c Conjunction) orDefault() Conjunction {
	if c == "" {
		return ConjunctionAnd
	}

	return c
}

// FilterNode is either a FilterCriterion or a FilterGroup.
type FilterNode interface {
	writeShape(b *strings.Builder) bool
	filterNode()
}

// FilterCriterion is a leaf of the filter tree: Operator(Path, Values...).
//
// The number of values depends on the operator: none for IsNull/IsNotNull,
// two for Between/NotBetween, any number for In/NotIn and one otherwise.
type FilterCriterion struct {
	Path     string   `json:"path"`
	Operator Operator `json:"operator"`
	Values   []any    `json:"values,omitempty"`
}

// Where builds a FilterCriterion.
//
//	gosieve.Where("Address.City", gosieve.OperatorEqualTo, "Berlin")
func Where(path string, operator Operator, values ...any) FilterCriterion {
	return FilterCriterion{
		Path:     path,
		Operator: operator,
		Values:   values,
	}
}

func (FilterCriterion) filterNode() {}

// FilterGroup combines its children with a conjunction. Groups nest
// arbitrarily; an empty group matches everything.
type FilterGroup struct {
	Conjunction Conjunction  `json:"conjunction"`
	Children    []FilterNode `json:"children,omitempty"`
}

// And groups children under AND.
func And(children ...FilterNode) FilterGroup {
	return FilterGroup{Conjunction: ConjunctionAnd, Children: children}
}

// Or groups children under OR.
func Or(children ...FilterNode) FilterGroup {
	return FilterGroup{Conjunction: ConjunctionOr, Children: children}
}

func (FilterGroup) filterNode() {}

// IsEmpty reports whether the group has no children.
func (g FilterGroup) IsEmpty() bool {
	return len(g.Children) == 0
}

// UnmarshalJSON decodes a group from API payloads. A child object holding
// "conjunction" or "children" is a nested group, any other is a criterion:
//
//	{"conjunction": "OR", "children": [
//	    {"path": "age", "operator": "gt", "values": [30]},
//	    {"children": [{"path": "email", "operator": "isNull"}]}
//	]}
func (g *FilterGroup) UnmarshalJSON(data []byte) error {
	var raw struct {
		Conjunction Conjunction       `json:"conjunction"`
		Children    []json.RawMessage `json:"children"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("cannot decode filter group: %w", err)
	}

	children := make([]FilterNode, 0, len(raw.Children))
	for _, child := range raw.Children {
		if bytes.Equal(bytes.TrimSpace(child), []byte("null")) {
			children = append(children, nil)
			continue
		}

		var probe map[string]json.RawMessage
		if err := json.Unmarshal(child, &probe); err != nil {
			return fmt.Errorf("cannot decode filter node: %w", err)
		}

		_, hasConjunction := probe["conjunction"]
		_, hasChildren := probe["children"]
		if hasConjunction || hasChildren {
			var sub FilterGroup
			if err := json.Unmarshal(child, &sub); err != nil {
				return err
			}
			children = append(children, sub)
			continue
		}

		var c FilterCriterion
		if err := json.Unmarshal(child, &c); err != nil {
			return fmt.Errorf("cannot decode filter criterion: %w", err)
		}
		children = append(children, c)
	}

	*g = FilterGroup{Conjunction: raw.Conjunction, Children: children}

	return nil
}

var (
	_ FilterNode = FilterCriterion{}
	_ FilterNode = FilterGroup{}
)
