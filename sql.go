package gosieve

import (
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"

	"github.com/samber/lo"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// Dialect selects the SQL flavour of operators without a portable form.
type Dialect string

const (
	DialectMySQL    Dialect = "mysql"
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

var _likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// sqlColumn is a property path mapped onto a column reference. accessor is
// nil for mapped aliases that do not resolve on the element type.
type sqlColumn struct {
	ref      clause.Column
	accessor *Accessor
}

func (c sqlColumn) nullable() bool {
	return c.accessor != nil && nilable(c.accessor.Type())
}

func (c sqlColumn) static() bool {
	return c.accessor != nil && !c.accessor.Dynamic()
}

// column maps path onto a column. Aliases of the column mapping are written
// as they are. Other paths use the gorm column tag or the naming strategy,
// and nested paths are qualified by the relations they traverse, the way
// gorm aliases joined relations.
func (s *Sieve[T]) column(namer schema.Namer, path string) (sqlColumn, bool, error) {
	a, resolved := s.Resolve(path)

	if mapped, ok := s.Column(path); ok {
		if !lo.Every(_availableColumnNameSymbols, []rune(mapped)) {
			return sqlColumn{}, false, fmt.Errorf("column name contains forbidden symbols '%s'", mapped)
		}
		return sqlColumn{ref: clause.Column{Name: mapped, Raw: true}, accessor: a}, true, nil
	}

	if !resolved || len(a.tail) > 0 {
		s.engine.logger.Debug("path has no column", "type", s.typ.String(), "path", path)
		return sqlColumn{}, false, nil
	}

	var hops []string
	if a.getter != nil {
		for _, name := range strings.Split(a.Path(), ".") {
			hops = append(hops, strings.TrimSpace(name))
		}
	} else {
		for _, seg := range a.Segments() {
			hops = append(hops, seg.Name)
		}
	}
	if len(hops) == 0 {
		return sqlColumn{}, false, nil
	}

	var ref clause.Column
	if a.getter != nil {
		ref.Name = namer.ColumnName("", hops[len(hops)-1])
	} else {
		ref.Name = segmentColumn(namer, a.Segments()[len(hops)-1])
	}
	if len(hops) > 1 {
		ref.Table = strings.Join(hops[:len(hops)-1], "__")
	}

	return sqlColumn{ref: ref, accessor: a}, true, nil
}

func segmentColumn(namer schema.Namer, seg Segment) string {
	if seg.Field != nil {
		if name := schema.ParseTagSetting(seg.Field.Tag.Get("gorm"), ";")["COLUMN"]; name != "" {
			return name
		}
	}

	return namer.ColumnName("", seg.Name)
}

// sqlLowering lowers the IR into gorm clause expressions. A nil expression
// is no condition at all.
type sqlLowering[T any] struct {
	sieve   *Sieve[T]
	namer   schema.Namer
	dialect Dialect
}

func (l *sqlLowering[T]) column(path string) (sqlColumn, bool, error) {
	return l.sieve.column(l.namer, path)
}

// value coerces a literal into the column's property type.
func (l *sqlLowering[T]) value(c sqlColumn, raw any) (any, error) {
	if !c.static() {
		return raw, nil
	}

	v, err := coerce(raw, baseType(c.accessor.Type()))
	if err != nil {
		return nil, fmt.Errorf("cannot use value for '%s': %w", c.accessor.Path(), err)
	}

	return v.Interface(), nil
}

func (l *sqlLowering[T]) VisitAlways() (clause.Expression, error) {
	return nil, nil
}

func (l *sqlLowering[T]) VisitComparison(cmp Comparison) (clause.Expression, error) {
	c, ok, err := l.column(cmp.Path)
	if err != nil || !ok {
		return nil, err
	}

	if isNil(cmp.Value) {
		switch cmp.Operator {
		case OperatorEqualTo:
			return clause.Eq{Column: c.ref}, nil
		case OperatorNotEqualTo:
			return clause.Neq{Column: c.ref}, nil
		default:
			return nil, fmt.Errorf("%w: operator '%s' on '%s' cannot compare with null",
				ErrUnsupportedOperation, cmp.Operator, cmp.Path)
		}
	}

	if cmp.Operator.isOrdering() && c.static() && !orderable(c.accessor.Type()) {
		return nil, fmt.Errorf("%w: operator '%s' on '%s' of type %s",
			ErrUnsupportedOperation, cmp.Operator, cmp.Path, c.accessor.Type())
	}

	v, err := l.value(c, cmp.Value)
	if err != nil {
		return nil, err
	}

	switch cmp.Operator {
	case OperatorEqualTo:
		return clause.Eq{Column: c.ref, Value: v}, nil
	case OperatorNotEqualTo:
		neq := clause.Neq{Column: c.ref, Value: v}
		if c.nullable() {
			return clause.Or(neq, clause.Eq{Column: c.ref}), nil
		}
		return neq, nil
	case OperatorGreaterThan:
		return clause.Gt{Column: c.ref, Value: v}, nil
	case OperatorLessThan:
		return clause.Lt{Column: c.ref, Value: v}, nil
	case OperatorGreaterThanOrEqualTo:
		return clause.Gte{Column: c.ref, Value: v}, nil
	case OperatorLessThanOrEqualTo:
		return clause.Lte{Column: c.ref, Value: v}, nil
	default:
		panic(fmt.Errorf("unexpected comparison operator '%s'", cmp.Operator))
	}
}

func (l *sqlLowering[T]) VisitRange(r Range) (clause.Expression, error) {
	c, ok, err := l.column(r.Path)
	if err != nil || !ok {
		return nil, err
	}

	if c.static() && !orderable(c.accessor.Type()) {
		return nil, fmt.Errorf("%w: range on '%s' of type %s", ErrUnsupportedOperation, r.Path, c.accessor.Type())
	}

	low, err := l.value(c, r.Low)
	if err != nil {
		return nil, err
	}
	high, err := l.value(c, r.High)
	if err != nil {
		return nil, err
	}

	if r.Negated {
		return clause.Or(clause.Lt{Column: c.ref, Value: low}, clause.Gt{Column: c.ref, Value: high}), nil
	}

	return clause.And(clause.Gt{Column: c.ref, Value: low}, clause.Lt{Column: c.ref, Value: high}), nil
}

func (l *sqlLowering[T]) VisitMembership(m Membership) (clause.Expression, error) {
	c, ok, err := l.column(m.Path)
	if err != nil || !ok {
		return nil, err
	}

	var (
		values   = make([]any, 0, len(m.Values))
		withNull bool
	)
	for _, raw := range m.Values {
		if isNil(raw) {
			withNull = true
			continue
		}

		v, err := l.value(c, raw)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}

	if !m.Negated {
		switch {
		case len(values) == 0 && !withNull:
			return clause.Expr{SQL: "FALSE"}, nil
		case len(values) == 0:
			return clause.Eq{Column: c.ref}, nil
		case withNull:
			return clause.Or(clause.IN{Column: c.ref, Values: values}, clause.Eq{Column: c.ref}), nil
		default:
			return clause.IN{Column: c.ref, Values: values}, nil
		}
	}

	switch {
	case len(values) == 0 && !withNull:
		return nil, nil
	case len(values) == 0:
		return clause.Neq{Column: c.ref}, nil
	case withNull:
		return clause.And(clause.Not(clause.IN{Column: c.ref, Values: values}), clause.Neq{Column: c.ref}), nil
	case c.nullable():
		return clause.Or(clause.Not(clause.IN{Column: c.ref, Values: values}), clause.Eq{Column: c.ref}), nil
	default:
		return clause.Not(clause.IN{Column: c.ref, Values: values}), nil
	}
}

func (l *sqlLowering[T]) VisitStringMatch(sm StringMatch) (clause.Expression, error) {
	c, ok, err := l.column(sm.Path)
	if err != nil || !ok {
		return nil, err
	}

	needle := _likeEscaper.Replace(strings.ToLower(stringify(reflect.ValueOf(sm.Value))))
	pattern := needle + "%"
	if sm.Operator == OperatorEndsWith {
		pattern = "%" + needle
	}

	return like(c.ref, pattern, false), nil
}

func (l *sqlLowering[T]) VisitContainment(ct Containment) (clause.Expression, error) {
	c, ok, err := l.column(ct.Path)
	if err != nil || !ok {
		return nil, err
	}

	if c.static() && isSequence(c.accessor.Type()) {
		if l.dialect != DialectPostgres {
			return nil, fmt.Errorf("%w: element test on '%s' with %s",
				ErrUnsupportedOperation, ct.Path, lo.CoalesceOrEmpty(string(l.dialect), "unknown dialect"))
		}

		ev, err := coerce(ct.Value, baseType(baseType(c.accessor.Type()).Elem()))
		if err != nil {
			return nil, fmt.Errorf("cannot use value for '%s': %w", ct.Path, err)
		}

		elem := clause.Expr{SQL: "? = ANY(?)", Vars: []any{ev.Interface(), c.ref}}
		if ct.Negated {
			return clause.Or(clause.Not(elem), clause.Eq{Column: c.ref}), nil
		}
		return elem, nil
	}

	pattern := "%" + _likeEscaper.Replace(strings.ToLower(stringify(reflect.ValueOf(ct.Value)))) + "%"
	if ct.Negated {
		return clause.Or(like(c.ref, pattern, true), clause.Eq{Column: c.ref}), nil
	}

	return like(c.ref, pattern, false), nil
}

func like(col clause.Column, pattern string, negated bool) clause.Expression {
	sql := "LOWER(?) LIKE ? ESCAPE '!'"
	if negated {
		sql = "LOWER(?) NOT LIKE ? ESCAPE '!'"
	}

	return clause.Expr{SQL: sql, Vars: []any{col, pattern}}
}

func (l *sqlLowering[T]) VisitNullCheck(n NullCheck) (clause.Expression, error) {
	c, ok, err := l.column(n.Path)
	if err != nil || !ok {
		return nil, err
	}

	if n.Negated {
		return clause.Neq{Column: c.ref}, nil
	}

	return clause.Eq{Column: c.ref}, nil
}

func (l *sqlLowering[T]) VisitPatternMatch(p PatternMatch) (clause.Expression, error) {
	c, ok, err := l.column(p.Path)
	if err != nil || !ok {
		return nil, err
	}

	switch l.dialect {
	case DialectPostgres:
		return clause.Expr{SQL: "? ~ ?", Vars: []any{c.ref, p.Pattern.String()}}, nil
	case DialectMySQL, DialectSQLite:
		return clause.Expr{SQL: "? REGEXP ?", Vars: []any{c.ref, p.Pattern.String()}}, nil
	default:
		return nil, fmt.Errorf("%w: regex on '%s' with %s",
			ErrUnsupportedOperation, p.Path, lo.CoalesceOrEmpty(string(l.dialect), "unknown dialect"))
	}
}

func (l *sqlLowering[T]) VisitComposite(c Composite, children []clause.Expression) (clause.Expression, error) {
	// A child without restriction satisfies a disjunction on its own.
	if c.Conjunction == ConjunctionOr && lo.ContainsBy(children, func(e clause.Expression) bool { return e == nil }) {
		return nil, nil
	}

	exprs := lo.Filter(children, func(e clause.Expression, _ int) bool {
		return e != nil
	})

	switch {
	case len(exprs) == 0:
		return nil, nil
	case len(exprs) == 1:
		return exprs[0], nil
	case c.Conjunction == ConjunctionOr:
		return clause.Or(exprs...), nil
	default:
		return clause.And(exprs...), nil
	}
}

// condition lowers group into a single gorm condition, nil when it places no
// restriction.
func (s *Sieve[T]) condition(namer schema.Namer, dialect Dialect, group FilterGroup) (clause.Expression, error) {
	expr, err := BuildExpr(group)
	if err != nil {
		return nil, err
	}

	return Lower[clause.Expression](expr, &sqlLowering[T]{sieve: s, namer: namer, dialect: dialect})
}

// ToSQL renders group as an SQL condition with "?" placeholders and the
// values that bind to them. Column names follow the default gorm naming
// strategy. A filter that places no restriction renders as "TRUE".
//
// Usage:
//
//	where, args, err := s.ToSQL(group, gosieve.DialectPostgres)
//	query := fmt.Sprintf("SELECT * FROM users WHERE %s", where)
func (s *Sieve[T]) ToSQL(group FilterGroup, dialect Dialect) (string, []driver.Value, error) {
	exp, err := s.condition(schema.NamingStrategy{}, dialect, group)
	if err != nil {
		return "", nil, fmt.Errorf("cannot render filter: %w", err)
	}
	if exp == nil {
		return "TRUE", nil, nil
	}

	w := new(sqlWriter)
	exp.Build(w)
	if w.err != nil {
		return "", nil, fmt.Errorf("cannot render filter: %w", w.err)
	}

	return w.String(), w.vars, nil
}

// OrderSQL renders keys as an ORDER BY list over column names. Keys on paths
// without a column are skipped.
func (s *Sieve[T]) OrderSQL(keys ...SortKey) (string, error) {
	columns, err := s.orderColumns(schema.NamingStrategy{}, keys)
	if err != nil {
		return "", err
	}

	ret := make(SortKeys, 0, len(columns))
	for _, c := range columns {
		name := c.Column.Name
		if c.Column.Table != "" {
			name = c.Column.Table + "." + name
		}
		ret = append(ret, SortKey{Path: name, Direction: lo.Ternary(c.Desc, DirectionDESC, DirectionASC)})
	}

	return ret.ToSQL()
}

func (s *Sieve[T]) orderColumns(namer schema.Namer, keys []SortKey) ([]clause.OrderByColumn, error) {
	ret := make([]clause.OrderByColumn, 0, len(keys))
	for _, key := range keys {
		if !key.Direction.Valid() {
			return nil, fmt.Errorf("invalid ordering direction '%s'", key.Direction)
		}

		c, ok, err := s.column(namer, key.Path)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		ret = append(ret, clause.OrderByColumn{Column: c.ref, Desc: key.Direction == DirectionDESC})
	}

	return ret, nil
}

// sqlWriter is a clause.Builder producing plain SQL text with unquoted
// identifiers and "?" placeholders.
type sqlWriter struct {
	strings.Builder
	vars []driver.Value
	err  error
}

func (w *sqlWriter) WriteQuoted(field any) {
	switch v := field.(type) {
	case clause.Column:
		if v.Table != "" {
			w.WriteString(v.Table)
			w.WriteByte('.')
		}
		w.WriteString(v.Name)
	case clause.Table:
		w.WriteString(v.Name)
	default:
		w.WriteString(fmt.Sprint(v))
	}
}

func (w *sqlWriter) AddVar(writer clause.Writer, vars ...any) {
	for i, v := range vars {
		if i > 0 {
			writer.WriteByte(',')
		}

		switch v := v.(type) {
		case clause.Column, clause.Table:
			w.WriteQuoted(v)
		case clause.Expression:
			v.Build(w)
		case []any:
			writer.WriteByte('(')
			w.AddVar(writer, v...)
			writer.WriteByte(')')
		default:
			writer.WriteByte('?')
			w.vars = append(w.vars, v)
		}
	}
}

func (w *sqlWriter) AddError(err error) error {
	if w.err == nil {
		w.err = err
	}

	return err
}

var _ clause.Builder = (*sqlWriter)(nil)
