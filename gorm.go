package gosieve

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FilterQuery adds group to the WHERE clause of db. Criteria on paths without
// a column are skipped.
func (s *Sieve[T]) FilterQuery(db *gorm.DB, group FilterGroup) (*gorm.DB, error) {
	if db == nil {
		return nil, nil
	}

	exp, err := s.condition(db.NamingStrategy, Dialect(db.Dialector.Name()), group)
	if err != nil {
		return nil, fmt.Errorf("cannot filter query: %w", err)
	}
	if exp == nil {
		return db, nil
	}

	return db.Clauses(exp), nil
}

// SortQuery appends keys to the ORDER BY clause of db.
func (s *Sieve[T]) SortQuery(db *gorm.DB, keys ...SortKey) (*gorm.DB, error) {
	if db == nil {
		return nil, nil
	}

	columns, err := s.orderColumns(db.NamingStrategy, keys)
	if err != nil {
		return nil, fmt.Errorf("cannot sort query: %w", err)
	}

	for _, c := range columns {
		db = db.Order(c)
	}

	return db, nil
}

// PageQuery applies offset paging to db. Cursor fields are ignored.
func PageQuery(db *gorm.DB, p PagingDescriptor) *gorm.DB {
	if db == nil {
		return nil
	}

	if p.Offset > 0 {
		db = db.Offset(p.Offset)
	}
	if !p.IsUnbounded() {
		db = db.Limit(p.Limit)
	}

	return db
}

// CursorQuery applies cursor paging keyed on the column of path. Before reads
// rows strictly below the cursor in descending order, After rows strictly
// above it in ascending order. Rows with a null cursor column are excluded.
func (s *Sieve[T]) CursorQuery(db *gorm.DB, p PagingDescriptor, path string) (*gorm.DB, error) {
	if db == nil {
		return nil, nil
	}

	c, ok, err := s.column(db.NamingStrategy, path)
	if err != nil {
		return nil, fmt.Errorf("cannot page query: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("cannot page query: %w: cursor path '%s' has no column", ErrMissingArgument, path)
	}

	raw, mode := p.cursor()
	direction := DirectionASC
	if mode == cursorBefore {
		direction = DirectionDESC
	}

	if mode != cursorNone {
		bound, err := (&sqlLowering[T]{sieve: s}).value(c, raw)
		if err != nil {
			s.engine.logger.Debug("cursor ignored", "path", path, "cursor", raw, "error", err)
			direction = DirectionASC
		} else {
			db = db.Clauses(tConjunct{
				Column:   c.ref,
				Operator: direction.ForOperator(),
				Value:    bound,
			}.toGORMExpression())
		}
	}

	if c.nullable() {
		db = db.Clauses(clause.Neq{Column: c.ref})
	}

	db = db.Order(clause.OrderByColumn{Column: c.ref, Desc: direction == DirectionDESC})
	if !p.IsUnbounded() {
		db = db.Limit(p.Limit)
	}

	return db, nil
}

// ApplyQuery is Apply for gorm queries: it filters, then pages either by the
// cursor path or by offset over the sorted rows.
func (s *Sieve[T]) ApplyQuery(db *gorm.DB, q Query) (*gorm.DB, error) {
	db, err := s.FilterQuery(db, q.Filter)
	if err != nil || db == nil {
		return db, err
	}

	if q.CursorPath != "" {
		return s.CursorQuery(db, q.Paging, q.CursorPath)
	}

	db, err = s.SortQuery(db, q.Sort...)
	if err != nil {
		return nil, err
	}

	return PageQuery(db, q.Paging), nil
}
