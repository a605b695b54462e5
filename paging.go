package gosieve

import (
	"fmt"
	"iter"
)

// PagingDescriptor selects a window of a sequence.
//
// Offset paging windows [Offset, Offset+Limit) over the sequence as ordered by
// the caller. Cursor paging is keyed on a property: Before returns the Limit
// elements closest to, but below, the cursor in descending order and After
// returns the Limit elements following it in ascending order. When both are
// set Before wins and After is ignored. An empty cursor string is absent.
//
// Limit 0 (Unbounded) means no limit, not an empty page.
type PagingDescriptor struct {
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

// OffsetPage pages by offset.
func OffsetPage(offset, limit int) PagingDescriptor {
	return PagingDescriptor{Offset: offset, Limit: limit}
}

// PageAfter pages forward from cursor.
func PageAfter(cursor string, limit int) PagingDescriptor {
	return PagingDescriptor{After: cursor, Limit: limit}
}

// PageBefore pages backward from cursor.
func PageBefore(cursor string, limit int) PagingDescriptor {
	return PagingDescriptor{Before: cursor, Limit: limit}
}

// IsUnbounded reports whether the page has no limit.
func (p PagingDescriptor) IsUnbounded() bool {
	return p.Limit <= Unbounded
}

// NextOffset returns the offset page following p.
func (p PagingDescriptor) NextOffset() PagingDescriptor {
	return OffsetPage(max(p.Offset, 0)+max(p.Limit, 0), p.Limit)
}

type cursorMode int

const (
	cursorNone cursorMode = iota
	cursorBefore
	cursorAfter
)

// Cursor returns the cursor in effect and reports whether it is the Before
// cursor. The cursor is empty when p pages by offset.
func (p PagingDescriptor) Cursor() (cursor string, before bool) {
	cursor, mode := p.cursor()

	return cursor, mode == cursorBefore
}

// cursor returns the cursor in effect. Before takes precedence and After is
// never consulted when Before is set.
func (p PagingDescriptor) cursor() (string, cursorMode) {
	switch {
	case p.Before != "":
		return p.Before, cursorBefore
	case p.After != "":
		return p.After, cursorAfter
	default:
		return "", cursorNone
	}
}

// Paginate windows seq by Offset and Limit. Cursor fields are ignored.
// A nil seq yields nil.
func Paginate[T any](seq iter.Seq[T], p PagingDescriptor) iter.Seq[T] {
	if seq == nil {
		return nil
	}

	offset := max(p.Offset, 0)
	if offset == 0 && p.IsUnbounded() {
		return seq
	}

	return func(yield func(T) bool) {
		skipped, taken := 0, 0
		for item := range seq {
			if skipped < offset {
				skipped++
				continue
			}
			if !p.IsUnbounded() && taken >= p.Limit {
				return
			}
			taken++
			if !yield(item) {
				return
			}
		}
	}
}

// RawPaging is intended for API payloads. Cursors travel as opaque tokens
// produced by EncodeCursor. For proper code generation, inline it:
//
//	type MyFilter struct {
//	    Paging RawPaging `json:",inline"`
//	}
type RawPaging struct {
	// Limit - maximum number of records to return in the response.
	// Zero or negative values fall back to the configured default and NoLimit
	// requests every record.
	Limit int `json:"limit"`
	// Offset - number of records to skip when no cursor is given.
	Offset int `json:"offset"`
	// Before - base64-encoded cursor token.
	Before string `json:"before"`
	// After - base64-encoded cursor token.
	After string `json:"after"`
}

// Decode converts RawPaging into a PagingDescriptor using the default engine
// configuration.
func (p RawPaging) Decode() (PagingDescriptor, error) {
	return Default().DecodePaging(p)
}

// DecodePaging normalizes the limit against the engine configuration and
// decodes the cursor tokens.
func (e *Engine) DecodePaging(p RawPaging) (PagingDescriptor, error) {
	if p.Offset < 0 {
		return PagingDescriptor{}, fmt.Errorf("cannot decode paging: negative offset %d", p.Offset)
	}

	before, err := DecodeCursor(p.Before)
	if err != nil {
		return PagingDescriptor{}, fmt.Errorf("cannot decode paging: %w", err)
	}

	after, err := DecodeCursor(p.After)
	if err != nil {
		return PagingDescriptor{}, fmt.Errorf("cannot decode paging: %w", err)
	}

	limit, ok := normalizeLimitConfig(p.Limit, e.config)
	if !ok && p.Limit > 0 {
		e.logger.Debug("paging limit clamped", "limit", p.Limit, "max", e.config.MaxLimit)
	}

	return PagingDescriptor{
		Offset: p.Offset,
		Limit:  limit,
		Before: before,
		After:  after,
	}, nil
}
