// Package gosieve filters, sorts and pages collections of arbitrary Go types
// with runtime-described queries.
//
// Overview
//
// A query is three descriptors: a FilterGroup tree of criteria, a list of
// SortKeys and a PagingDescriptor. Properties are addressed by dotted,
// case-insensitive paths resolved with reflection or with explicit Getters.
//
// Filter trees are compiled into an intermediate representation (Expr) and
// then interpreted by a Visitor. The package ships three of them:
//   - in-memory predicates over iter.Seq, see Sieve.Filter and Sieve.Apply;
//   - gorm clauses, see Sieve.FilterQuery and Sieve.ApplyQuery;
//   - plain SQL text, see Sieve.ToSQL.
//
// The bsonsieve subpackage lowers the same trees into MongoDB filters.
//
// Key concepts
//   - Engine: owns the accessor and predicate caches, configuration and
//     logging. Default() is shared by the package level helpers.
//   - Sieve: a typed view of an Engine for elements of one type.
//   - Coerce: converts filter literals into the type of the property they are
//     compared with.
//   - Cursor paging: Before and After page through a sequence by the value of
//     one property. Before takes precedence over After.
package gosieve
