package gosieve

import (
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	cacheAccessors  = "accessors"
	cachePredicates = "predicates"
)

// memo is a concurrent get-or-create cache. Two callers racing on the same key
// may both run create, but only one entry is ever stored and both get it.
// Once size entries are stored, new values are returned without being kept.
type memo[K comparable, V any] struct {
	name     string
	disabled bool
	size     int
	stored   atomic.Int64
	entries  sync.Map
	lookups  *prometheus.CounterVec
}

func newMemo[K comparable, V any](name string, disabled bool, size int, lookups *prometheus.CounterVec) *memo[K, V] {
	return &memo[K, V]{
		name:     name,
		disabled: disabled,
		size:     size,
		lookups:  lookups,
	}
}

func (m *memo[K, V]) getOrCreate(key K, create func() V) V {
	if m.disabled {
		return create()
	}

	if v, ok := m.entries.Load(key); ok {
		m.count("hit")
		return v.(V)
	}

	m.count("miss")
	v := create()
	if m.size > 0 && m.stored.Add(1) > int64(m.size) {
		m.stored.Add(-1)
		return v
	}

	actual, loaded := m.entries.LoadOrStore(key, v)
	if loaded {
		m.stored.Add(-1)
	}

	return actual.(V)
}

func (m *memo[K, V]) len() int {
	n := 0
	m.entries.Range(func(_, _ any) bool {
		n++
		return true
	})

	return n
}

func (m *memo[K, V]) count(result string) {
	if m.lookups != nil {
		m.lookups.WithLabelValues(m.name, result).Inc()
	}
}

func newLookupsCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gosieve",
			Name:      "cache_lookups_total",
			Help:      "Total number of accessor and predicate cache lookups.",
		},
		[]string{"cache", "result"},
	)
}
