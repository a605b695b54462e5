package gosieve

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookups(e *Engine, cache, result string) float64 {
	return testutil.ToFloat64(e.lookups.WithLabelValues(cache, result))
}

func TestEngine_cacheLookups(t *testing.T) {
	e := New()
	s := Of[tUser](e)
	group := And(Where("Age", OperatorGreaterThan, 18))

	_, err := s.Predicate(group)
	require.NoError(t, err)
	_, err = s.Predicate(group)
	require.NoError(t, err)
	_, err = s.Predicate(And(Where("Age", OperatorGreaterThan, 21)))
	require.NoError(t, err)

	assert.Equal(t, 2.0, lookups(e, cachePredicates, "miss"))
	assert.Equal(t, 1.0, lookups(e, cachePredicates, "hit"))
	assert.Equal(t, 2, e.predicates.len())

	e = New()
	_, ok := e.Resolve(reflect.TypeFor[tUser](), "Name")
	require.True(t, ok)
	_, ok = e.Resolve(reflect.TypeFor[tUser](), "Name")
	require.True(t, ok)
	assert.Equal(t, 1.0, lookups(e, cacheAccessors, "miss"))
	assert.Equal(t, 1.0, lookups(e, cacheAccessors, "hit"))
}

func TestEngine_cachesFailures(t *testing.T) {
	e := New()
	s := Of[tUser](e)
	group := And(Where("Age", OperatorGreaterThan, "old"))

	_, err := s.Predicate(group)
	require.ErrorIs(t, err, ErrFormat)
	_, err = s.Predicate(group)
	require.ErrorIs(t, err, ErrFormat)

	assert.Equal(t, 1.0, lookups(e, cachePredicates, "hit"))
}

func TestEngine_WithoutCache(t *testing.T) {
	e := New(WithoutCache())
	s := Of[tUser](e)
	group := And(Where("Age", OperatorGreaterThan, 18))

	for range 3 {
		_, err := s.Predicate(group)
		require.NoError(t, err)
	}

	assert.Equal(t, 0, e.predicates.len())
	assert.Equal(t, 0.0, lookups(e, cachePredicates, "hit"))
	assert.Equal(t, 0.0, lookups(e, cachePredicates, "miss"))

	e = New(WithConfig(Config{DefaultLimit: 1, MaxLimit: 1, DisableCache: true}))
	_, _ = e.Resolve(reflect.TypeFor[tUser](), "Age")
	assert.Equal(t, 0, e.accessors.len())
}

func TestEngine_Collectors(t *testing.T) {
	e := New()
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(e.Collectors()[0]))

	_, _ = e.Resolve(reflect.TypeFor[tUser](), "Age")
	require.Equal(t, 1, testutil.CollectAndCount(e.lookups, "gosieve_cache_lookups_total"))
}

func TestEngine_scopesPerGetters(t *testing.T) {
	e := New()
	plain := Of[tUser](e)
	custom := Of[tUser](e).WithGetters(Getters[tUser]{
		"Age": func(u tUser) any { return u.Age * 2 },
	})

	group := And(Where("Age", OperatorGreaterThan, 40))
	users := fixtureUsers()

	p1, err := plain.Predicate(group)
	require.NoError(t, err)
	p2, err := custom.Predicate(group)
	require.NoError(t, err)

	assert.False(t, p1(users[0]))
	assert.True(t, p2(users[0]))
}

func TestEngine_invalidConfig(t *testing.T) {
	for name, cfg := range map[string]Config{
		"zero value":        {},
		"default above max": {DefaultLimit: 50, MaxLimit: 20},
		"negative cache":    {DefaultLimit: 5, MaxLimit: 20, CacheSize: -1},
		"unknown log level": {DefaultLimit: 5, MaxLimit: 20, LogLevel: "loud"},
	} {
		t.Run(name, func(t *testing.T) {
			e := New(WithConfig(cfg))
			require.Equal(t, DefaultConfig(), e.Config())

			p, err := e.DecodePaging(RawPaging{})
			require.NoError(t, err)
			require.Equal(t, DefaultLimit, p.Limit)
		})
	}
}

func TestEngine_logger(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	e := New(WithLogger(logger))
	require.Same(t, logger, e.logger)

	require.Same(t, Default(), Default())
	require.Equal(t, DefaultConfig(), Default().Config())
}

func Test_newDispatchTable(t *testing.T) {
	require.NotPanics(t, func() { newDispatchTable(_handlers...) })

	require.PanicsWithError(t, "operator 'eq' is serviced by both gosieve.equalityHandler and gosieve.equalityHandler", func() {
		newDispatchTable(append(_handlers, equalityHandler{})...)
	})

	require.Panics(t, func() {
		newDispatchTable(_handlers[1:]...)
	})

	require.Panics(t, func() {
		_, _ = equalityHandler{}.Build(Where("Age", OperatorGreaterThan, 1))
	})
}

func Test_dispatchTable_build(t *testing.T) {
	_, err := _dispatch.build(Where("Age", "approximately", 1))
	require.ErrorIs(t, err, ErrUnknownOperator)

	expr, err := _dispatch.build(Where("Age", OperatorIn, []int{1, 2}))
	require.NoError(t, err)
	require.Equal(t, Membership{Path: "Age", Values: []any{1, 2}}, expr)
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig("GOSIEVE")
		require.NoError(t, err)
		require.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("GOSIEVE_MAX_LIMIT", "500")
		t.Setenv("GOSIEVE_LOG_LEVEL", "debug")

		cfg, err := LoadConfig("GOSIEVE")
		require.NoError(t, err)
		require.Equal(t, 500, cfg.MaxLimit)
		require.Equal(t, DefaultLimit, cfg.DefaultLimit)
		require.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("file", func(t *testing.T) {
		dir := t.TempDir()
		content := "default_limit: 25\nmax_limit: 50\ndisable_cache: true\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "gosieve.yaml"), []byte(content), 0o600))

		cfg, err := LoadConfig("GOSIEVE", dir)
		require.NoError(t, err)
		require.Equal(t, Config{DefaultLimit: 25, MaxLimit: 50, DisableCache: true}, cfg)
	})

	t.Run("environment overrides file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "gosieve.yaml"), []byte("max_limit: 50\n"), 0o600))
		t.Setenv("GOSIEVE_MAX_LIMIT", "70")

		cfg, err := LoadConfig("GOSIEVE", dir)
		require.NoError(t, err)
		require.Equal(t, 70, cfg.MaxLimit)
	})

	t.Run("missing file", func(t *testing.T) {
		cfg, err := LoadConfig("GOSIEVE", t.TempDir())
		require.NoError(t, err)
		require.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("invalid", func(t *testing.T) {
		for name, env := range map[string][2]string{
			"max limit":     {"GOSIEVE_MAX_LIMIT", "0"},
			"default limit": {"GOSIEVE_DEFAULT_LIMIT", "100000"},
			"log level":     {"GOSIEVE_LOG_LEVEL", "loud"},
			"cache size":    {"GOSIEVE_CACHE_SIZE", "-1"},
			"not a number":  {"GOSIEVE_MAX_LIMIT", "many"},
		} {
			t.Run(name, func(t *testing.T) {
				t.Setenv(env[0], env[1])

				_, err := LoadConfig("GOSIEVE")
				require.Error(t, err)
			})
		}
	})
}
