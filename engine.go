package gosieve

import (
	"log/slog"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Engine resolves paths and compiles filter trees. It owns the accessor and
// predicate caches, so elements of the same type share compiled work across
// every Sieve built from one Engine. An Engine is safe for concurrent use.
type Engine struct {
	logger     *slog.Logger
	config     Config
	noCache    bool
	lookups    *prometheus.CounterVec
	accessors  *memo[accessorKey, *Accessor]
	predicates *memo[predicateKey, compiled]
}

type Option func(e *Engine)

// WithLogger sets the logger used for debug records about skipped paths.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithConfig replaces the default configuration. An invalid configuration is
// logged and the defaults are used instead.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		e.config = cfg
	}
}

// WithoutCache disables accessor and predicate memoization.
func WithoutCache() Option {
	return func(e *Engine) {
		e.noCache = true
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		config:  DefaultConfig(),
		lookups: newLookupsCounter(),
	}
	for _, opt := range opts {
		opt(e)
	}

	invalid := e.config.validate()
	if invalid != nil {
		e.config = DefaultConfig()
	}

	if e.logger == nil {
		e.logger = newLogger(e.config.LogLevel)
	}
	if invalid != nil {
		e.logger.Warn("configuration ignored", "error", invalid)
	}

	disabled := e.noCache || e.config.DisableCache
	e.accessors = newMemo[accessorKey, *Accessor](cacheAccessors, disabled, e.config.cacheSize(), e.lookups)
	e.predicates = newMemo[predicateKey, compiled](cachePredicates, disabled, e.config.cacheSize(), e.lookups)

	return e
}

var _default = sync.OnceValue(func() *Engine {
	return New()
})

// Default returns the process-wide Engine used by the package-level helpers.
func Default() *Engine {
	return _default()
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config {
	return e.config
}

// Collectors returns the engine metrics for registration, e.g.
//
//	prometheus.MustRegister(engine.Collectors()...)
func (e *Engine) Collectors() []prometheus.Collector {
	return []prometheus.Collector{e.lookups}
}

func newLogger(level string) *slog.Logger {
	lvl, ok := parseLevel(level)
	if !ok {
		return slog.Default()
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

