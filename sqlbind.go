// Package sqlbind is a multi-dialect SQL statement-processing toolkit: it
// locates parameter placeholders in raw SQL regardless of the style they were
// written in (?, $1, :name, @name, %s, %(name)s, :1), converts placeholders
// and values into the format a target driver executes, and compiles the
// result into immutable, cacheable statements.
package sqlbind

import (
	"sync"

	"go.uber.org/zap"

	"github.com/ekaya-inc/sqlbind/pkg/cache"
	"github.com/ekaya-inc/sqlbind/pkg/config"
	"github.com/ekaya-inc/sqlbind/pkg/dialects"
	"github.com/ekaya-inc/sqlbind/pkg/statement"
)

// Toolkit wires the tokenizer, processor, per-dialect compilers, and the
// process-scoped cache registry together. Construct one per process and share
// it; all components are safe for concurrent use.
type Toolkit struct {
	settings  *config.Settings
	registry  *cache.Registry
	tokenizer *statement.Tokenizer
	processor *statement.Processor
	logger    *zap.Logger

	mu         sync.Mutex
	compilers  map[string]*statement.Compiler
	queryCache *cache.Cache[string, string]
}

// New builds a toolkit. Pass nil settings for the built-in defaults and a nil
// logger to disable logging.
func New(settings *config.Settings, logger *zap.Logger) *Toolkit {
	if settings == nil {
		settings = config.Default()
	}
	registry := cache.NewRegistry()
	tokenizer := statement.NewTokenizer(registry, settings.Caches.TokenizerSize)
	processor := statement.NewProcessor(tokenizer, registry, settings.Caches.ProcessorSize, logger)
	queryCache := cache.MustNew[string, string](settings.Caches.QuerySize)
	registry.Register(cache.NameQuery, queryCache)

	return &Toolkit{
		settings:   settings,
		registry:   registry,
		tokenizer:  tokenizer,
		processor:  processor,
		logger:     logger,
		compilers:  make(map[string]*statement.Compiler),
		queryCache: queryCache,
	}
}

// CompilerFor returns the compiler for a dialect preset, building it on first
// use. Its compilation cache registers as "compiler:<dialect>".
func (t *Toolkit) CompilerFor(dialect string) (*statement.Compiler, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.compilers[dialect]; ok {
		return c, nil
	}
	cfg, err := dialects.ByName(dialect)
	if err != nil {
		return nil, err
	}
	c := statement.NewCompiler(t.processor, statement.CompilerOptions{
		Config:       cfg,
		Dialect:      dialect,
		CacheSize:    t.settings.Caches.CompilerSize,
		MaxSQLLength: t.settings.MaxSQLLength,
		Logger:       t.logger,
		Registry:     t.registry,
		CacheName:    cache.NameCompiler + ":" + dialect,
	})
	t.compilers[dialect] = c
	return c, nil
}

// Compile compiles against the default dialect from settings.
func (t *Toolkit) Compile(sql string, params any) (*statement.CompiledStatement, error) {
	c, err := t.CompilerFor(t.settings.DefaultDialect)
	if err != nil {
		return nil, err
	}
	return c.Compile(sql, params)
}

// ConvertSQL is the fast path for adapters that only need the SQL text
// rewritten into a target style, skipping parameter processing and
// classification. Results are cached per (sql, style).
func (t *Toolkit) ConvertSQL(sql string, target statement.ParameterStyle) (string, error) {
	key := sql + "\x00" + string(target)
	if converted, ok := t.queryCache.Get(key); ok {
		return converted, nil
	}
	infos := t.tokenizer.Extract(sql)
	converted, _, err := statement.ConvertPlaceholders(sql, nil, infos, target, false)
	if err != nil {
		return "", err
	}
	t.queryCache.Put(key, converted)
	return converted, nil
}

// Extract exposes placeholder extraction for callers that need the raw
// occurrence list.
func (t *Toolkit) Extract(sql string) []statement.ParameterInfo {
	return t.tokenizer.Extract(sql)
}

// Registry exposes the cache registry for operational tooling: ClearAll,
// Stats, SetMaxSize.
func (t *Toolkit) Registry() *cache.Registry {
	return t.registry
}
