package storage

/*
Functional options for engine construction, following this codebase's usual
construction pattern.
*/

import (
	"github.com/mpalmer/logdb/trace"
	"github.com/mpalmer/logdb/util/log"
)

type config struct {
	pageSize        int
	cacheCapacity   int64
	warmCache       bool
	warmConcurrency int
	sink            trace.Sink
	logger          *log.Logger
}

func defaultConfig() config {
	return config{
		pageSize:        4096,
		cacheCapacity:   128,
		warmCache:       true,
		warmConcurrency: 4,
		sink:            trace.NoopSink{},
		logger:          log.Default(),
	}
}

// Option configures an Engine at construction time.
type Option func(*config)

// WithPageSize sets the page size in bytes. Default 4096.
func WithPageSize(size int) Option {
	return func(c *config) { c.pageSize = size }
}

// WithCacheCapacity sets the materialized-page LRU's entry capacity.
// Default 128.
func WithCacheCapacity(capacity int64) Option {
	return func(c *config) { c.cacheCapacity = capacity }
}

// WithTraceSink sets the sink the engine emits structured events to.
// Default is a no-op sink.
func WithTraceSink(sink trace.Sink) Option {
	return func(c *config) { c.sink = sink }
}

// WithWarmCache controls whether Open pre-materializes recently-written
// pages into the cache after recovery. Default true.
func WithWarmCache(warm bool) Option {
	return func(c *config) { c.warmCache = warm }
}

// WithWarmConcurrency bounds how many pages Open materializes concurrently
// during cache warmup. Default 4.
func WithWarmConcurrency(n int) Option {
	return func(c *config) { c.warmConcurrency = n }
}

// WithLogger sets the logger the engine writes operational log lines to.
// Default is log.Default(), which writes to stderr at info level.
func WithLogger(logger *log.Logger) Option {
	return func(c *config) { c.logger = logger }
}
