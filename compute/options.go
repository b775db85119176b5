package compute

import "github.com/mpalmer/logdb/util/log"

type config struct {
	pageSize int
	logger   *log.Logger
}

func defaultConfig() config {
	return config{pageSize: 4096, logger: log.Default()}
}

// Option configures a Node at construction time.
type Option func(*config)

// WithPageSize sets the page size a node validates writes against. Must
// match the storage engine's configured page size.
func WithPageSize(size int) Option {
	return func(c *config) { c.pageSize = size }
}

// WithLogger sets the logger the node writes operational log lines to.
// Default is log.Default(), which writes to stderr at info level.
func WithLogger(logger *log.Logger) Option {
	return func(c *config) { c.logger = logger }
}
