package zipbuild

import "log/slog"

// Option configures a Builder and the archives it builds.
type Option func(*config)

type config struct {
	logger   *slog.Logger
	progress ProgressFunc
}

// WithLogger sets the logger for build and write operations.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithProgress sets a callback that receives progress while archives are
// written. The callback must be safe for concurrent use when an archive is
// written concurrently.
func WithProgress(fn ProgressFunc) Option {
	return func(c *config) {
		c.progress = fn
	}
}

// log returns the configured logger or a discard logger if none was set.
func (c *config) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.New(slog.DiscardHandler)
}
