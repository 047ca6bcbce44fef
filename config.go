package wbcache

import "time"

// Default tuning values, matching the distilled spec's defaults.
const (
	DefaultAccessTTL     = 10 * time.Second
	DefaultPruneInterval = 10 * time.Second
)

// Config carries the cache's tunables. It is safe to load from a TOML file
// via github.com/naoina/toml, the same parser cmd/geth uses for its own
// config file.
type Config struct {
	// AccessTTL is the idle duration after which a Resident entry becomes a
	// pruner candidate. Larger values retain values longer.
	AccessTTL time.Duration `toml:"AccessTTL"`

	// PruneInterval is how often the pruner scans the index.
	PruneInterval time.Duration `toml:"PruneInterval"`
}

// DefaultConfig returns the Config a Cache is constructed with when the
// caller supplies no options.
func DefaultConfig() Config {
	return Config{
		AccessTTL:     DefaultAccessTTL,
		PruneInterval: DefaultPruneInterval,
	}
}

// normalize fills in zero fields with defaults, so a Config partially loaded
// from a config file (e.g. AccessTTL only) still produces a usable cache.
func (c Config) normalize() Config {
	if c.AccessTTL <= 0 {
		c.AccessTTL = DefaultAccessTTL
	}
	if c.PruneInterval <= 0 {
		c.PruneInterval = DefaultPruneInterval
	}
	return c
}

// Option mutates a Config at construction time.
type Option func(*Config)

// WithAccessTTL overrides the idle TTL before a Resident entry is prunable.
func WithAccessTTL(d time.Duration) Option {
	return func(c *Config) { c.AccessTTL = d }
}

// WithPruneInterval overrides how often the pruner scans the index.
func WithPruneInterval(d time.Duration) Option {
	return func(c *Config) { c.PruneInterval = d }
}
