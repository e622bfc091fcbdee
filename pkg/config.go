package xmap

// config.go defines the functional options accepted by New, mirroring the
// teacher's pkg/config.go: a private config struct filled in by
// defaultConfig and mutated by a slice of Option values, validated and
// frozen by applyOptions before the Map is constructed.
//
// © 2025 xmap authors. MIT License.

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	xbits "github.com/Voskan/xmap/internal/bits"
)

// defaultInitialCapacity is deliberately tiny (2 pairs) so that the rehash
// path is exercised almost immediately under any real load, per §9 of the
// spec: "production deployments may wish a larger initial value. This is a
// tuning constant, not a correctness parameter."
const defaultInitialCapacity uint32 = 2

// defaultMaxProbes is MAX_PROBES from §4.2 of the spec.
const defaultMaxProbes = 8

// Option configures a Map at construction time. Options are applied in the
// order passed to New.
type Option func(*config)

type config struct {
	initialCapacity uint32
	maxProbes       int
	registry        *prometheus.Registry
	logger          *zap.Logger
}

func defaultConfig() *config {
	return &config{
		initialCapacity: defaultInitialCapacity,
		maxProbes:       defaultMaxProbes,
		logger:          zap.NewNop(),
	}
}

// WithInitialCapacity overrides the starting number of (key, value) pairs
// in the root core. A value that is not a power of two is rounded up to
// the next power of two. Values below 2 are clamped to 2, since a one-slot core can
// never make forward progress once its single slot is occupied by another
// key (the probe sequence would immediately wrap onto itself).
func WithInitialCapacity(pairs uint32) Option {
	return func(c *config) {
		if pairs < 2 {
			pairs = 2
		}
		c.initialCapacity = xbits.NextPowerOfTwo(pairs)
	}
}

// WithMaxProbes overrides MAX_PROBES (default 8). Exposed for testing and
// tuning, the same way the teacher exposes WithWeightFn/WithEjectCallback
// to let advanced callers override policy defaults.
func WithMaxProbes(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxProbes = n
		}
	}
}

// WithMetrics enables Prometheus metrics collection for the Map. Passing
// nil disables metrics (the default).
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) {
		c.registry = reg
	}
}

// WithLogger plugs an external zap.Logger. xmap never logs on the hot
// path (Get/Put/Remove); only slow structural events - a core being born,
// a migration recursively growing the successor, or one of completeCopy's
// invariant checks failing immediately before it panics - are logged. The
// "STOLEN slot with no successor" panics are not logged.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

func applyOptions(cfg *config, opts []Option) error {
	for _, opt := range opts {
		opt(cfg)
	}
	if !xbits.IsPowerOfTwo(cfg.initialCapacity) {
		return fmt.Errorf("xmap: initial capacity %d is not a power of two", cfg.initialCapacity)
	}
	if cfg.maxProbes <= 0 {
		return fmt.Errorf("xmap: max probes must be > 0, got %d", cfg.maxProbes)
	}
	return nil
}
