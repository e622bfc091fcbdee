// Package xmap implements a lock-free concurrent int32-to-int32 hash map.
// Keys and values are both strictly positive 32-bit integers; the map
// grows without bound as entries accumulate, rehashing itself onto a
// larger table whenever a probe chain overflows.
//
// The map exposes exactly three operations - Get, Put, Remove - plus
// construction. There is no iteration, no size query, no shrinking, no
// persistence. Correctness under arbitrary concurrent Get/Put/Remove,
// including while a resize is in flight, is the entire point: see core.go
// for the migration protocol that makes it possible without locks.
//
// © 2025 xmap authors. MIT License.
package xmap

import (
	"fmt"
	"math"
	"sync/atomic"
)

// Map is a single mutable reference to the current (leading) Core. All
// three operations enter here, read the current core, and dispatch; Put
// and Remove retry across rehash cycles, Get never needs to because a
// Core's read path resolves sentinels and chases the forward chain on
// its own.
type Map struct {
	current atomic.Pointer[Core]
}

// New constructs an empty Map. The default starting capacity is 2 pairs,
// deliberately tiny so the rehash path is exercised almost immediately
// under any real load; override with WithInitialCapacity for production
// deployments that want to skip the first few growth cycles.
func New(opts ...Option) (*Map, error) {
	cfg := defaultConfig()
	if err := applyOptions(cfg, opts); err != nil {
		return nil, err
	}
	env := newCoreEnv(cfg)
	root := newCore(cfg.initialCapacity, env)

	m := &Map{}
	m.current.Store(root)
	return m, nil
}

// Get returns the value stored for key, or 0 if key is absent.
func (m *Map) Get(key int32) (int32, error) {
	if key <= 0 {
		return 0, fmt.Errorf("%w: key must be > 0, got %d", ErrInvalidArgument, key)
	}
	c := m.current.Load()
	raw := c.getInternal(key)
	v := sanitize(raw)
	c.env.metrics.incGet(v != 0)
	return v, nil
}

// Put installs value for key, returning the previous value or 0 if key
// was absent.
func (m *Map) Put(key, value int32) (int32, error) {
	if key <= 0 {
		return 0, fmt.Errorf("%w: key must be > 0, got %d", ErrInvalidArgument, key)
	}
	if value < 1 || value >= math.MaxInt32 {
		return 0, fmt.Errorf("%w: value must be in [1, %d), got %d", ErrInvalidArgument, int32(math.MaxInt32), value)
	}

	for {
		c := m.current.Load()
		old, err := c.putInternal(key, value)
		if err == nil {
			c.env.metrics.incPut()
			return sanitize(old), nil
		}
		succ := c.rehash()
		m.advance(succ)
	}
}

// Remove deletes key, returning the previous value or 0 if key was
// already absent.
func (m *Map) Remove(key int32) (int32, error) {
	if key <= 0 {
		return 0, fmt.Errorf("%w: key must be > 0, got %d", ErrInvalidArgument, key)
	}

	for {
		c := m.current.Load()
		old, err := c.putInternal(key, del)
		if err == nil {
			c.env.metrics.incRemove()
			return sanitize(old), nil
		}
		succ := c.rehash()
		m.advance(succ)
	}
}

// advance compare-and-sets the Map's current core reference forward to
// succ, accepting any concurrent advance to a core of greater-or-equal
// capacity. The Map is allowed to lag arbitrarily behind the true head of
// the chain without a correctness impact, only a performance one - a
// stale current just means more STOLEN tail-calls before the operation
// lands on the right core.
func (m *Map) advance(succ *Core) {
	for {
		cur := m.current.Load()
		if cur.capacity >= succ.capacity {
			return
		}
		if m.current.CompareAndSwap(cur, succ) {
			return
		}
	}
}

// sanitize maps the internal DEL and NULL sentinels to the externally
// visible "absent" value of 0. Negative sentinels (frozen, STOLEN) never
// reach here: Core.getInternal/putInternal resolve them before returning.
func sanitize(v int32) int32 {
	if v == del || v == nullValue {
		return 0
	}
	return v
}
