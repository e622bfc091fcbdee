package xmap

// core.go is the ~80% of this package: the fixed-capacity, open-addressed
// table and its lock-free get/put/remove/rehash protocol. A Core never
// shrinks, never resizes in place, and is never reused once every slot
// has been stolen by a migration to its successor; growing the map means
// producing a new, larger Core and linking it onto the forward chain.
//
// Every cell (key or value) is a single atomic.Int32. The value cell
// additionally carries migration state via sign-bit tagging: 0 means empty, a positive value 1..MaxInt32-1
// is live, MaxInt32 is a tombstone, a negative value other than MinInt32
// means "being migrated, help me", and MinInt32 means "already migrated,
// ask my successor".
//
// © 2025 xmap authors. MIT License.

import (
	"fmt"
	"math"
	"sync/atomic"

	"go.uber.org/zap"

	xbits "github.com/Voskan/xmap/internal/bits"
)

const (
	nullKey   int32 = 0
	nullValue int32 = 0
	del       int32 = math.MaxInt32
	stolen    int32 = math.MinInt32

	// magic is the 32-bit golden-ratio multiplier used by the index
	// function (§4.2): 0x9E3779B9, signed representation -0x61C88647.
	magic uint32 = 0x9E3779B9
)

// coreEnv is shared by every Core in a chain: the logger, metrics sink,
// and probe budget are properties of the Map, not of any one Core, and a
// successor is always built with its producer's env so the whole chain
// stays consistent.
type coreEnv struct {
	maxProbes int
	metrics   metricsSink
	logger    *zap.Logger
	coreCount atomic.Int64
}

func newCoreEnv(cfg *config) *coreEnv {
	env := &coreEnv{
		maxProbes: cfg.maxProbes,
		metrics:   newMetricsSink(cfg.registry),
		logger:    cfg.logger,
	}
	env.coreCount.Store(1)
	env.metrics.setCoresAlive(1)
	return env
}

// Core is one fixed-capacity table: capacity pairs, laid out as
// 2*capacity atomic cells (key, value, key, value, ...).
type Core struct {
	capacity uint32
	shift    uint32 // 32 - log2(capacity)
	cells    []atomic.Int32
	next     atomic.Pointer[Core]
	env      *coreEnv
}

func newCore(capacity uint32, env *coreEnv) *Core {
	return &Core{
		capacity: capacity,
		shift:    32 - xbits.Log2(capacity),
		cells:    make([]atomic.Int32, capacity*2),
		env:      env,
	}
}

/* -------------------------------------------------------------------------
   Index function & probing (§4.2)
   ------------------------------------------------------------------------- */

// pairIndex computes the key-cell index for key: (key*MAGIC) >>> shift,
// then doubled to land on an even (key, value) pair boundary.
func (c *Core) pairIndex(key int32) int {
	h := uint32(key) * magic
	return int(h>>c.shift) << 1
}

// prevIndex implements backward linear probing by 2, wrapping from 0 to
// the last pair. The direction is arbitrary (§9 open question) but must
// be used consistently by claim, lookup, and completeCopy's search of the
// successor alike - it is, here and nowhere else. (rehash's own scan
// over every pair runs forward; it visits all pairs, not a probe chain.)
func (c *Core) prevIndex(idx int) int {
	if idx == 0 {
		return int(c.capacity-1) * 2
	}
	return idx - 2
}

func (c *Core) keyAt(idx int) int32        { return c.cells[idx].Load() }
func (c *Core) valueAt(idx int) int32      { return c.cells[idx+1].Load() }
func (c *Core) casKey(idx int, old, new_ int32) bool {
	return c.cells[idx].CompareAndSwap(old, new_)
}
func (c *Core) casValue(idx int, old, new_ int32) bool {
	return c.cells[idx+1].CompareAndSwap(old, new_)
}

/* -------------------------------------------------------------------------
   Lookup (getInternal, §4.2)
   ------------------------------------------------------------------------- */

// getInternal returns the raw value stored for key in this core (or its
// chain), which may be DEL. It never returns a negative sentinel: frozen
// slots are helped to completion and STOLEN slots are chased forward
// before this function returns. The caller (Map.Get) sanitises DEL to 0.
func (c *Core) getInternal(key int32) int32 {
	idx := c.pairIndex(key)
	for probes := 0; probes < c.env.maxProbes; probes++ {
		k := c.keyAt(idx)
		if k == key {
			return c.resolveValue(idx, key)
		}
		if k == nullKey {
			return 0
		}
		idx = c.prevIndex(idx)
	}
	return 0
}

// resolveValue reads the value half of a matched slot, helping along any
// in-progress migration and chasing STOLEN forward, until it can return a
// non-sentinel value (live or DEL).
func (c *Core) resolveValue(idx int, key int32) int32 {
	for {
		v := c.valueAt(idx)
		switch {
		case v == stolen:
			succ := c.next.Load()
			if succ == nil {
				panic("xmap: protocol violation - STOLEN slot with no successor core")
			}
			return succ.getInternal(key)
		case v < 0:
			c.completeCopy(idx)
		default:
			return v
		}
	}
}

/* -------------------------------------------------------------------------
   Mutation (putInternal, §4.2)
   ------------------------------------------------------------------------- */

// putInternal installs newValue (a live value, or DEL for a remove) for
// key. It returns the previous raw value (possibly DEL or 0), or
// errNeedsRehash if the probe budget was exhausted while locating or
// claiming a slot.
func (c *Core) putInternal(key, newValue int32) (int32, error) {
	idx := c.pairIndex(key)
	probes := 0
	for probes < c.env.maxProbes {
		k := c.keyAt(idx)
		switch {
		case k == key:
			return c.installValue(idx, key, newValue)
		case k == nullKey:
			if newValue == del {
				// Nothing to tombstone: the key was never here.
				return 0, nil
			}
			if c.casKey(idx, nullKey, key) {
				return c.installValue(idx, key, newValue)
			}
			// Another thread raced us for this slot; re-read it
			// without spending probe budget.
			continue
		default:
			idx = c.prevIndex(idx)
			probes++
		}
	}
	return 0, errNeedsRehash
}

// installValue runs phase 2 of putInternal once a slot holding key has
// been located or claimed.
func (c *Core) installValue(idx int, key, newValue int32) (int32, error) {
	for {
		v := c.valueAt(idx)
		switch {
		case v == stolen:
			succ := c.next.Load()
			if succ == nil {
				panic("xmap: protocol violation - STOLEN slot with no successor core")
			}
			return succ.putInternal(key, newValue)
		case v < 0:
			c.completeCopy(idx)
		default:
			if c.casValue(idx, v, newValue) {
				return v, nil
			}
			// CAS lost to a concurrent writer; re-read and retry.
		}
	}
}

// locateOrClaim runs phase 1 of putInternal in isolation, without
// touching the value cell. Used by completeCopy to find or create the
// destination slot for a migrated key in the successor core. Returns -1
// if the probe budget is exhausted.
func (c *Core) locateOrClaim(key int32) int {
	idx := c.pairIndex(key)
	probes := 0
	for probes < c.env.maxProbes {
		k := c.keyAt(idx)
		switch {
		case k == key:
			return idx
		case k == nullKey:
			if c.casKey(idx, nullKey, key) {
				return idx
			}
			continue
		default:
			idx = c.prevIndex(idx)
			probes++
		}
	}
	return -1
}

/* -------------------------------------------------------------------------
   Rehash / migration (§4.2)
   ------------------------------------------------------------------------- */

// ensureSuccessor returns this core's successor, allocating one of double
// the capacity if none exists yet. Safe for any number of concurrent
// callers: exactly one allocation wins the CAS and everyone observes the
// same successor afterward.
func (c *Core) ensureSuccessor() *Core {
	if succ := c.next.Load(); succ != nil {
		return succ
	}
	fresh := newCore(c.capacity*2, c.env)
	if c.next.CompareAndSwap(nil, fresh) {
		n := c.env.coreCount.Add(1)
		c.env.metrics.setCoresAlive(int(n))
		c.env.logger.Info("xmap: core born",
			zap.Uint32("old_capacity", c.capacity),
			zap.Uint32("new_capacity", fresh.capacity),
		)
		return fresh
	}
	return c.next.Load()
}

// rehash ensures a successor exists and drives every pair of this core
// toward STOLEN, helping along any migration it observes in progress.
// It is idempotent: any number of threads may call it concurrently and
// every slot converges to STOLEN exactly once.
func (c *Core) rehash() *Core {
	succ := c.ensureSuccessor()
	c.env.metrics.incRehash()

	for idx := 0; idx < int(c.capacity)*2; idx += 2 {
		for {
			v := c.valueAt(idx)
			switch {
			case v == stolen:
				// Already migrated.
			case v == nullValue || v == del:
				if !c.casValue(idx, v, stolen) {
					// A concurrent put installed a live value
					// between our read and our CAS; re-read.
					continue
				}
			case v > 0:
				if !c.casValue(idx, v, -v) {
					// Lost the freeze race; re-read the same slot.
					continue
				}
				c.completeCopy(idx)
			default:
				// Already frozen by someone else; help finish it.
				c.completeCopy(idx)
			}
			break
		}
	}
	return succ
}

// completeCopy finishes migrating the slot at oldIndex, whose key must be
// a real positive key and whose value must be frozen (negative, not
// STOLEN). It is safe to call redundantly: if the slot is already STOLEN
// it returns immediately.
func (c *Core) completeCopy(oldIndex int) {
	key := c.keyAt(oldIndex)
	if key <= 0 {
		c.env.logger.Error("xmap: protocol violation", zap.Int32("key", key), zap.Int("slot", oldIndex))
		panic(fmt.Sprintf("xmap: completeCopy observed non-positive key %d at slot %d", key, oldIndex))
	}

	v := c.valueAt(oldIndex)
	if v == stolen {
		return
	}
	if v >= 0 {
		c.env.logger.Error("xmap: protocol violation", zap.Int32("value", v), zap.Int("slot", oldIndex))
		panic(fmt.Sprintf("xmap: completeCopy called on a non-frozen slot (value=%d)", v))
	}

	liveVal := -v
	if liveVal == del {
		c.env.logger.Error("xmap: protocol violation: DEL targeted for migration as live", zap.Int("slot", oldIndex))
		panic("xmap: attempted to migrate a DEL sentinel as a live value")
	}

	succ := c.next.Load()
	if succ == nil {
		panic("xmap: protocol violation - completeCopy with no successor core")
	}

	for {
		sIdx := succ.locateOrClaim(key)
		if sIdx == -1 {
			grown := succ.rehash()
			c.env.logger.Info("xmap: migration recursively grew successor",
				zap.Uint32("from_capacity", succ.capacity),
				zap.Uint32("to_capacity", grown.capacity),
			)
			succ = grown
			continue
		}
		// A failed CAS here is benign: either another helper already
		// placed liveVal, or a concurrent Put raced ahead and
		// installed a newer value - which is the intended semantics
		// (§9 open question #1). The one exception is a STOLEN slot:
		// the successor is itself being migrated, so the copy moves on
		// to the successor's successor.
		if !succ.casValue(sIdx, nullValue, liveVal) && succ.valueAt(sIdx) == stolen {
			succ = succ.next.Load()
			continue
		}
		break
	}

	if c.casValue(oldIndex, v, stolen) {
		c.env.metrics.incHelpedMigration()
	}
	// A failed CAS here just means another helper reached STOLEN first.
}
