package xmap_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	xmap "github.com/Voskan/xmap/pkg"
)

// TestConcurrentPartitionedPuts is scenario 4 from the spec: 1024 keys
// split across 8 worker goroutines, every key must land and the sum of
// stored values must match the analytic total.
func TestConcurrentPartitionedPuts(t *testing.T) {
	const (
		workers = 8
		keys    = 1024
	)
	m := newMap(t, xmap.WithInitialCapacity(2))

	g, _ := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for k := int32(w + 1); k <= keys; k += workers {
				if _, err := m.Put(k, k); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	var sum int64
	for k := int32(1); k <= keys; k++ {
		v, err := m.Get(k)
		require.NoError(t, err)
		require.Equal(t, k, v)
		sum += int64(v)
	}
	require.EqualValues(t, keys*(keys+1)/2, sum)
}

// TestConcurrentSingleKeyPutsNoLostUpdates hammers one key from many
// goroutines and checks that the final value is one of the values
// written, never a torn or sentinel value.
func TestConcurrentSingleKeyPutsNoLostUpdates(t *testing.T) {
	const writers = 64
	m := newMap(t)

	written := make([]int32, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			v := int32(i + 1)
			written[i] = v
			_, err := m.Put(1, v)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	final, err := m.Get(1)
	require.NoError(t, err)
	require.Contains(t, written, final)
}

// TestConcurrentRehashStorm inserts keys 1..n in order into a map that
// starts at 2 pairs, so it goes through many rehashes while readers poll
// a sample of the keys (the keys are sequential, not chosen to collide).
// It checks that every read in flight during the writes only ever
// observes a live value or a true absence - never an internal sentinel.
func TestConcurrentRehashStorm(t *testing.T) {
	const (
		n       = 20_000
		readers = 4
	)
	m := newMap(t, xmap.WithInitialCapacity(2))

	var stop atomic.Bool
	var badReads atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !stop.Load() {
				for k := int32(1); k <= n; k += 997 {
					v, err := m.Get(k)
					if err != nil {
						badReads.Add(1)
						continue
					}
					if v != 0 && v != k {
						badReads.Add(1)
					}
				}
			}
		}()
	}

	for k := int32(1); k <= n; k++ {
		_, err := m.Put(k, k)
		require.NoError(t, err)
	}
	stop.Store(true)
	wg.Wait()

	require.Zero(t, badReads.Load())

	for k := int32(1); k <= n; k++ {
		v, err := m.Get(k)
		require.NoError(t, err)
		require.Equal(t, k, v)
	}
}

// TestConcurrentNoDuplicateStorage checks invariant 1 holds across a
// mixed put/remove/put workload that forces several rehashes: for every
// key, Get is consistent with a single logical owner regardless of how
// many cores now exist in the chain.
func TestConcurrentNoDuplicateStorage(t *testing.T) {
	const n = 5_000
	m := newMap(t, xmap.WithInitialCapacity(2))

	g, _ := errgroup.WithContext(context.Background())
	for shard := 0; shard < 4; shard++ {
		shard := shard
		g.Go(func() error {
			for k := int32(shard + 1); k <= n; k += 4 {
				if _, err := m.Put(k, k); err != nil {
					return err
				}
				if k%2 == 0 {
					if _, err := m.Remove(k); err != nil {
						return err
					}
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for k := int32(1); k <= n; k++ {
		v, err := m.Get(k)
		require.NoError(t, err)
		if k%2 == 0 {
			require.Zero(t, v)
		} else {
			require.Equal(t, k, v)
		}
	}
}

// TestTwoThreadInterleave is scenario 6: one thread appends three puts to
// a single key while another polls it; every observed value must be one
// the writer actually wrote, and once a later value is observed the
// earlier ones never reappear.
func TestTwoThreadInterleave(t *testing.T) {
	m := newMap(t)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for _, v := range []int32{1, 2, 3} {
			_, err := m.Put(1, v)
			require.NoError(t, err)
		}
	}()

	seen := make([]int32, 0, 10)
	for i := 0; i < 10; i++ {
		v, err := m.Get(1)
		require.NoError(t, err)
		require.Contains(t, []int32{0, 1, 2, 3}, v)
		seen = append(seen, v)
	}
	wg.Wait()

	max := int32(0)
	for _, v := range seen {
		if v != 0 {
			require.GreaterOrEqual(t, v, max)
			max = v
		}
	}
}
