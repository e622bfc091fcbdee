// Package bench provides reproducible micro-benchmarks for xmap.
// Run via: go test ./bench -bench=. -benchmem -cpu 1,4,16
//
// We measure:
//  1. Put          - write-only workload
//  2. Get          - read-only workload (after warm-up)
//  3. GetParallel  - highly concurrent reads (b.RunParallel)
//  4. RehashStorm  - a write workload engineered to force repeated
//     rehashes, matching the "coexistence with rehash" property in the
//     spec this package implements.
//
// NOTE: unit tests live in pkg; this file is only for performance.
//
// © 2025 xmap authors. MIT License.
package bench

import (
	"math/rand"
	"runtime"
	"testing"

	xmap "github.com/Voskan/xmap/pkg"
)

const keys = 1 << 20 // 1M keys for dataset

func newTestMap() *xmap.Map {
	m, err := xmap.New()
	if err != nil {
		panic(err)
	}
	return m
}

// ds is the global uniform dataset, reused across benches to avoid
// reallocating a large slice every run.
var ds = func() []int32 {
	arr := make([]int32, keys)
	for i := range arr {
		arr[i] = int32(i) + 1
	}
	rand.Shuffle(len(arr), func(i, j int) { arr[i], arr[j] = arr[j], arr[i] })
	return arr
}()

func BenchmarkPut(b *testing.B) {
	m := newTestMap()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = m.Put(ds[i&(keys-1)], 1)
	}
}

func BenchmarkGet(b *testing.B) {
	m := newTestMap()
	for _, k := range ds {
		_, _ = m.Put(k, k)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = m.Get(ds[i&(keys-1)])
	}
}

func BenchmarkGetParallel(b *testing.B) {
	m := newTestMap()
	for _, k := range ds {
		_, _ = m.Put(k, k)
	}
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		idx := rand.Intn(keys)
		for pb.Next() {
			idx = (idx + 1) & (keys - 1)
			_, _ = m.Get(ds[idx])
		}
	})
}

// BenchmarkRehashStorm puts strictly-increasing keys into a map started
// at the spec's minimum initial capacity of 2, so the map rehashes from
// the first few Puts on and again each time it outgrows its doubled
// capacity (about log2(b.N) rehashes in all).
func BenchmarkRehashStorm(b *testing.B) {
	m := newTestMap()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = m.Put(int32(i%(1<<30))+1, 1)
	}
}

func init() {
	runtime.GOMAXPROCS(runtime.NumCPU())
}
