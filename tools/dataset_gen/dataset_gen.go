// Command dataset_gen emits deterministic key datasets for standalone
// benchmarking of xmap (outside `go test`), the way the teacher's own
// tools/dataset_gen generated key lists for arena-cache. Keys are always
// strictly positive int32s, matching the map's key domain.
//
// Usage:
//
//	go run ./tools/dataset_gen --n 1000000 --dist=colliding --seed=42 --out keys.txt
//
// Flags:
//
//	--n       number of keys to generate (default 1e6)
//	--dist    distribution: "uniform" or "colliding" (default uniform)
//	--shift   hash shift assumed by --dist=colliding, i.e. 32-log2(capacity)
//	          of the core the dataset is meant to stress (default 31, the
//	          shift of the spec's minimum 2-pair initial core)
//	--seed    PRNG seed (default current time)
//	--out     output file (default stdout)
//
// "colliding" mode generates keys that all hash to the same bucket under
// xmap's index function (§4.2), the same trick scenario 4/"coexistence
// with rehash" in the spec's testable properties relies on to force
// repeated rehashes deterministically.
//
// © 2025 xmap authors. MIT License.
package main

import (
	"bufio"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/pflag"
)

const magic uint32 = 0x9E3779B9

func main() {
	var (
		n       = pflag.Int("n", 1_000_000, "number of keys to generate")
		dist    = pflag.String("dist", "uniform", "distribution: uniform or colliding")
		shift   = pflag.Uint32("shift", 31, "hash shift of the target core, for --dist=colliding")
		seedVal = pflag.Int64("seed", time.Now().UnixNano(), "PRNG seed")
		outPath = pflag.String("out", "", "output file (default stdout)")
	)
	pflag.Parse()

	rnd := rand.New(rand.NewSource(*seedVal))

	var gen func() int32
	switch *dist {
	case "uniform":
		gen = func() int32 { return rnd.Int31n(1<<30) + 1 }
	case "colliding":
		if *shift >= 32 {
			fmt.Fprintln(os.Stderr, "shift must be < 32")
			os.Exit(1)
		}
		gen = collidingGenerator(rnd, *shift)
	default:
		fmt.Fprintln(os.Stderr, "unknown dist:", *dist)
		os.Exit(1)
	}

	var out *os.File
	var err error
	if *outPath == "" {
		out = os.Stdout
	} else {
		out, err = os.Create(*outPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "cannot create file:", err)
			os.Exit(1)
		}
		defer out.Close()
	}

	w := bufio.NewWriterSize(out, 1<<20)
	defer w.Flush()

	for i := 0; i < *n; i++ {
		fmt.Fprintln(w, gen())
	}
}

// collidingGenerator finds distinct positive int32 keys that all land on
// bucket 0 of the index function (key*MAGIC)>>>shift, by brute-force
// searching nearby candidates. This deliberately reproduces the worst
// case for probe chains so benchmarks and tests can force a core to
// overflow its probe budget on demand instead of waiting for uniform
// random collisions.
func collidingGenerator(rnd *rand.Rand, shift uint32) func() int32 {
	next := int32(1)
	return func() int32 {
		for {
			k := next
			next++
			if next <= 0 {
				next = 1
			}
			if (uint32(k)*magic)>>shift == 0 {
				// Perturb future candidates so repeated calls don't
				// just walk MAGIC's own period in lockstep.
				next += int32(rnd.Intn(7) + 1)
				return k
			}
		}
	}
}
