// Command xmap-bench drives a configurable concurrent Put-only
// workload against an xmap.Map and reports throughput plus the
// Prometheus counters exposed by xmap.WithMetrics - rehash count, cores
// alive, helped migrations - the same operational signals the teacher's
// cmd/arena-cache-inspect reports for arena-cache, just sourced
// in-process instead of scraped over HTTP, since xmap has no server of
// its own to inspect.
//
// Usage:
//
//	go run ./cmd/xmap-bench --keys 2000000 --workers 16 --watch
//
// © 2025 xmap authors. MIT License.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	xmap "github.com/Voskan/xmap/pkg"
)

var version = "dev"

type options struct {
	keys       int
	workers    int
	initialCap uint32
	watch      bool
	interval   time.Duration
	version    bool
}

func parseFlags() *options {
	opts := &options{}
	pflag.IntVar(&opts.keys, "keys", 1_000_000, "number of distinct keys to put")
	pflag.IntVar(&opts.workers, "workers", 8, "number of concurrent worker goroutines")
	pflag.Uint32Var(&opts.initialCap, "initial-capacity", 2, "initial core capacity (power of two)")
	pflag.BoolVar(&opts.watch, "watch", false, "print a metrics snapshot every --interval while the workload runs")
	pflag.DurationVar(&opts.interval, "interval", time.Second, "watch interval")
	pflag.BoolVar(&opts.version, "version", false, "print version and exit")
	pflag.Parse()
	return opts
}

func main() {
	opts := parseFlags()
	if opts.version {
		fmt.Println(version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	reg := prometheus.NewRegistry()
	m, err := xmap.New(
		xmap.WithInitialCapacity(opts.initialCap),
		xmap.WithMetrics(reg),
		xmap.WithLogger(logger),
	)
	if err != nil {
		fatal(err)
	}

	if opts.watch {
		ticker := time.NewTicker(opts.interval)
		defer ticker.Stop()
		go func() {
			for {
				select {
				case <-ticker.C:
					printSnapshot(reg)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	start := time.Now()
	if err := runWorkload(ctx, m, opts); err != nil {
		fatal(err)
	}
	elapsed := time.Since(start)

	fmt.Printf("put %d keys with %d workers in %s (%.0f ops/sec)\n",
		opts.keys, opts.workers, elapsed, float64(opts.keys)/elapsed.Seconds())
	printSnapshot(reg)
}

func runWorkload(ctx context.Context, m *xmap.Map, opts *options) error {
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < opts.workers; w++ {
		w := w
		g.Go(func() error {
			for k := int32(w + 1); k <= int32(opts.keys); k += int32(opts.workers) {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				if _, err := m.Put(k, k); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func printSnapshot(reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error gathering metrics:", err)
		return
	}
	for _, mf := range families {
		fmt.Printf("%-32s %s\n", mf.GetName(), formatMetricFamily(mf))
	}
}

func formatMetricFamily(mf *dto.MetricFamily) string {
	if len(mf.Metric) == 0 {
		return "n/a"
	}
	metric := mf.Metric[0]
	if c := metric.GetCounter(); c != nil {
		return fmt.Sprintf("%.0f", c.GetValue())
	}
	if g := metric.GetGauge(); g != nil {
		return fmt.Sprintf("%.0f", g.GetValue())
	}
	return "n/a"
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "xmap-bench:", err)
	os.Exit(1)
}
