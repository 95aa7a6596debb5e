/*
skipbench drives the concurrent skip list in this module with a
configurable workload and reports what it observed.

Usage:

	skipbench [flags]

The flags are:

	-levels
		Maximum level index for the skip list, an integer >= 0. Defaults
		to 19 (20 levels).
	-workers
		Number of concurrent goroutines driving the workload. Defaults to
		runtime.NumCPU().
	-keys
		Size of the key space the workload draws from. Defaults to 100000.
	-duration
		How long to run the mixed insert/erase/contains workload, e.g.
		"2s". Defaults to 1s.
	-schema
		Path to a JSON schema file. When set, skipbench validates and
		stores small generated JSON documents through the record package
		instead of running the raw skiplist workload.
	-l
		Logger output level, -1 for debug, 1 for errors only. Defaults to
		0 (info and above).

skipbench exits on SIGINT/SIGTERM, printing whatever counts it had
accumulated so far.
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/arvehren/ordermap/record"
	"github.com/arvehren/ordermap/skiplist"
)

type config struct {
	levels     int
	workers    int
	keySpace   int
	duration   time.Duration
	schemaPath string
	logLevel   int
}

func parseFlags() config {
	var c config
	flag.IntVar(&c.levels, "levels", skiplist.DefaultMaxLevel, "maximum level index for the skip list")
	flag.IntVar(&c.workers, "workers", runtime.NumCPU(), "number of concurrent goroutines driving the workload")
	flag.IntVar(&c.keySpace, "keys", 100000, "size of the key space the workload draws from")
	flag.DurationVar(&c.duration, "duration", time.Second, "how long to run the mixed workload")
	flag.StringVar(&c.schemaPath, "schema", "", "path to a JSON schema file; when set, runs the record demo instead")
	flag.IntVar(&c.logLevel, "l", 0, "logger output level, -1 for debug, 1 for errors only")
	flag.Parse()
	return c
}

func configureLogging(level int) {
	switch {
	case level < 0:
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	case level > 0:
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	default:
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))
	}
}

func main() {
	cfg := parseFlags()
	configureLogging(cfg.logLevel)

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		slog.Info("received interrupt, winding down")
		cancel()
	}()

	if cfg.schemaPath != "" {
		runRecordDemo(ctx, cfg)
		return
	}
	runSkiplistWorkload(ctx, cfg)
}

// runSkiplistWorkload inserts, erases, and looks up keys uniformly at
// random across cfg.workers goroutines for cfg.duration, then reports the
// outcome counts and the final live key count.
func runSkiplistWorkload(ctx context.Context, cfg config) {
	slog.Info("starting skiplist workload", "levels", cfg.levels, "workers", cfg.workers, "keys", cfg.keySpace, "duration", cfg.duration)

	list := skiplist.New(cfg.levels)
	deadline := make(chan struct{})
	time.AfterFunc(cfg.duration, func() { close(deadline) })

	var inserts, erases, contains, hits atomic.Int64
	var wg sync.WaitGroup
	for w := 0; w < cfg.workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-ctx.Done():
					return
				case <-deadline:
					return
				default:
				}
				key := uint64(rng.Intn(cfg.keySpace))
				switch rng.Intn(3) {
				case 0:
					if list.Insert(key, nil) {
						inserts.Add(1)
					}
				case 1:
					if list.Erase(key) {
						erases.Add(1)
					}
				case 2:
					contains.Add(1)
					if list.Contains(key) {
						hits.Add(1)
					}
				}
			}
		}(int64(w) + 1)
	}
	wg.Wait()

	fmt.Printf("inserts=%d erases=%d contains=%d hits=%d live=%d\n",
		inserts.Load(), erases.Load(), contains.Load(), hits.Load(), list.Len())
}

// runRecordDemo compiles cfg.schemaPath and puts a handful of generated
// documents through the record.Store built on top of the skip list,
// reporting how many were accepted versus rejected by the schema.
func runRecordDemo(ctx context.Context, cfg config) {
	slog.Info("starting record demo", "schema", cfg.schemaPath, "levels", cfg.levels)

	schema, err := jsonschema.Compile(cfg.schemaPath)
	if err != nil {
		slog.Error("failed to compile schema", "error", err)
		os.Exit(1)
	}

	store := record.NewStore(schema, cfg.levels)

	accepted, rejected := 0, 0
loop:
	for i := 0; i < cfg.keySpace && i < 1000; i++ {
		select {
		case <-ctx.Done():
			break loop
		default:
		}
		path := fmt.Sprintf("/generated/%d", i)
		doc := []byte(fmt.Sprintf(`{"id": %d}`, i))
		if err := store.Put(ctx, path, doc); err != nil {
			rejected++
			continue
		}
		accepted++
	}

	fmt.Printf("accepted=%d rejected=%d stored=%d\n", accepted, rejected, store.Len())
}
