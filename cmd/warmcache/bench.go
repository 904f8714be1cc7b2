package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"

	"github.com/krisalay/warmcache/keys"
	"github.com/krisalay/warmcache/metrics"
	"github.com/krisalay/warmcache/types"
)

func BenchCommandBuilder() *cli.Command {
	return &cli.Command{
		Name:      "bench",
		Usage:     "run a concurrent get-or-compute load test",
		UsageText: `warmcache bench [options]`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "goroutines",
				Aliases: []string{"g"},
				Usage:   "concurrent callers",
				Value:   200,
			},
			&cli.IntFlag{
				Name:  "ops",
				Usage: "operations per caller",
				Value: 5000,
			},
			&cli.IntFlag{
				Name:  "keys",
				Usage: "distinct keys preloaded before the run",
				Value: 100000,
			},
			&cli.IntFlag{
				Name:  "users",
				Usage: "users kept warm by background sync during the run",
				Value: 8,
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "serve Prometheus metrics on this address, e.g. :9090",
			},
		},
		Action: BenchCommandAction,
	}
}

func BenchCommandAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	goroutines := cmd.Int("goroutines")
	opsPerG := cmd.Int("ops")
	preloadKeys := cmd.Int("keys")
	users := cmd.Int("users")
	if goroutines <= 0 || opsPerG <= 0 || preloadKeys <= 0 {
		return errors.New("goroutines, ops and keys must be positive")
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "warmcache")

	if addr := cmd.String("metrics-addr"); addr != "" {
		srv := &http.Server{Addr: addr, Handler: metrics.Handler(reg), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Error("metrics server stopped")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		fmt.Println("Metrics      : http://" + addr + "/metrics")
	}

	b := newBackend(0)
	inst, err := newInstance(ctx, cfg, m, b)
	if err != nil {
		return err
	}
	defer inst.Close()
	c := inst.cache

	fmt.Println("CONFIG")
	fmt.Println("---------------------------------")
	fmt.Println("Shards       :", cfg.Cache.Shards)
	fmt.Println("Default TTL  :", cfg.Cache.DefaultTTL)
	fmt.Println("Preload Keys :", humanize.Comma(int64(preloadKeys)))
	fmt.Println("Goroutines   :", goroutines)
	fmt.Println("Ops/Goroutine:", humanize.Comma(int64(opsPerG)))
	fmt.Println("Synced Users :", users)
	fmt.Println("---------------------------------")

	load := func(i int) types.Loader {
		return func(context.Context) (any, error) { return i, nil }
	}

	// ---------------- Preload Cache ----------------
	fmt.Println("Preloading cache...")
	for i := 0; i < preloadKeys; i++ {
		if _, err := c.GetOrCompute(ctx, keys.RouteData("bench", strconv.Itoa(i)), load(i), types.Options{}); err != nil {
			return err
		}
	}
	c.Store().ResetStats()
	fmt.Println("Preload complete.")

	// ---------------- Background Sync ----------------
	for u := 0; u < users; u++ {
		userID := "user-" + strconv.Itoa(u)
		inst.warmer.TrackBehavior(userID, "home", "")
		inst.warmer.StartBackgroundSync(ctx, userID)
	}

	// ---------------- Load Test ----------------
	fmt.Println("Running concurrency benchmark...")
	start := time.Now()

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < opsPerG; j++ {
				// every tenth op asks for a key outside the preloaded set
				i := (id*opsPerG + j) % preloadKeys
				if j%10 == 0 {
					i += preloadKeys
				}
				_, _ = c.GetOrCompute(ctx, keys.RouteData("bench", strconv.Itoa(i)), load(i), types.Options{})
			}
		}(g)
	}
	wg.Wait()

	duration := time.Since(start)
	totalOps := goroutines * opsPerG

	fmt.Println("\n================ RESULTS =================")
	fmt.Printf("Total Operations : %s\n", humanize.Comma(int64(totalOps)))
	fmt.Printf("Total Time       : %v\n", duration)
	fmt.Printf("Throughput       : %s ops/sec\n", humanize.CommafWithDigits(float64(totalOps)/duration.Seconds(), 2))
	fmt.Printf("Entries          : %s\n", humanize.Comma(int64(c.Store().Len())))
	fmt.Printf("Active Syncs     : %d\n", inst.warmer.Sessions())
	fmt.Println("=========================================")

	printStats(c.Stats(), b.reads.Load())
	return nil
}
