package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/urfave/cli/v3"

	cache "github.com/krisalay/warmcache"
	"github.com/krisalay/warmcache/behavior"
	"github.com/krisalay/warmcache/config"
	"github.com/krisalay/warmcache/store"
	"github.com/krisalay/warmcache/types"
	"github.com/krisalay/warmcache/warmer"
)

// InitApp builds the command tree.
func InitApp() *cli.Command {
	app := &cli.Command{
		Name:  "warmcache",
		Usage: "predictive in-memory cache",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to warmcache.yaml",
				Sources: cli.EnvVars(config.EnvPath),
			},
		},
	}

	app.Commands = append(app.Commands,
		DemoCommandBuilder(),
		BenchCommandBuilder(),
	)

	// Make sure flags are sorted for the --help text.
	for _, cmd := range app.Commands {
		sort.Slice(cmd.Flags, func(i, j int) bool {
			return cmd.Flags[i].Names()[0] < cmd.Flags[j].Names()[0]
		})
	}

	return app
}

// instance is one fully wired cache together with its warmer.
type instance struct {
	cfg     config.Type
	store   *store.Store
	cache   *cache.Orchestrator
	warmer  *warmer.Warmer
	backend *backend

	stopSweeper context.CancelFunc
	sweeperDone <-chan struct{}
}

func loadConfig(cmd *cli.Command) (config.Type, error) {
	return config.Load(cmd.String("config"))
}

func newInstance(ctx context.Context, cfg config.Type, m types.Metrics, b *backend) (*instance, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if m == nil {
		m = types.NoopMetrics{}
	}

	st := store.New(
		store.WithShards(cfg.Cache.Shards),
		store.WithDefaultTTL(cfg.Cache.DefaultTTL),
		store.WithMetrics(m),
	)
	orch := cache.New(st, cache.WithDefaultTTL(cfg.Cache.DefaultTTL))

	behaviorLog := behavior.NewLog(
		behavior.WithMaxEntries(cfg.Behavior.MaxEntries),
		behavior.WithRetention(cfg.Behavior.Retention),
		behavior.WithClock(st.Clock()),
	)
	w := warmer.New(orch, b,
		warmer.WithRecorder(behavior.NewRecorder(behaviorLog, cfg.Behavior.Buffer)),
		warmer.WithClock(st.Clock()),
		warmer.WithMetrics(m),
		warmer.WithInterval(cfg.Warmer.Interval),
		warmer.WithConcurrency(cfg.Warmer.Concurrency),
		warmer.WithLimits(cfg.Warmer.MaxProjects, cfg.Warmer.MaxRoutes),
		warmer.WithTTL(cfg.Warmer.TTL),
	)

	sweepCtx, cancel := context.WithCancel(ctx)
	return &instance{
		cfg:         cfg,
		store:       st,
		cache:       orch,
		warmer:      w,
		backend:     b,
		stopSweeper: cancel,
		sweeperDone: st.StartSweeper(sweepCtx, cfg.Cache.SweepInterval),
	}, nil
}

func (r *instance) Close() {
	r.warmer.Close()
	r.stopSweeper()
	<-r.sweeperDone
}
