package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	cache "github.com/krisalay/warmcache"
	"github.com/krisalay/warmcache/keys"
	"github.com/krisalay/warmcache/types"
)

func DemoCommandBuilder() *cli.Command {
	return &cli.Command{
		Name:      "demo",
		Usage:     "walk through hits, expiry, coalescing and warming",
		UsageText: `warmcache demo [options]`,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "latency",
				Usage: "simulated backend latency per read",
				Value: 50 * time.Millisecond,
			},
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "TTL used for the expiry scenario",
				Value: 300 * time.Millisecond,
			},
		},
		Action: DemoCommandAction,
	}
}

func DemoCommandAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	b := newBackend(cmd.Duration("latency"))
	b.addProject(project{ID: "p1", Name: "Sunday Service", Members: []string{"u1", "u2"}})
	b.addProject(project{ID: "p2", Name: "Youth Camp", Members: []string{"u1", "u3"}})
	b.addProject(project{ID: "p3", Name: "Finance", Members: []string{"u4"}})
	b.deny("p3")

	inst, err := newInstance(ctx, cfg, nil, b)
	if err != nil {
		return err
	}
	defer inst.Close()

	ttl := cmd.Duration("ttl")
	c := inst.cache

	fmt.Println("\n==================== MISS THEN HIT ====================")
	for i := 0; i < 2; i++ {
		start := time.Now()
		res, err := c.GetOrCompute(ctx, keys.UserAvatar("u1"), b.avatar("u1"), types.Options{TTL: time.Hour})
		if err != nil {
			return err
		}
		fmt.Printf("avatar  hit=%-5v took=%-12v value=%v\n", res.WasHit, time.Since(start).Round(time.Microsecond), res.Value)
	}

	fmt.Println("\n==================== TTL EXPIRY ====================")
	key := keys.ProjectDetail("p1")
	if _, err := c.GetOrCompute(ctx, key, b.project("p1", false), types.Options{TTL: ttl}); err != nil {
		return err
	}
	ent, _ := c.Peek(key)
	fmt.Printf("stored  %s, expires %s\n", key, humanize.RelTime(ent.StoredAt.Add(ent.TTL), time.Now(), "ago", "from now"))
	time.Sleep(ttl + 50*time.Millisecond)
	res, err := c.GetOrCompute(ctx, key, b.project("p1", false), types.Options{TTL: ttl})
	if err != nil {
		return err
	}
	fmt.Printf("after   %v: hit=%v\n", ttl, res.WasHit)

	fmt.Println("\n==================== SINGLE FLIGHT ====================")
	readsBefore := b.reads.Load()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.GetOrCompute(ctx, keys.ProjectMembers("p2"), b.project("p2", true), types.Options{})
		}()
	}
	wg.Wait()
	fmt.Printf("20 concurrent callers, %d backend read(s)\n", b.reads.Load()-readsBefore)

	fmt.Println("\n==================== TYPED FETCH ====================")
	members, err := cache.Fetch(ctx, c, keys.ProjectMembers("p2"), func(context.Context) ([]string, error) {
		return nil, errors.New("not reached while fresh")
	}, types.Options{})
	if err != nil {
		return err
	}
	fmt.Printf("members of p2: %v (hit=%v)\n", members.Value, members.WasHit)

	fmt.Println("\n==================== INVALIDATE ====================")
	fmt.Printf("invalidate avatar: %v\n", c.Invalidate(keys.UserAvatar("u1")))
	res, err = c.GetOrCompute(ctx, keys.UserAvatar("u1"), b.avatar("u1"), types.Options{TTL: time.Hour})
	if err != nil {
		return err
	}
	fmt.Printf("next read hit=%v\n", res.WasHit)

	fmt.Println("\n==================== LOAD FAILURE ====================")
	_, err = c.GetOrCompute(ctx, keys.ProjectDetail("p3"), b.project("p3", false), types.Options{})
	fmt.Printf("error: %v (load failed: %v)\n", err, errors.Is(err, cache.ErrLoadFailed))

	fmt.Println("\n==================== PREDICTIVE WARMING ====================")
	for _, visit := range []struct{ route, project string }{
		{"project", "p2"},
		{"project", "p2"},
		{"project", "p3"},
		{"sermons", ""},
		{"project", "p2"},
	} {
		inst.warmer.TrackBehavior("u2", visit.route, visit.project)
	}
	for _, cand := range inst.warmer.Plan("u2") {
		fmt.Printf("plan    %-28s score=%.3f\n", cand.Key, cand.Score)
	}
	report := <-inst.warmer.WarmDuringIdle(ctx, "u2")
	fmt.Printf("warm    planned=%d loaded=%d fresh=%d failed=%d in %v\n",
		report.Planned, report.Loaded, report.AlreadyFresh, report.Failed(), report.Duration.Round(time.Millisecond))
	for _, f := range report.Failures {
		fmt.Printf("        %v\n", f)
	}

	fmt.Println("\n==================== SIGN OUT ====================")
	inst.warmer.SignOut(ctx, "u2")
	fmt.Printf("u2 plan after sign out: %d candidate(s)\n", len(inst.warmer.Plan("u2")))

	printEntries(inst.store.Keys())
	printStats(c.Stats(), b.reads.Load())
	return nil
}

// countByNamespace counts keys per namespace, skipping keys it cannot parse.
func countByNamespace(stored []string) map[keys.Namespace]int {
	counts := make(map[keys.Namespace]int)
	for _, k := range stored {
		ns, _, err := keys.Parse(k)
		if err != nil {
			continue
		}
		counts[ns]++
	}
	return counts
}

func printEntries(stored []string) {
	fmt.Println("\n==================== ENTRIES ====================")
	counts := countByNamespace(stored)
	for _, ns := range []keys.Namespace{
		keys.NSUserAvatar,
		keys.NSUserProfile,
		keys.NSProjectDetail,
		keys.NSProjectMembers,
		keys.NSRouteData,
	} {
		fmt.Printf("%-16s: %d\n", ns, counts[ns])
	}
}
