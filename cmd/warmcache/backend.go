package main

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/krisalay/warmcache/types"
	"github.com/krisalay/warmcache/warmer"
)

// ================= HOSTED BACKEND =================

// backend simulates the hosted database: every read waits latency and is
// counted, so the demo can show which reads the cache saved.
type backend struct {
	latency time.Duration
	reads   atomic.Int64

	mu       sync.RWMutex
	projects map[string]project
	denied   map[string]bool
}

type project struct {
	ID      string
	Name    string
	Members []string
}

func newBackend(latency time.Duration) *backend {
	return &backend{
		latency:  latency,
		projects: make(map[string]project),
		denied:   make(map[string]bool),
	}
}

func (b *backend) addProject(p project) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.projects[p.ID] = p
}

// deny makes every read of projectID fail, like a row level security rule.
func (b *backend) deny(projectID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.denied[projectID] = true
}

func (b *backend) wait(ctx context.Context) error {
	b.reads.Add(1)
	if b.latency <= 0 {
		return nil
	}
	t := time.NewTimer(b.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (b *backend) avatar(userID string) types.Loader {
	return func(ctx context.Context) (any, error) {
		if err := b.wait(ctx); err != nil {
			return nil, err
		}
		return fmt.Sprintf("https://cdn.example.com/avatars/%s.png", userID), nil
	}
}

func (b *backend) project(projectID string, members bool) types.Loader {
	return func(ctx context.Context) (any, error) {
		if err := b.wait(ctx); err != nil {
			return nil, err
		}

		b.mu.RLock()
		defer b.mu.RUnlock()
		if b.denied[projectID] {
			return nil, fmt.Errorf("permission denied for project %s", projectID)
		}
		p, ok := b.projects[projectID]
		if !ok {
			return nil, fmt.Errorf("project %s not found", projectID)
		}
		if members {
			return append([]string(nil), p.Members...), nil
		}
		return p, nil
	}
}

func (b *backend) route(userID, route string) types.Loader {
	return func(ctx context.Context) (any, error) {
		if err := b.wait(ctx); err != nil {
			return nil, err
		}
		return fmt.Sprintf("%s screen data for %s", route, userID), nil
	}
}

// Resolve implements warmer.Resolver.
func (b *backend) Resolve(c warmer.Candidate) (types.Loader, time.Duration, bool) {
	switch c.Kind {
	case warmer.KindAvatar:
		return b.avatar(c.UserID), time.Hour, true
	case warmer.KindProjectDetail:
		return b.project(c.ID, false), 0, true
	case warmer.KindProjectMembers:
		return b.project(c.ID, true), 0, true
	case warmer.KindRoute:
		return b.route(c.UserID, c.ID), 0, true
	default:
		return nil, 0, false
	}
}
