package warmer

import (
	"time"

	"github.com/krisalay/warmcache/types"
)

// Kind says what a candidate key holds.
type Kind int

const (
	KindAvatar Kind = iota
	KindProjectDetail
	KindProjectMembers
	KindRoute
)

func (k Kind) String() string {
	switch k {
	case KindAvatar:
		return "avatar"
	case KindProjectDetail:
		return "project_detail"
	case KindProjectMembers:
		return "project_members"
	case KindRoute:
		return "route"
	default:
		return "unknown"
	}
}

// Candidate is a key the warmer thinks the user will need soon.
type Candidate struct {
	Kind   Kind
	UserID string
	ID     string // user, project or route id depending on Kind
	Key    string
	Score  float64
}

// Resolver turns a candidate into the loader that produces its value.
// It reports false for candidates it does not know how to load; those are
// skipped, not failed. A zero TTL means the warmer default.
type Resolver interface {
	Resolve(c Candidate) (loader types.Loader, ttl time.Duration, ok bool)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(c Candidate) (types.Loader, time.Duration, bool)

func (f ResolverFunc) Resolve(c Candidate) (types.Loader, time.Duration, bool) {
	return f(c)
}
