package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/krisalay/warmcache/api"
	"github.com/krisalay/warmcache/types"
)

// ErrTypeMismatch is returned when a stored value is not of the requested type.
var ErrTypeMismatch = errors.New("cache: stored value has a different type")

/*
Fetch is the typed form of GetOrCompute.

	res, err := cache.Fetch(ctx, c, keys.UserAvatar(id), loadAvatarURL, types.Options{TTL: time.Hour})
	if err != nil {
		// show the default avatar
	}

The loader's return type drives T. A value of another type already stored
under key is reported with ErrTypeMismatch instead of panicking.
*/
func Fetch[T any](
	ctx context.Context,
	c api.Cache,
	key string,
	loader func(context.Context) (T, error),
	opts types.Options,
) (types.ResultOf[T], error) {

	var untyped types.Loader
	if loader != nil {
		untyped = func(ctx context.Context) (any, error) {
			return loader(ctx)
		}
	}

	res, err := c.GetOrCompute(ctx, key, untyped, opts)
	if err != nil {
		return types.ResultOf[T]{}, err
	}

	// A loader may legitimately return the zero value of an interface or
	// pointer type; that comes back as a nil any.
	if res.Value == nil {
		var zero T
		return types.ResultOf[T]{Value: zero, WasHit: res.WasHit}, nil
	}

	v, ok := res.Value.(T)
	if !ok {
		return types.ResultOf[T]{}, fmt.Errorf("%w: key %q holds %T", ErrTypeMismatch, key, res.Value)
	}
	return types.ResultOf[T]{Value: v, WasHit: res.WasHit}, nil
}

// Peek returns the typed entry stored for key, stale or not.
// It reports false when nothing is stored or the value is not a T.
func Peek[T any](c api.Cache, key string) (types.Entry[T], bool) {
	ent, ok := c.Peek(key)
	if !ok {
		return types.Entry[T]{}, false
	}
	v, ok := ent.Value.(T)
	if !ok {
		return types.Entry[T]{}, false
	}
	return types.Entry[T]{
		Key:      ent.Key,
		Value:    v,
		StoredAt: ent.StoredAt,
		TTL:      ent.TTL,
	}, true
}
