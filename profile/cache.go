// Package profile memoizes author profiles used to enrich messages.
package profile

import (
	"chat-widget/contract"
	"chat-widget/domain/chat"
	"chat-widget/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	defaultConcurrency   = 8
	defaultLookupTimeout = 5 * time.Second
)

// Cache resolves user ids to profiles through the directory service and keeps
// the results for the lifetime of the process. It never fails: an author that
// cannot be resolved gets the fallback profile.
//
// Cache is safe for concurrent use. Concurrent resolves of the same id share
// one lookup, which outlives the caller that started it.
type Cache struct {
	directory     contract.DirectoryService
	log           *slog.Logger
	entries       sync.Map // chat.UserID -> chat.Profile
	group         singleflight.Group
	concurrency   int
	lookupTimeout time.Duration
}

func NewCache(directory contract.DirectoryService, log *slog.Logger, concurrency int) *Cache {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Cache{directory: directory, log: log, concurrency: concurrency, lookupTimeout: defaultLookupTimeout}
}

func (c *Cache) WithLookupTimeout(d time.Duration) *Cache {
	if d > 0 {
		c.lookupTimeout = d
	}
	return c
}

// Resolve returns the cached profile or looks it up.
// Not-found results are cached as the fallback profile; lookup errors are not
// cached so the next resolve tries again.
func (c *Cache) Resolve(ctx context.Context, id chat.UserID) chat.Profile {
	if p, ok := c.load(id); ok {
		return p
	}
	ch := c.group.DoChan(string(id), func() (any, error) {
		return c.lookup(ctx, id), nil
	})
	select {
	case res := <-ch:
		return res.Val.(chat.Profile)
	case <-ctx.Done():
		// The lookup goes on for the other callers and fills the cache.
		return chat.FallbackProfile(id)
	}
}

// lookup is detached from the cancellation of the caller that started it:
// callers joining the same flight may still be waiting.
func (c *Cache) lookup(ctx context.Context, id chat.UserID) chat.Profile {
	if p, ok := c.load(id); ok {
		return p
	}
	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.lookupTimeout)
	defer cancel()

	found, err := c.directory.GetProfile(lookupCtx, id)
	if err != nil {
		c.log.Debug("Using fallback profile",
			"user_id", id,
			"error", fmt.Errorf("%w: %w", errors.ErrProfileLookupFailed, err))
		return chat.FallbackProfile(id)
	}
	resolved := chat.FallbackProfile(id)
	if found != nil {
		resolved = found.WithDefaults(id)
	}
	c.entries.Store(id, resolved)
	return resolved
}

// ResolveAll resolves a batch of ids, at most concurrency lookups at a time.
func (c *Cache) ResolveAll(ctx context.Context, ids []chat.UserID) map[chat.UserID]chat.Profile {
	var mu sync.Mutex
	res := make(map[chat.UserID]chat.Profile, len(ids))

	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)
	for _, id := range lo.Uniq(ids) {
		g.Go(func() error {
			p := c.Resolve(ctx, id)
			mu.Lock()
			res[id] = p
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return res
}

// Forget drops a cached profile, the next resolve looks it up again.
func (c *Cache) Forget(id chat.UserID) {
	c.entries.Delete(id)
}

func (c *Cache) load(id chat.UserID) (chat.Profile, bool) {
	v, ok := c.entries.Load(id)
	if !ok {
		return chat.Profile{}, false
	}
	return v.(chat.Profile), true
}
