package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// ErrAborted is returned to callers whose in-flight load was cancelled by
// AbortPending or AbortAll.
var ErrAborted = errors.New("fetch aborted")

// Options control a single Fetch. TTL <= 0 uses the Fetcher default.
type Options struct {
	TTL          time.Duration
	UseCache     bool
	ForceRefresh bool
}

// Cached is the common option set: read and write the cache with the default TTL.
var Cached = Options{UseCache: true}

type inflight struct {
	cancel context.CancelFunc
}

// Fetcher loads values through a Store. Concurrent loads of the same key share
// one call; only successful results are stored.
type Fetcher struct {
	store Store
	ttl   time.Duration
	log   *slog.Logger
	group singleflight.Group

	mu      sync.Mutex
	pending map[string]*inflight

	// gen counts invalidations per key. A load only stores its result when
	// the key's generation is unchanged since it started.
	genMu sync.Mutex
	gen   map[string]uint64
}

func NewFetcher(store Store, defaultTTL time.Duration, log *slog.Logger) *Fetcher {
	if log == nil {
		log = slog.Default()
	}
	return &Fetcher{store: store, ttl: defaultTTL, log: log, pending: make(map[string]*inflight), gen: make(map[string]uint64)}
}

// Fetch returns the cached value for key or loads it with fn. Loads run on a
// context detached from the caller so that one caller leaving does not cancel
// the shared call; AbortPending and AbortAll cancel it explicitly.
func Fetch[T any](ctx context.Context, f *Fetcher, key string, fn func(context.Context) (T, error), opts Options) (T, error) {
	var zero T
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = f.ttl
	}

	if opts.UseCache && !opts.ForceRefresh {
		raw, ok, err := f.store.Get(ctx, key)
		if err != nil {
			f.log.Warn("cache read failed", "key", key, "error", err)
		} else if ok {
			var v T
			if err := json.Unmarshal(raw, &v); err == nil {
				return v, nil
			}
			f.log.Warn("dropping undecodable cache entry", "key", key)
		}
	}

	load := func(c context.Context) ([]byte, error) {
		v, err := fn(c)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}
	ch := f.group.DoChan(key, func() (any, error) {
		return f.run(ctx, key, load, ttl, opts.UseCache)
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		var v T
		if err := json.Unmarshal(res.Val.([]byte), &v); err != nil {
			return zero, fmt.Errorf("decode %q: %w", key, err)
		}
		return v, nil
	}
}

func (f *Fetcher) run(parent context.Context, key string, load func(context.Context) ([]byte, error), ttl time.Duration, store bool) ([]byte, error) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	call := &inflight{cancel: cancel}
	startGen := f.generation(key)
	f.mu.Lock()
	f.pending[key] = call
	f.mu.Unlock()
	defer func() {
		cancel()
		f.mu.Lock()
		if f.pending[key] == call {
			delete(f.pending, key)
		}
		f.mu.Unlock()
	}()

	raw, err := load(ctx)
	if ctx.Err() != nil {
		return nil, ErrAborted
	}
	if err != nil {
		return nil, err
	}
	if store {
		f.storeIfCurrent(ctx, key, raw, ttl, startGen)
	}
	return raw, nil
}

func (f *Fetcher) generation(key string) uint64 {
	f.genMu.Lock()
	defer f.genMu.Unlock()
	return f.gen[key]
}

// storeIfCurrent writes raw unless key was invalidated after the load began.
// genMu is held across the write so an Invalidate either sees the entry and
// deletes it, or bumps the generation first and the write is skipped.
func (f *Fetcher) storeIfCurrent(ctx context.Context, key string, raw []byte, ttl time.Duration, startGen uint64) {
	f.genMu.Lock()
	defer f.genMu.Unlock()
	if f.gen[key] != startGen {
		f.log.Debug("skipping cache write for invalidated key", "key", key)
		return
	}
	if err := f.store.Set(ctx, key, raw, ttl); err != nil {
		f.log.Warn("cache write failed", "key", key, "error", err)
	}
}

// AbortPending cancels the in-flight load for key. Callers waiting on it get
// ErrAborted; the next Fetch starts a new load. Reports whether a load was pending.
func (f *Fetcher) AbortPending(key string) bool {
	f.mu.Lock()
	call, ok := f.pending[key]
	if ok {
		delete(f.pending, key)
	}
	f.mu.Unlock()
	if !ok {
		return false
	}
	f.group.Forget(key)
	call.cancel()
	return true
}

// AbortAll cancels every in-flight load and returns how many were cancelled.
func (f *Fetcher) AbortAll() int {
	f.mu.Lock()
	calls := f.pending
	f.pending = make(map[string]*inflight)
	f.mu.Unlock()
	for key, call := range calls {
		f.group.Forget(key)
		call.cancel()
	}
	return len(calls)
}

// Invalidate drops key from the store. Loads already in flight keep running
// and still answer their callers, but their results are not stored. Fetches
// issued after Invalidate start a fresh load.
func (f *Fetcher) Invalidate(ctx context.Context, key string) error {
	f.genMu.Lock()
	f.gen[key]++
	f.genMu.Unlock()
	f.group.Forget(key)
	return f.store.Delete(ctx, key)
}

// InvalidateKeys drops each key and logs failures. A nil Fetcher is a no-op.
func (f *Fetcher) InvalidateKeys(ctx context.Context, keys ...string) {
	if f == nil {
		return
	}
	for _, key := range keys {
		if err := f.Invalidate(ctx, key); err != nil {
			f.log.Warn("cache invalidate failed", "key", key, "error", err)
		}
	}
}

// DashboardKey is the per-user dashboard summary entry. Writes that change a
// user's balances, ratings or projects drop it.
func DashboardKey(userID uuid.UUID) string { return "dashboard:" + userID.String() }

// DashboardKeys maps ids to their dashboard keys, skipping uuid.Nil.
func DashboardKeys(ids ...uuid.UUID) []string {
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != uuid.Nil {
			keys = append(keys, DashboardKey(id))
		}
	}
	return keys
}

// Pending reports how many loads are in flight.
func (f *Fetcher) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}
