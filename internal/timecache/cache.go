// Package timecache is the client-side read-through cache for elapsed-time summaries.
package timecache

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/balkashynov/tasktime/internal/api"
	"github.com/balkashynov/tasktime/internal/cachemanager"
	"github.com/balkashynov/tasktime/internal/log"
	"github.com/balkashynov/tasktime/internal/models"
)

const (
	DefaultTTL       = 30 * time.Second
	DefaultChunkSize = 50

	// entries stay in memory this many TTLs so a failed refresh can fall back to them
	staleRetention = 10

	maxParallelChunks = 4
)

// Fetcher is the server API the cache reads through.
type Fetcher interface {
	Batch(ctx context.Context, taskIDs []string) (map[string]api.Summary, error)
	Sessions(ctx context.Context, taskID string) (*api.SessionsResponse, error)
}

// Options tunes a Cache. Zero values use the defaults.
type Options struct {
	TTL       time.Duration
	ChunkSize int
	Now       func() time.Time
}

type entry struct {
	Summary  api.Summary
	StoredAt time.Time
}

// call is one in-flight fetch for one task id.
type call struct {
	done    chan struct{}
	summary api.Summary
	err     error
}

// Cache memoizes summaries per task id for a fixed TTL and deduplicates concurrent fetches.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	chunk   int
	now     func() time.Time

	entries  cachemanager.CacheManager[string, entry]
	sessions *cachemanager.ReadThroughCache[string, *api.SessionsResponse, string]
	flights  singleflight.Group

	mu      sync.Mutex
	pending map[string]*call
}

// New creates a cache in front of fetcher.
func New(fetcher Fetcher, opts Options) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Cache{
		fetcher: fetcher,
		ttl:     opts.TTL,
		chunk:   opts.ChunkSize,
		now:     opts.Now,
		entries: cachemanager.NewInMemoryCacheManager[string, entry]("time-summaries",
			opts.TTL*staleRetention, cachemanager.DefaultCleanupInterval),
		pending: make(map[string]*call),
	}
	c.sessions = cachemanager.NewReadThroughCache[string, *api.SessionsResponse, string](
		cachemanager.NewInMemoryCacheManager[string, *api.SessionsResponse]("task-sessions",
			opts.TTL, cachemanager.DefaultCleanupInterval),
		c.loadSessions,
		false,
	)
	return c
}

// Get returns the cached summary for taskID without contacting the server.
// Unsaved local ids always report an empty summary.
func (c *Cache) Get(taskID string) (api.Summary, bool) {
	if IsLocalID(taskID) {
		return api.ZeroSummary(), true
	}
	e, ok := c.entries.Get(context.Background(), taskID)
	if !ok || !c.fresh(e) {
		return api.Summary{}, false
	}
	return e.Summary, true
}

// Refresh fetches taskID's summary from the server, joining a fetch already in flight.
// On failure the error is returned and the cache keeps the previous value, or an empty
// summary if there was none.
func (c *Cache) Refresh(ctx context.Context, taskID string) (api.Summary, error) {
	if IsLocalID(taskID) {
		c.store(taskID, api.ZeroSummary())
		return api.ZeroSummary(), nil
	}

	c.mu.Lock()
	if cl, ok := c.pending[taskID]; ok {
		c.mu.Unlock()
		return wait(ctx, cl)
	}
	cl := c.begin(taskID)
	c.mu.Unlock()

	_ = c.fetch(ctx, []string{taskID}, map[string]*call{taskID: cl})
	return cl.summary, cl.err
}

// Preload fetches summaries for ids in chunks, skipping ids that are fresh in the cache or
// already being fetched. Local ids are cached as empty without a request.
func (c *Cache) Preload(ctx context.Context, ids []string) error {
	calls := make(map[string]*call)
	var toFetch []string

	c.mu.Lock()
	for _, id := range ids {
		if _, dup := calls[id]; dup {
			continue
		}
		if IsLocalID(id) {
			c.store(id, api.ZeroSummary())
			continue
		}
		if e, ok := c.entries.Get(ctx, id); ok && c.fresh(e) {
			continue
		}
		if _, ok := c.pending[id]; ok {
			continue
		}
		calls[id] = c.begin(id)
		toFetch = append(toFetch, id)
	}
	c.mu.Unlock()

	if len(toFetch) == 0 {
		return nil
	}

	var g errgroup.Group
	g.SetLimit(maxParallelChunks)
	for start := 0; start < len(toFetch); start += c.chunk {
		chunk := toFetch[start:min(start+c.chunk, len(toFetch))]
		g.Go(func() error {
			return c.fetch(ctx, chunk, calls)
		})
	}
	return g.Wait()
}

// Sessions returns the session list for taskID, read through a TTL cache. Concurrent
// callers share one request.
func (c *Cache) Sessions(ctx context.Context, taskID string) (*api.SessionsResponse, error) {
	if IsLocalID(taskID) {
		return &api.SessionsResponse{Sessions: []models.TimeSession{}, Stats: api.Stats{Summary: api.ZeroSummary()}}, nil
	}
	return c.sessions.Get(ctx, taskID, taskID, c.ttl)
}

// Invalidate drops everything cached for taskID. A fetch in flight still answers its
// waiters but its result is not stored.
func (c *Cache) Invalidate(taskID string) {
	c.mu.Lock()
	delete(c.pending, taskID)
	c.mu.Unlock()

	ctx := context.Background()
	_ = c.entries.Delete(ctx, taskID)
	c.sessions.Forget(ctx, taskID)
	c.flights.Forget(taskID)
	log.Debug(log.CatCache, "invalidated", "task_id", taskID, "entries", c.entries.Len())
}

// Pending reports whether a fetch for taskID is in flight.
func (c *Cache) Pending(taskID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[taskID]
	return ok
}

func (c *Cache) loadSessions(ctx context.Context, taskID string) (*api.SessionsResponse, error) {
	v, err, shared := c.flights.Do(taskID, func() (any, error) {
		return c.fetcher.Sessions(ctx, taskID)
	})
	if err != nil {
		return nil, err
	}
	resp := v.(*api.SessionsResponse)
	if !shared {
		c.store(taskID, resp.Stats.Summary)
	}
	return resp, nil
}

// begin registers a pending call. c.mu must be held.
func (c *Cache) begin(taskID string) *call {
	cl := &call{done: make(chan struct{})}
	c.pending[taskID] = cl
	return cl
}

func (c *Cache) fetch(ctx context.Context, ids []string, calls map[string]*call) error {
	times, err := c.fetcher.Batch(ctx, ids)
	if err != nil {
		log.Warn(log.CatCache, "batch fetch failed", "ids", len(ids), "error", err.Error())
	}
	for _, id := range ids {
		summary, ok := times[id]
		if !ok {
			summary = api.ZeroSummary()
		}
		c.complete(id, calls[id], summary, err)
	}
	return err
}

func (c *Cache) complete(taskID string, cl *call, summary api.Summary, err error) {
	c.mu.Lock()
	current := c.pending[taskID] == cl
	if current {
		delete(c.pending, taskID)
	}
	c.mu.Unlock()

	if err != nil {
		summary = api.ZeroSummary()
		if prev, ok := c.entries.Get(context.Background(), taskID); ok {
			summary = prev.Summary
		}
	}
	if current {
		c.store(taskID, summary)
	}

	cl.summary = summary
	cl.err = err
	close(cl.done)
}

func (c *Cache) store(taskID string, summary api.Summary) {
	c.entries.Set(context.Background(), taskID,
		entry{Summary: summary, StoredAt: c.now()}, c.ttl*staleRetention)
}

func (c *Cache) fresh(e entry) bool {
	return c.now().Sub(e.StoredAt) < c.ttl
}

func wait(ctx context.Context, cl *call) (api.Summary, error) {
	select {
	case <-cl.done:
		return cl.summary, cl.err
	case <-ctx.Done():
		return api.Summary{}, ctx.Err()
	}
}
