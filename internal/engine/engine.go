package engine

import (
	"log/slog"
	"time"

	"github.com/recordkit/recordkit/internal/cache"
	"github.com/recordkit/recordkit/internal/domain"
	"github.com/recordkit/recordkit/internal/events"
	"github.com/recordkit/recordkit/internal/retry"
	"github.com/recordkit/recordkit/internal/store"
)

// Engine is the tenant-aware core API over the stores. It owns per-record
// write serialization, cache coordination, activity logging, outbound event
// publishing and workflow trigger evaluation. Everything above it (HTTP
// handlers, seeds, tests) goes through the Engine; everything below it is
// plain storage.
type Engine struct {
	store      *store.Store
	cache      cache.Cache
	cacheTTL   time.Duration
	dispatcher *Dispatcher
	logger     *slog.Logger
	locks      keyedMutex
}

// Config tunes the engine. Zero values fall back to defaults: no caching,
// log-only event publishing, 4 dispatch workers.
type Config struct {
	Cache     cache.Cache
	CacheTTL  time.Duration
	Publisher events.Publisher
	Logger    *slog.Logger
	Workers   int
	QueueSize int
	Retry     *retry.Config
}

// New builds an Engine and its dispatcher. Call Start before serving and
// Stop on shutdown to drain queued work.
func New(st *store.Store, cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := cfg.Cache
	if c == nil {
		c = cache.Nop{}
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = &events.LogPublisher{Logger: logger}
	}

	e := &Engine{
		store:    st,
		cache:    c,
		cacheTTL: ttl,
		logger:   logger,
	}
	e.dispatcher = newDispatcher(st, pub, logger, cfg.Workers, cfg.QueueSize, cfg.Retry)
	return e
}

// Start launches the dispatch workers.
func (e *Engine) Start() {
	e.dispatcher.Start()
}

// Stop drains the dispatch queue and waits for in-flight work to finish.
func (e *Engine) Stop() {
	e.dispatcher.Stop()
}

func now() string {
	return time.Now().UTC().Format(domain.TimeFormat)
}

// cloneRecord deep-copies a record so cached instances never alias maps or
// slices handed to callers.
func cloneRecord(r *domain.Record) *domain.Record {
	c := *r
	if r.Properties != nil {
		c.Properties = make(map[string]any, len(r.Properties))
		for k, v := range r.Properties {
			if tags, ok := v.([]string); ok {
				v = append([]string(nil), tags...)
			}
			c.Properties[k] = v
		}
	}
	return &c
}

func (e *Engine) invalidateRecord(tenant, objectID string) {
	e.cache.Delete(cache.RecordKey(tenant, objectID))
	e.cache.DeleteByPrefix(cache.RelatedPrefix(tenant, objectID))
}
