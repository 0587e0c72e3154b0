// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package lattice

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/featurebasedb/lattice/logger"
)

// DefaultCacheCapacity is the default bound for the identifier-keyed
// and name-keyed schema caches.
const DefaultCacheCapacity = 10000

// Config holds tuning knobs for a schema cache. The zero value is
// usable; unset fields fall back to defaults.
type Config struct {
	// CacheCapacity bounds the identifier-keyed and name-keyed caches.
	CacheCapacity int

	// ArrayCacheSize is the id span of the optimized array cache.
	// Defaults to CacheCapacity/8.
	ArrayCacheSize int

	Logger logger.Logger
	Stats  StatsClient
}

func (c Config) withDefaults() Config {
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = DefaultCacheCapacity
	}
	if c.ArrayCacheSize <= 0 {
		c.ArrayCacheSize = c.CacheCapacity >> 3
	}
	if c.Logger == nil {
		c.Logger = logger.NopLogger
	}
	if c.Stats == nil {
		c.Stats = NopStatsClient
	}
	return c
}

// cacheKey addresses one schema element in a bounded cache. The type
// token scopes raw keys per schema type; a comparable struct does that
// without concatenating on every lookup.
type cacheKey struct {
	typ SchemaType
	key string
}

// connCaches is the shared mutable state of one graph connection: the
// two bounded caches, the array-cache attachment and the invalidation
// hub. Created once per connection and shared by reference across
// every transaction opened on it.
type connCaches struct {
	capacity int

	ids    *lru.Cache[cacheKey, *SchemaElement]
	names  *lru.Cache[cacheKey, *SchemaElement]
	arrays *schemaArrays
	hub    *EventHub[CacheEvent]
}

// connections registers connection-shared caches by graph name; every
// transaction attaching to the same graph gets the same instance.
// Entries live for the process.
var connections = xsync.NewMapOf[string, *connCaches]()

func sharedConnCaches(graph string, cfg Config) *connCaches {
	cc, _ := connections.LoadOrCompute(graph, func() *connCaches {
		ids, err := lru.New[cacheKey, *SchemaElement](cfg.CacheCapacity)
		if err != nil {
			panic(err)
		}
		names, err := lru.New[cacheKey, *SchemaElement](cfg.CacheCapacity)
		if err != nil {
			panic(err)
		}
		return &connCaches{
			capacity: cfg.CacheCapacity,
			ids:      ids,
			names:    names,
			arrays:   newSchemaArrays(cfg.ArrayCacheSize),
			hub:      NewEventHub[CacheEvent](),
		}
	})
	return cc
}

// SchemaCache is the per-transaction view onto a connection's shared
// schema caches. Lookups hit the optimized array cache, then the
// identifier- or name-keyed cache, then delegate to the backend store
// and populate all three caches on the way out. Mutations publish
// invalidation events so every peer transaction observes them.
//
// The first transaction to open a graph fixes the capacity of the
// shared caches; later Config values for the same graph are ignored.
type SchemaCache struct {
	graph  string
	store  SchemaStore
	shared *connCaches

	logger logger.Logger
	stats  StatsClient

	cancelStore func()
	cancelCache func()
}

// NewSchemaCache attaches a schema cache to the named graph connection,
// creating the shared caches if this is the first attachment, and
// subscribes to both the store lifecycle hub and the connection's
// invalidation hub.
func NewSchemaCache(graph string, store SchemaStore, cfg Config) *SchemaCache {
	cfg = cfg.withDefaults()
	c := &SchemaCache{
		graph:  graph,
		store:  store,
		shared: sharedConnCaches(graph, cfg),
		logger: cfg.Logger,
		stats:  cfg.Stats,
	}

	c.cancelStore = store.Lifecycle().Subscribe(c.onLifecycleEvent)
	c.cancelCache = c.shared.hub.Subscribe(c.onCacheEvent)
	return c
}

// Hub returns the connection's invalidation hub. External publishers
// (bulk migrations, cross-process bridges) may publish cache events on
// it directly.
func (c *SchemaCache) Hub() *EventHub[CacheEvent] { return c.shared.hub }

// Close detaches the cache from both hubs and clears the shared caches
// without notifying peers.
func (c *SchemaCache) Close() {
	c.cancelStore()
	c.cancelCache()
	c.clearCache(false)
}

func (c *SchemaCache) onLifecycleEvent(ev LifecycleEvent) {
	switch ev {
	case StoreInit, StoreClear, StoreTruncate:
		c.logger.Debugf("graph %s clear schema cache on event %q", c.graph, ev)
		c.Clear(true)
	}
}

func (c *SchemaCache) onCacheEvent(ev CacheEvent) {
	c.logger.Debugf("graph %s received schema cache event: %s %v %s",
		c.graph, ev.Action, ev.Type, ev.ID)
	switch ev.Action {
	case ActionInvalidate:
		c.invalidateEntry(ev.Type, ev.ID)
		c.shared.arrays.resetAllCached(ev.Type)
	case ActionInvalidateType:
		c.evictType(ev.Type)
		c.shared.arrays.resetAllCached(ev.Type)
	case ActionCleared:
		// A peer already cleared the shared caches; purge again
		// locally (idempotent) but never re-notify from a listener.
		c.clearCache(false)
	}
}

// GetByID returns the schema element with the given id, consulting the
// optimized array cache, the identifier-keyed cache and finally the
// backend store. Returns (nil, nil) when the element does not exist.
func (c *SchemaCache) GetByID(typ SchemaType, id ID) (*SchemaElement, error) {
	if id.IsNumber() && id.Int64() > 0 {
		if e := c.shared.arrays.get(typ, id); e != nil {
			c.stats.Count(MetricSchemaCacheHit, 1, 1.0)
			return e, nil
		}
	}

	key := cacheKey{typ, id.String()}
	if e, ok := c.shared.ids.Get(key); ok {
		// Promote id-cache hits into the array cache.
		c.shared.arrays.updateIfNeeded(e)
		c.stats.Count(MetricSchemaCacheHit, 1, 1.0)
		return e, nil
	}

	c.stats.Count(MetricSchemaCacheMiss, 1, 1.0)
	e, err := c.store.FetchByID(typ, id)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s by id %s", typ, id)
	}
	if e != nil {
		c.updateCache(e)
	}
	return e, nil
}

// GetByName returns the schema element with the given name, consulting
// the name-keyed cache and then the backend store. Returns (nil, nil)
// when the element does not exist.
func (c *SchemaCache) GetByName(typ SchemaType, name string) (*SchemaElement, error) {
	if e, ok := c.shared.names.Get(cacheKey{typ, name}); ok {
		c.stats.Count(MetricSchemaCacheHit, 1, 1.0)
		return e, nil
	}

	c.stats.Count(MetricSchemaCacheMiss, 1, 1.0)
	e, err := c.store.FetchByName(typ, name)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s by name %q", typ, name)
	}
	if e != nil {
		c.updateCache(e)
	}
	return e, nil
}

// GetAll returns every schema element of one type. When the type is
// flagged fully cached, the identifier-keyed cache is scanned with no
// backend call. Otherwise the backend is delegated to, and the result
// is cached (and the type flagged) only if it fits in the remaining
// capacity; oversized results are returned uncached to avoid unbounded
// growth.
func (c *SchemaCache) GetAll(typ SchemaType) ([]*SchemaElement, error) {
	if c.shared.arrays.allCached(typ) {
		var results []*SchemaElement
		for _, e := range c.shared.ids.Values() {
			if e.Type() == typ {
				results = append(results, e)
			}
		}
		c.stats.Count(MetricSchemaCacheHit, 1, 1.0)
		return results, nil
	}

	c.shared.arrays.resetAllCached(typ)
	c.stats.Count(MetricSchemaCacheMiss, 1, 1.0)
	results, err := c.store.FetchAll(typ)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching all %s", typ)
	}
	free := c.shared.capacity - c.shared.ids.Len()
	if len(results) <= free {
		for _, e := range results {
			c.updateCache(e)
		}
		c.shared.arrays.markAllCached(typ)
	}
	return results, nil
}

// Put caches a newly created schema element and publishes an
// invalidation event for it.
func (c *SchemaCache) Put(e *SchemaElement) {
	c.putAndNotify(e)
}

// Update caches a replaced schema element and publishes an invalidation
// event for it. Elements mutate only by full replace, so Update and
// Put share one path.
func (c *SchemaCache) Update(e *SchemaElement) {
	c.putAndNotify(e)
}

func (c *SchemaCache) putAndNotify(e *SchemaElement) {
	// Publish before the upsert: delivery is synchronous, so listeners
	// evict the stale entry and reset completeness flags first, and
	// the fresh entry written below survives.
	c.stats.Count(MetricInvalidateCache, 1, 1.0)
	c.shared.hub.Publish(CacheEvent{Action: ActionInvalidate, Type: e.Type(), ID: e.ID()})
	c.updateCache(e)
	c.stats.Gauge(MetricSchemaCacheLength, float64(c.shared.ids.Len()), 1.0)
}

// Remove evicts the element with the given id from all three caches
// and publishes an invalidation event. Removing an element that was
// never cached is a no-op.
func (c *SchemaCache) Remove(typ SchemaType, id ID) {
	if !c.invalidateEntry(typ, id) {
		return
	}
	c.stats.Count(MetricInvalidateCache, 1, 1.0)
	c.shared.hub.Publish(CacheEvent{Action: ActionInvalidate, Type: typ, ID: id})
}

// Clear empties all three caches. With notify set, a cleared event is
// published so peer transactions clear too.
func (c *SchemaCache) Clear(notify bool) {
	c.clearCache(notify)
}

func (c *SchemaCache) clearCache(notify bool) {
	c.shared.ids.Purge()
	c.shared.names.Purge()
	c.shared.arrays.clear()
	c.stats.Count(MetricClearCache, 1, 1.0)

	if notify {
		c.shared.hub.Publish(CacheEvent{Action: ActionCleared})
	}
}

// updateCache upserts one element into the id-keyed, name-keyed and
// array caches. If the id cache is at capacity, every completeness
// flag is dropped first: eviction has no per-element signal, so any
// "complete" set may have silently lost members.
func (c *SchemaCache) updateCache(e *SchemaElement) {
	c.resetAllCachedIfReachedCapacity()

	c.shared.ids.Add(cacheKey{e.Type(), e.ID().String()}, e)
	c.shared.names.Add(cacheKey{e.Type(), e.Name()}, e)
	c.shared.arrays.updateIfNeeded(e)
}

func (c *SchemaCache) resetAllCachedIfReachedCapacity() {
	if c.shared.ids.Len() >= c.shared.capacity {
		c.logger.Warnf("schema cache reached capacity(%d): %d",
			c.shared.capacity, c.shared.ids.Len())
		c.shared.arrays.resetEveryAllCached()
	}
}

// invalidateEntry evicts one element from the id-keyed and name-keyed
// caches and clears its array slot. Reports whether the id cache held
// the entry.
func (c *SchemaCache) invalidateEntry(typ SchemaType, id ID) bool {
	key := cacheKey{typ, id.String()}
	e, ok := c.shared.ids.Get(key)
	if ok {
		c.shared.ids.Remove(key)
		c.shared.names.Remove(cacheKey{typ, e.Name()})
	}
	c.shared.arrays.remove(typ, id)
	return ok
}

// evictType drops every cached element of one type.
func (c *SchemaCache) evictType(typ SchemaType) {
	for _, key := range c.shared.ids.Keys() {
		if key.typ != typ {
			continue
		}
		if e, ok := c.shared.ids.Peek(key); ok {
			c.shared.ids.Remove(key)
			c.shared.names.Remove(cacheKey{typ, e.Name()})
			c.shared.arrays.remove(typ, e.ID())
		}
	}
}
