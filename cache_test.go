// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package lattice_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	lattice "github.com/featurebasedb/lattice"
)

// memStore is an in-memory SchemaStore that counts backend calls.
type memStore struct {
	mu    sync.Mutex
	elems map[string]*lattice.SchemaElement
	hub   *lattice.EventHub[lattice.LifecycleEvent]

	fetchByID   int
	fetchByName int
	fetchAll    int
}

func newMemStore(elems ...*lattice.SchemaElement) *memStore {
	s := &memStore{
		elems: make(map[string]*lattice.SchemaElement),
		hub:   lattice.NewEventHub[lattice.LifecycleEvent](),
	}
	for _, e := range elems {
		s.seed(e)
	}
	return s
}

func (s *memStore) seed(e *lattice.SchemaElement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.elems[e.Type().String()+"/"+e.ID().String()] = e
}

func (s *memStore) FetchByID(typ lattice.SchemaType, id lattice.ID) (*lattice.SchemaElement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchByID++
	return s.elems[typ.String()+"/"+id.String()], nil
}

func (s *memStore) FetchByName(typ lattice.SchemaType, name string) (*lattice.SchemaElement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchByName++
	for _, e := range s.elems {
		if e.Type() == typ && e.Name() == name {
			return e, nil
		}
	}
	return nil, nil
}

func (s *memStore) FetchAll(typ lattice.SchemaType) ([]*lattice.SchemaElement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchAll++
	var results []*lattice.SchemaElement
	for _, e := range s.elems {
		if e.Type() == typ {
			results = append(results, e)
		}
	}
	return results, nil
}

func (s *memStore) Lifecycle() *lattice.EventHub[lattice.LifecycleEvent] { return s.hub }

func (s *memStore) calls() (byID, byName, all int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fetchByID, s.fetchByName, s.fetchAll
}

// Shared caches are registered per graph for the life of the process, so
// every test attaches to its own graph name.
func newTestCache(t *testing.T, store lattice.SchemaStore, cfg lattice.Config) *lattice.SchemaCache {
	t.Helper()
	c := lattice.NewSchemaCache(t.Name(), store, cfg)
	t.Cleanup(c.Close)
	return c
}

func TestSchemaCache_MissPopulatesAllLookupPaths(t *testing.T) {
	person := lattice.NewSchemaElement(lattice.TypeVertexLabel, lattice.IntID(5), "person")
	store := newMemStore(person)
	c := newTestCache(t, store, lattice.Config{})

	got, err := c.GetByID(lattice.TypeVertexLabel, lattice.IntID(5))
	if err != nil {
		t.Fatal(err)
	} else if got != person {
		t.Fatalf("got %v, want %v", got, person)
	}

	// Both lookup paths are now warm: no further backend calls.
	if got, err = c.GetByID(lattice.TypeVertexLabel, lattice.IntID(5)); err != nil || got != person {
		t.Fatalf("got %v, %v", got, err)
	}
	if got, err = c.GetByName(lattice.TypeVertexLabel, "person"); err != nil || got != person {
		t.Fatalf("got %v, %v", got, err)
	}
	byID, byName, _ := store.calls()
	if byID != 1 || byName != 0 {
		t.Fatalf("expected one backend call, got byID=%d byName=%d", byID, byName)
	}
}

func TestSchemaCache_AbsentElement(t *testing.T) {
	store := newMemStore()
	c := newTestCache(t, store, lattice.Config{})

	if got, err := c.GetByID(lattice.TypeEdgeLabel, lattice.IntID(9)); err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %v, %v", got, err)
	}
	if got, err := c.GetByName(lattice.TypeEdgeLabel, "ghost"); err != nil || got != nil {
		t.Fatalf("expected nil, nil; got %v, %v", got, err)
	}

	// Absence is not cached: each lookup delegates again.
	if _, err := c.GetByID(lattice.TypeEdgeLabel, lattice.IntID(9)); err != nil {
		t.Fatal(err)
	}
	if byID, _, _ := store.calls(); byID != 2 {
		t.Fatalf("expected 2 backend calls, got %d", byID)
	}
}

func TestSchemaCache_PutCoherence(t *testing.T) {
	store := newMemStore()
	c := newTestCache(t, store, lattice.Config{})

	knows := lattice.NewSchemaElement(lattice.TypeEdgeLabel, lattice.IntID(3), "knows")
	c.Put(knows)

	// Immediately visible under both keys without touching the backend.
	if got, err := c.GetByID(lattice.TypeEdgeLabel, lattice.IntID(3)); err != nil || got != knows {
		t.Fatalf("got %v, %v", got, err)
	}
	if got, err := c.GetByName(lattice.TypeEdgeLabel, "knows"); err != nil || got != knows {
		t.Fatalf("got %v, %v", got, err)
	}
	if byID, byName, _ := store.calls(); byID != 0 || byName != 0 {
		t.Fatalf("put should not delegate: byID=%d byName=%d", byID, byName)
	}
}

func TestSchemaCache_UpdateReplacesBothKeys(t *testing.T) {
	store := newMemStore()
	c := newTestCache(t, store, lattice.Config{})

	old := lattice.NewSchemaElement(lattice.TypeVertexLabel, lattice.IntID(7), "software")
	c.Put(old)

	renamed := lattice.NewSchemaElement(lattice.TypeVertexLabel, lattice.IntID(7), "project")
	c.Update(renamed)

	if got, _ := c.GetByID(lattice.TypeVertexLabel, lattice.IntID(7)); got != renamed {
		t.Fatalf("id lookup got %v, want %v", got, renamed)
	}
	if got, _ := c.GetByName(lattice.TypeVertexLabel, "project"); got != renamed {
		t.Fatalf("name lookup got %v, want %v", got, renamed)
	}
	// The stale name no longer resolves from cache; the backend has
	// nothing either.
	if got, err := c.GetByName(lattice.TypeVertexLabel, "software"); err != nil || got != nil {
		t.Fatalf("stale name should be gone: %v, %v", got, err)
	}
}

func TestSchemaCache_RemoveInvalidates(t *testing.T) {
	store := newMemStore()
	c := newTestCache(t, store, lattice.Config{})

	e := lattice.NewSchemaElement(lattice.TypePropertyKey, lattice.IntID(2), "age")
	c.Put(e)
	c.Remove(lattice.TypePropertyKey, lattice.IntID(2))

	// Every lookup path delegates and comes back empty.
	if got, err := c.GetByID(lattice.TypePropertyKey, lattice.IntID(2)); err != nil || got != nil {
		t.Fatalf("id lookup after remove: %v, %v", got, err)
	}
	if got, err := c.GetByName(lattice.TypePropertyKey, "age"); err != nil || got != nil {
		t.Fatalf("name lookup after remove: %v, %v", got, err)
	}
	byID, byName, _ := store.calls()
	if byID != 1 || byName != 1 {
		t.Fatalf("expected delegation after remove: byID=%d byName=%d", byID, byName)
	}
}

func TestSchemaCache_RemoveUncachedIsSilent(t *testing.T) {
	store := newMemStore()
	c := newTestCache(t, store, lattice.Config{})

	var events int
	cancel := c.Hub().Subscribe(func(lattice.CacheEvent) { events++ })
	defer cancel()

	c.Remove(lattice.TypePropertyKey, lattice.IntID(99))
	if events != 0 {
		t.Fatalf("removing an uncached element must not notify, got %d events", events)
	}
}

func TestSchemaCache_GetAllCompleteness(t *testing.T) {
	els := []*lattice.SchemaElement{
		lattice.NewSchemaElement(lattice.TypeEdgeLabel, lattice.IntID(1), "knows"),
		lattice.NewSchemaElement(lattice.TypeEdgeLabel, lattice.IntID(2), "created"),
		lattice.NewSchemaElement(lattice.TypeEdgeLabel, lattice.IntID(3), "uses"),
	}
	store := newMemStore(els...)
	store.seed(lattice.NewSchemaElement(lattice.TypeVertexLabel, lattice.IntID(1), "person"))
	c := newTestCache(t, store, lattice.Config{CacheCapacity: 16})

	got, err := c.GetAll(lattice.TypeEdgeLabel)
	require.NoError(t, err)
	require.Len(t, got, 3)

	// The type is now flagged complete: the second call scans the cache.
	got, err = c.GetAll(lattice.TypeEdgeLabel)
	require.NoError(t, err)
	require.Len(t, got, 3)
	_, _, all := store.calls()
	require.Equal(t, 1, all, "second GetAll should not delegate")

	// Other types are unaffected by the flag.
	got, err = c.GetAll(lattice.TypeVertexLabel)
	require.NoError(t, err)
	require.Len(t, got, 1)
	_, _, all = store.calls()
	require.Equal(t, 2, all)
}

func TestSchemaCache_GetAllOversizedStaysUncached(t *testing.T) {
	store := newMemStore()
	for i := 1; i <= 6; i++ {
		store.seed(lattice.NewSchemaElement(
			lattice.TypeIndexLabel, lattice.IntID(int64(i)), fmt.Sprintf("idx%d", i)))
	}
	c := newTestCache(t, store, lattice.Config{CacheCapacity: 4})

	got, err := c.GetAll(lattice.TypeIndexLabel)
	require.NoError(t, err)
	require.Len(t, got, 6)

	// The result exceeded the remaining capacity: nothing was cached and
	// the type was not flagged complete.
	_, err = c.GetAll(lattice.TypeIndexLabel)
	require.NoError(t, err)
	_, _, all := store.calls()
	require.Equal(t, 2, all, "oversized GetAll must keep delegating")

	_, err = c.GetByID(lattice.TypeIndexLabel, lattice.IntID(1))
	require.NoError(t, err)
	byID, _, _ := store.calls()
	require.Equal(t, 1, byID, "oversized GetAll must not populate the id cache")
}

func TestSchemaCache_CapacityDropsCompletenessFlags(t *testing.T) {
	store := newMemStore(
		lattice.NewSchemaElement(lattice.TypeEdgeLabel, lattice.IntID(1), "knows"),
		lattice.NewSchemaElement(lattice.TypeEdgeLabel, lattice.IntID(2), "created"),
	)
	c := newTestCache(t, store, lattice.Config{CacheCapacity: 4})

	_, err := c.GetAll(lattice.TypeEdgeLabel)
	require.NoError(t, err)
	_, _, all := store.calls()
	require.Equal(t, 1, all)

	// Fill the id cache to capacity with another type. Eviction carries
	// no per-element signal, so completeness of every type is forfeit.
	for i := 1; i <= 3; i++ {
		c.Put(lattice.NewSchemaElement(
			lattice.TypePropertyKey, lattice.IntID(int64(i)), fmt.Sprintf("p%d", i)))
	}

	_, err = c.GetAll(lattice.TypeEdgeLabel)
	require.NoError(t, err)
	_, _, all = store.calls()
	require.Equal(t, 2, all, "reaching capacity should drop the flag and force delegation")
}

func TestSchemaCache_PeerInvalidation(t *testing.T) {
	store := newMemStore()
	tx1 := newTestCache(t, store, lattice.Config{})
	tx2 := lattice.NewSchemaCache(t.Name(), store, lattice.Config{})
	defer tx2.Close()

	// The shared caches make a put visible to the peer at once.
	e := lattice.NewSchemaElement(lattice.TypeVertexLabel, lattice.IntID(4), "place")
	tx1.Put(e)
	if got, err := tx2.GetByID(lattice.TypeVertexLabel, lattice.IntID(4)); err != nil || got != e {
		t.Fatalf("peer should see put: %v, %v", got, err)
	}

	// So is a remove.
	tx1.Remove(lattice.TypeVertexLabel, lattice.IntID(4))
	if got, err := tx2.GetByID(lattice.TypeVertexLabel, lattice.IntID(4)); err != nil || got != nil {
		t.Fatalf("peer should see remove: %v, %v", got, err)
	}
}

func TestSchemaCache_InvalidateTypeEvent(t *testing.T) {
	store := newMemStore()
	c := newTestCache(t, store, lattice.Config{})

	pk := lattice.NewSchemaElement(lattice.TypePropertyKey, lattice.IntID(1), "age")
	el := lattice.NewSchemaElement(lattice.TypeEdgeLabel, lattice.IntID(1), "knows")
	c.Put(pk)
	c.Put(el)

	c.Hub().Publish(lattice.CacheEvent{
		Action: lattice.ActionInvalidateType,
		Type:   lattice.TypeEdgeLabel,
	})

	if got, _ := c.GetByID(lattice.TypeEdgeLabel, lattice.IntID(1)); got != nil {
		t.Fatalf("edge labels should be evicted, got %v", got)
	}
	if got, _ := c.GetByID(lattice.TypePropertyKey, lattice.IntID(1)); got != pk {
		t.Fatalf("property keys should survive, got %v", got)
	}
}

func TestSchemaCache_StoreLifecycleClears(t *testing.T) {
	store := newMemStore()
	c := newTestCache(t, store, lattice.Config{})

	e := lattice.NewSchemaElement(lattice.TypeVertexLabel, lattice.IntID(6), "city")
	c.Put(e)

	store.Lifecycle().Publish(lattice.StoreClear)

	if got, err := c.GetByID(lattice.TypeVertexLabel, lattice.IntID(6)); err != nil || got != nil {
		t.Fatalf("store clear should purge the cache: %v, %v", got, err)
	}
	if byID, _, _ := store.calls(); byID != 1 {
		t.Fatalf("expected delegation after clear, got %d calls", byID)
	}
}

func TestSchemaCache_ClearNotifiesPeers(t *testing.T) {
	store := newMemStore()
	c := newTestCache(t, store, lattice.Config{})

	var cleared int
	cancel := c.Hub().Subscribe(func(ev lattice.CacheEvent) {
		if ev.Action == lattice.ActionCleared {
			cleared++
		}
	})
	defer cancel()

	c.Clear(true)
	if cleared != 1 {
		t.Fatalf("expected one cleared event, got %d", cleared)
	}

	c.Clear(false)
	if cleared != 1 {
		t.Fatalf("silent clear must not notify, got %d", cleared)
	}
}

func TestSchemaCache_CloseDetaches(t *testing.T) {
	store := newMemStore()
	tx1 := newTestCache(t, store, lattice.Config{})
	tx2 := lattice.NewSchemaCache(t.Name(), store, lattice.Config{})

	if got := store.Lifecycle().Len(); got != 2 {
		t.Fatalf("expected 2 lifecycle subscribers, got %d", got)
	}
	if got := tx1.Hub().Len(); got != 2 {
		t.Fatalf("expected 2 cache subscribers, got %d", got)
	}

	tx2.Close()
	if got := store.Lifecycle().Len(); got != 1 {
		t.Fatalf("close should detach from the lifecycle hub, got %d", got)
	}
	if got := tx1.Hub().Len(); got != 1 {
		t.Fatalf("close should detach from the cache hub, got %d", got)
	}
}
