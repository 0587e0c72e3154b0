// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package lattice

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
)

// schemaArrays is the optimized array cache: one dense span of id slots
// per schema type, holding only elements with positive numeric ids
// below the configured span. It is a pure acceleration path over the
// identifier-keyed cache, never a second source of truth, so lookups
// outside the span are soft misses rather than errors.
//
// The arrays co-own the fully-cached flag set: both are created once
// per graph connection and shared by every transaction opened on it.
type schemaArrays struct {
	size int

	pks []atomic.Pointer[SchemaElement]
	vls []atomic.Pointer[SchemaElement]
	els []atomic.Pointer[SchemaElement]
	ils []atomic.Pointer[SchemaElement]

	// cachedAll[type] means every element of the type is resident in
	// the identifier-keyed cache.
	cachedAll *xsync.MapOf[SchemaType, bool]
}

func newSchemaArrays(size int) *schemaArrays {
	if size < 1 {
		size = 1
	}
	return &schemaArrays{
		size:      size,
		pks:       make([]atomic.Pointer[SchemaElement], size),
		vls:       make([]atomic.Pointer[SchemaElement], size),
		els:       make([]atomic.Pointer[SchemaElement], size),
		ils:       make([]atomic.Pointer[SchemaElement], size),
		cachedAll: xsync.NewMapOf[SchemaType, bool](),
	}
}

func (a *schemaArrays) span(typ SchemaType) []atomic.Pointer[SchemaElement] {
	switch typ {
	case TypePropertyKey:
		return a.pks
	case TypeVertexLabel:
		return a.vls
	case TypeEdgeLabel:
		return a.els
	case TypeIndexLabel:
		return a.ils
	default:
		return nil
	}
}

// slot maps an id to its array index, or -1 when the id is not a
// positive number within the span.
func (a *schemaArrays) slot(id ID) int {
	if !id.IsNumber() {
		return -1
	}
	v := id.Int64()
	if v <= 0 || v >= int64(a.size) {
		return -1
	}
	return int(v)
}

// get returns the cached element, or nil on any soft miss.
func (a *schemaArrays) get(typ SchemaType, id ID) *SchemaElement {
	span := a.span(typ)
	i := a.slot(id)
	if span == nil || i < 0 {
		return nil
	}
	return span[i].Load()
}

func (a *schemaArrays) set(typ SchemaType, id ID, e *SchemaElement) {
	span := a.span(typ)
	i := a.slot(id)
	if span == nil || i < 0 {
		return
	}
	span[i].Store(e)
}

func (a *schemaArrays) remove(typ SchemaType, id ID) {
	span := a.span(typ)
	i := a.slot(id)
	if span == nil || i < 0 {
		return
	}
	span[i].Store(nil)
}

// updateIfNeeded stores the element when its id is a positive number;
// everything else is silently skipped.
func (a *schemaArrays) updateIfNeeded(e *SchemaElement) {
	if e == nil {
		return
	}
	if id := e.ID(); id.IsNumber() && id.Int64() > 0 {
		a.set(e.Type(), id, e)
	}
}

// clear empties every span and resets the fully-cached flag set.
func (a *schemaArrays) clear() {
	for _, span := range [][]atomic.Pointer[SchemaElement]{a.pks, a.vls, a.els, a.ils} {
		for i := range span {
			span[i].Store(nil)
		}
	}
	a.cachedAll.Clear()
}

// allCached reports whether every element of the type is known to be
// resident in the identifier-keyed cache.
func (a *schemaArrays) allCached(typ SchemaType) bool {
	v, _ := a.cachedAll.Load(typ)
	return v
}

// markAllCached sets the flag only if no contrary reset raced in.
func (a *schemaArrays) markAllCached(typ SchemaType) {
	a.cachedAll.LoadOrStore(typ, true)
}

// resetAllCached drops the flag for one type. Called on every mutation
// touching the type: eviction has no per-element signal, so any change
// may have broken completeness.
func (a *schemaArrays) resetAllCached(typ SchemaType) {
	a.cachedAll.Delete(typ)
}

// resetEveryAllCached drops the flags for all types at once; used when
// the identifier-keyed cache reaches capacity and eviction may have
// silently dropped members of any "complete" set.
func (a *schemaArrays) resetEveryAllCached() {
	a.cachedAll.Clear()
}
