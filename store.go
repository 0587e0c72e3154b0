// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package lattice

// LifecycleEvent identifies a store-wide lifecycle transition published
// by a backend store.
type LifecycleEvent string

// Lifecycle events every backend store must publish. Each one
// establishes a cache consistency checkpoint: subscribers respond with
// a full clear.
const (
	StoreInit     LifecycleEvent = "store-init"
	StoreClear    LifecycleEvent = "store-clear"
	StoreTruncate LifecycleEvent = "store-truncate"
)

// SchemaStore is the narrow contract a backend store must satisfy for
// the schema cache. Fetches return (nil, nil) when the element does not
// exist; store failures propagate to the caller unchanged, retry policy
// belongs to the store.
type SchemaStore interface {
	// FetchByID returns the schema element with the given id.
	FetchByID(typ SchemaType, id ID) (*SchemaElement, error)

	// FetchByName returns the schema element with the given name.
	FetchByName(typ SchemaType, name string) (*SchemaElement, error)

	// FetchAll returns every schema element of one type.
	FetchAll(typ SchemaType) ([]*SchemaElement, error)

	// Lifecycle is the hub the store publishes lifecycle events on.
	Lifecycle() *EventHub[LifecycleEvent]
}
