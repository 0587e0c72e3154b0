// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package lattice

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/cespare/xxhash"
)

// SchemaType enumerates the kinds of schema elements a graph carries.
type SchemaType int

// Constant schema types.
const (
	TypePropertyKey SchemaType = iota
	TypeVertexLabel
	TypeEdgeLabel
	TypeIndexLabel
)

// SchemaTypes lists every schema type, in a stable order.
var SchemaTypes = []SchemaType{
	TypePropertyKey,
	TypeVertexLabel,
	TypeEdgeLabel,
	TypeIndexLabel,
}

// String returns the short token for the schema type. The token is also
// used as the type part of composite cache keys.
func (t SchemaType) String() string {
	switch t {
	case TypePropertyKey:
		return "pk"
	case TypeVertexLabel:
		return "vl"
	case TypeEdgeLabel:
		return "el"
	case TypeIndexLabel:
		return "il"
	default:
		return "unknown"
	}
}

// Status is the lifecycle status of a schema element.
type Status int

// Constant schema statuses.
const (
	StatusUndefined Status = iota
	StatusCreated
	StatusCreating
	StatusRebuilding
	StatusDeleting
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusCreating:
		return "creating"
	case StatusRebuilding:
		return "rebuilding"
	case StatusDeleting:
		return "deleting"
	case StatusInvalid:
		return "invalid"
	default:
		return "undefined"
	}
}

// IsDeleting reports whether the element is being torn down.
func (s Status) IsDeleting() bool { return s == StatusDeleting }

// MaxPrimitiveSysID bounds the negative id range reserved for built-in
// schema elements; ids in [-MaxPrimitiveSysID, 0) are primitives.
const MaxPrimitiveSysID = 32

// ID identifies a schema element or a property key. An ID is either
// numeric or text; the two forms never compare equal. The zero value is
// the numeric id 0 (NoneID).
type ID struct {
	num     int64
	text    string
	numeric bool
}

// NoneID is the reserved "no id" value.
var NoneID = IntID(0)

// IntID returns a numeric ID.
func IntID(v int64) ID { return ID{num: v, numeric: true} }

// TextID returns a text ID.
func TextID(s string) ID { return ID{text: s} }

// IsNumber reports whether the ID is numeric.
func (id ID) IsNumber() bool { return id.numeric }

// Int64 returns the numeric form of the ID, or 0 for text IDs.
func (id ID) Int64() int64 { return id.num }

// String returns the external text form of the ID. Numeric IDs render
// in base 10.
func (id ID) String() string {
	if id.numeric {
		return strconv.FormatInt(id.num, 10)
	}
	return id.text
}

// Bytes returns the byte form of the ID, used by prefix relations.
func (id ID) Bytes() []byte { return []byte(id.String()) }

// SchemaElement is a named, identified metadata object describing part
// of the graph's structure: a property key, vertex label, edge label or
// index label. Identity is (type, id); the name is unique within the
// type. Elements are replaced whole on mutation, never patched, so a
// cached element is safe to hand out by reference.
type SchemaElement struct {
	typ      SchemaType
	id       ID
	name     string
	userdata map[string]interface{}
	status   Status
}

// NewSchemaElement returns a schema element with status created and no
// userdata. It panics on an empty name: the name-keyed cache cannot
// address an unnamed element.
func NewSchemaElement(typ SchemaType, id ID, name string) *SchemaElement {
	if name == "" {
		panic("lattice: schema element name required")
	}
	return &SchemaElement{
		typ:    typ,
		id:     id,
		name:   name,
		status: StatusCreated,
	}
}

// Type returns the schema type.
func (e *SchemaElement) Type() SchemaType { return e.typ }

// ID returns the element id.
func (e *SchemaElement) ID() ID { return e.id }

// Int64ID returns the numeric form of the element id.
func (e *SchemaElement) Int64ID() int64 { return e.id.Int64() }

// Name returns the element name.
func (e *SchemaElement) Name() string { return e.name }

// Status returns the lifecycle status.
func (e *SchemaElement) Status() Status { return e.status }

// SetStatus sets the lifecycle status.
func (e *SchemaElement) SetStatus(s Status) { e.status = s }

// Userdata returns a copy of the free-form metadata attached to the
// element.
func (e *SchemaElement) Userdata() map[string]interface{} {
	if len(e.userdata) == 0 {
		return nil
	}
	ret := make(map[string]interface{}, len(e.userdata))
	for k, v := range e.userdata {
		ret[k] = v
	}
	return ret
}

// SetUserdata attaches one metadata entry to the element.
func (e *SchemaElement) SetUserdata(key string, value interface{}) {
	if e.userdata == nil {
		e.userdata = make(map[string]interface{})
	}
	e.userdata[key] = value
}

// RemoveUserdata removes one metadata entry.
func (e *SchemaElement) RemoveUserdata(key string) {
	delete(e.userdata, key)
}

// System reports whether the element is system-defined. System ids are
// negative; the sign never changes after creation.
func (e *SchemaElement) System() bool {
	return e.id.IsNumber() && e.id.Int64() < 0
}

// Primitive reports whether the element is one of the built-ins in the
// reserved negative id range.
func (e *SchemaElement) Primitive() bool {
	if !e.id.IsNumber() {
		return false
	}
	v := e.id.Int64()
	return -MaxPrimitiveSysID <= v && v < 0
}

// Hidden reports whether the element name is hidden from user queries.
func (e *SchemaElement) Hidden() bool {
	return strings.HasPrefix(e.name, "~")
}

// Copy returns a deep copy of the element; mutating the copy's userdata
// or status does not affect the original.
func (e *SchemaElement) Copy() *SchemaElement {
	other := *e
	if e.userdata != nil {
		other.userdata = make(map[string]interface{}, len(e.userdata))
		for k, v := range e.userdata {
			other.userdata[k] = v
		}
	}
	return &other
}

// Equal reports identity equality: same type and same id.
func (e *SchemaElement) Equal(other *SchemaElement) bool {
	if other == nil {
		return false
	}
	return e.typ == other.typ && e.id == other.id
}

// HasSameContent reports whether two elements carry the same name and
// userdata, regardless of id.
func (e *SchemaElement) HasSameContent(other *SchemaElement) bool {
	if other == nil || e.name != other.name {
		return false
	}
	return reflect.DeepEqual(e.userdata, other.userdata)
}

// Hash returns a stable hash of the element identity.
func (e *SchemaElement) Hash() uint64 {
	return xxhash.Sum64String(e.typ.String() + "-" + e.id.String())
}

func (e *SchemaElement) String() string {
	return fmt.Sprintf("%s(id=%s)", e.name, e.id)
}
