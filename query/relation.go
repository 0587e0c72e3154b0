// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package query

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/cespare/xxhash"
	"github.com/pkg/errors"

	lattice "github.com/featurebasedb/lattice"
)

// RelationType is a relational operator. The operator set is closed:
// each operator carries its display token, optional required operand
// kinds and its test function as table data.
type RelationType int

// Constant relation types.
const (
	EQ RelationType = iota
	GT
	GTE
	LT
	LTE
	NEQ
	IN
	NotIn
	Prefix
	TextContains
	TextContainsAny
	Contains
	ContainsValue
	ContainsKey
	Scan
)

// operandKind is a required operand type for an operator; kindAny
// accepts anything.
type operandKind int

const (
	kindAny operandKind = iota
	kindID
	kindString
	kindCollection
	kindMap
)

func (k operandKind) String() string {
	switch k {
	case kindID:
		return "ID"
	case kindString:
		return "string"
	case kindCollection:
		return "collection"
	case kindMap:
		return "map"
	default:
		return "any"
	}
}

func (k operandKind) matches(v interface{}) bool {
	switch k {
	case kindID:
		_, ok := v.(lattice.ID)
		return ok
	case kindString:
		_, ok := v.(string)
		return ok
	case kindCollection:
		_, ok := v.([]interface{})
		return ok
	case kindMap:
		_, ok := v.(map[string]interface{})
		return ok
	default:
		return true
	}
}

// relationDef is one row of the operator table.
type relationDef struct {
	token   string
	subject operandKind
	object  operandKind
	test    func(subject, object interface{}) (bool, error)
}

var relationDefs = [...]relationDef{
	EQ: {token: "==", test: func(v1, v2 interface{}) (bool, error) {
		return equalValues(v1, v2), nil
	}},

	GT: {token: ">", test: func(v1, v2 interface{}) (bool, error) {
		c, err := compareValues(v1, v2)
		return c > 0, err
	}},

	GTE: {token: ">=", test: func(v1, v2 interface{}) (bool, error) {
		c, err := compareValues(v1, v2)
		return c >= 0, err
	}},

	LT: {token: "<", test: func(v1, v2 interface{}) (bool, error) {
		c, err := compareValues(v1, v2)
		return c < 0, err
	}},

	LTE: {token: "<=", test: func(v1, v2 interface{}) (bool, error) {
		c, err := compareValues(v1, v2)
		return c <= 0, err
	}},

	NEQ: {token: "!=", test: func(v1, v2 interface{}) (bool, error) {
		c, err := compareValues(v1, v2)
		return c != 0, err
	}},

	IN: {token: "in", object: kindCollection, test: func(v1, v2 interface{}) (bool, error) {
		return collectionContains(v2.([]interface{}), v1), nil
	}},

	NotIn: {token: "notin", object: kindCollection, test: func(v1, v2 interface{}) (bool, error) {
		return !collectionContains(v2.([]interface{}), v1), nil
	}},

	Prefix: {token: "prefix", subject: kindID, object: kindID, test: func(v1, v2 interface{}) (bool, error) {
		return bytes.HasPrefix(v2.(lattice.ID).Bytes(), v1.(lattice.ID).Bytes()), nil
	}},

	TextContains: {token: "textcontains", subject: kindString, object: kindString, test: func(v1, v2 interface{}) (bool, error) {
		return strings.Contains(v1.(string), v2.(string)), nil
	}},

	TextContainsAny: {token: "textcontainsany", subject: kindString, object: kindCollection, test: func(v1, v2 interface{}) (bool, error) {
		text := v1.(string)
		for _, word := range v2.([]interface{}) {
			if w, ok := word.(string); ok && strings.Contains(text, w) {
				return true, nil
			}
		}
		return false, nil
	}},

	Contains: {token: "contains", subject: kindCollection, test: func(v1, v2 interface{}) (bool, error) {
		return collectionContains(v1.([]interface{}), v2), nil
	}},

	ContainsValue: {token: "containsv", subject: kindMap, test: func(v1, v2 interface{}) (bool, error) {
		for _, v := range v1.(map[string]interface{}) {
			if structuralEqual(v, v2) {
				return true, nil
			}
		}
		return false, nil
	}},

	ContainsKey: {token: "containsk", subject: kindMap, test: func(v1, v2 interface{}) (bool, error) {
		k, ok := v2.(string)
		if !ok {
			return false, nil
		}
		_, ok = v1.(map[string]interface{})[k]
		return ok, nil
	}},

	// Scan matches everything: the backend itself restricts the range,
	// e.g. token(column) scans in column stores.
	Scan: {token: "scan", test: func(v1, v2 interface{}) (bool, error) {
		return true, nil
	}},
}

func (t RelationType) def() relationDef {
	if t < 0 || int(t) >= len(relationDefs) {
		return relationDef{token: "invalid"}
	}
	return relationDefs[t]
}

// String returns the display token of the operator.
func (t RelationType) String() string { return t.def().token }

// Test applies the operator to a subject value and a comparison value,
// validating both operands against the operator's required kinds first.
// A nil comparison value is always an error.
func (t RelationType) Test(subject, object interface{}) (bool, error) {
	def := t.def()
	if def.test == nil {
		return false, errors.Errorf("can't test `%s`", def.token)
	}
	if object == nil {
		return false, errors.Errorf("can't test null value for `%s`", def.token)
	}
	if def.subject != kindAny && !def.subject.matches(subject) {
		return false, errors.Errorf("can't execute `%s` on type %s, expect %s",
			def.token, typeName(subject), def.subject)
	}
	if def.object != kindAny && !def.object.matches(object) {
		return false, errors.Errorf("can't test '%v'(%s) for `%s`, expect %s",
			object, typeName(object), def.token, def.object)
	}
	return def.test(subject, object)
}

// IsRangeType reports whether the operator produces a range: one of the
// four ordering operators.
func (t RelationType) IsRangeType() bool {
	return t == GT || t == GTE || t == LT || t == LTE
}

// IsSearchType reports whether the operator produces a full-text
// search.
func (t RelationType) IsSearchType() bool {
	return t == TextContains || t == TextContainsAny
}

// IsSecondaryType reports whether the operator is servable by a
// secondary index: equality only.
func (t RelationType) IsSecondaryType() bool {
	return t == EQ
}

// unflattenedTypes require special multi-value backend handling and
// cannot be pushed down as a single flat comparison.
func unflattenedType(t RelationType) bool {
	return t == IN || t == NotIn || t == TextContainsAny
}

// Relation is a leaf predicate: one typed comparison between a subject
// (system field or user property) and a comparison value. Relations
// are immutable after construction except for the two backend-assigned
// serialization decorations, which never participate in equality or
// hashing.
type Relation struct {
	op      RelationType
	sysprop bool
	field   Field      // subject, when sysprop
	key     lattice.ID // subject property key, when not sysprop
	value   interface{}

	// Key and value serialized (code/string) by the backend store.
	serialKey   interface{}
	serialValue interface{}

	// flattened marks a leaf hoisted by a planner into flat form.
	flattened bool
}

func newSysprop(f Field, op RelationType, value interface{}) *Relation {
	return &Relation{op: op, sysprop: true, field: f, value: value}
}

func newUserprop(key lattice.ID, op RelationType, value interface{}) *Relation {
	return &Relation{op: op, key: key, value: value}
}

// System-field relation constructors.

// Eq matches a system field equal to value.
func Eq(f Field, value interface{}) *Relation { return newSysprop(f, EQ, value) }

// Gt matches a system field greater than value.
func Gt(f Field, value interface{}) *Relation { return newSysprop(f, GT, value) }

// Gte matches a system field greater than or equal to value.
func Gte(f Field, value interface{}) *Relation { return newSysprop(f, GTE, value) }

// Lt matches a system field less than value.
func Lt(f Field, value interface{}) *Relation { return newSysprop(f, LT, value) }

// Lte matches a system field less than or equal to value.
func Lte(f Field, value interface{}) *Relation { return newSysprop(f, LTE, value) }

// Neq matches a system field not equal to value.
func Neq(f Field, value interface{}) *Relation { return newSysprop(f, NEQ, value) }

// In matches a system field that is a member of values.
func In(f Field, values []interface{}) *Relation { return newSysprop(f, IN, values) }

// NotInSet matches a system field that is not a member of values.
func NotInSet(f Field, values []interface{}) *Relation { return newSysprop(f, NotIn, values) }

// PrefixWith matches an id-valued system field that is a byte prefix
// of value.
func PrefixWith(f Field, value lattice.ID) *Relation { return newSysprop(f, Prefix, value) }

// ContainsElem matches a collection-valued system field containing
// value.
func ContainsElem(f Field, value interface{}) *Relation { return newSysprop(f, Contains, value) }

// MapContainsValue matches a map-valued system field containing value.
func MapContainsValue(f Field, value interface{}) *Relation {
	return newSysprop(f, ContainsValue, value)
}

// MapContainsKey matches a map-valued system field containing key.
func MapContainsKey(f Field, key interface{}) *Relation {
	return newSysprop(f, ContainsKey, key)
}

// ScanRange matches everything in a backend-restricted token range.
func ScanRange(start, end string) *Relation {
	return newSysprop(FieldID, Scan, Shard{Start: start, End: end})
}

// User-property relation constructors, keyed by property-key id.

// PropEq matches a user property equal to value.
func PropEq(key lattice.ID, value interface{}) *Relation { return newUserprop(key, EQ, value) }

// PropGt matches a user property greater than value.
func PropGt(key lattice.ID, value interface{}) *Relation { return newUserprop(key, GT, value) }

// PropGte matches a user property greater than or equal to value.
func PropGte(key lattice.ID, value interface{}) *Relation { return newUserprop(key, GTE, value) }

// PropLt matches a user property less than value.
func PropLt(key lattice.ID, value interface{}) *Relation { return newUserprop(key, LT, value) }

// PropLte matches a user property less than or equal to value.
func PropLte(key lattice.ID, value interface{}) *Relation { return newUserprop(key, LTE, value) }

// PropNeq matches a user property not equal to value.
func PropNeq(key lattice.ID, value interface{}) *Relation { return newUserprop(key, NEQ, value) }

// PropIn matches a user property that is a member of values.
func PropIn(key lattice.ID, values []interface{}) *Relation { return newUserprop(key, IN, values) }

// PropNotIn matches a user property that is not a member of values.
func PropNotIn(key lattice.ID, values []interface{}) *Relation {
	return newUserprop(key, NotIn, values)
}

// PropTextContains matches a text property containing word.
func PropTextContains(key lattice.ID, word string) *Relation {
	return newUserprop(key, TextContains, word)
}

// PropTextContainsAny matches a text property containing any of words.
func PropTextContainsAny(key lattice.ID, words []interface{}) *Relation {
	return newUserprop(key, TextContainsAny, words)
}

// PropContains matches a collection property containing value.
func PropContains(key lattice.ID, value interface{}) *Relation {
	return newUserprop(key, Contains, value)
}

// Flatten returns a copy of the relation that reports itself flattened
// regardless of operator; planners use it to hoist a leaf into flat
// form without changing tree shape.
func Flatten(r *Relation) *Relation {
	clone := *r
	clone.flattened = true
	return &clone
}

// Op returns the relational operator.
func (r *Relation) Op() RelationType { return r.op }

// Key returns the subject: a Field for system-field relations, a
// property-key ID otherwise.
func (r *Relation) Key() interface{} {
	if r.sysprop {
		return r.field
	}
	return r.key
}

// Field returns the system field of a sysprop relation.
func (r *Relation) Field() Field { return r.field }

// PropertyKey returns the property-key id of a userprop relation.
func (r *Relation) PropertyKey() lattice.ID { return r.key }

// Value returns the comparison value.
func (r *Relation) Value() interface{} { return r.value }

// SerialKey returns the backend-serialized key, falling back to the
// subject key.
func (r *Relation) SerialKey() interface{} {
	if r.serialKey != nil {
		return r.serialKey
	}
	return r.Key()
}

// SetSerialKey decorates the relation with a backend-serialized key.
func (r *Relation) SetSerialKey(key interface{}) { r.serialKey = key }

// SerialValue returns the backend-serialized value, falling back to
// the comparison value.
func (r *Relation) SerialValue() interface{} {
	if r.serialValue != nil {
		return r.serialValue
	}
	return r.value
}

// SetSerialValue decorates the relation with a backend-serialized
// value.
func (r *Relation) SetSerialValue(value interface{}) { r.serialValue = value }

// Type returns TypeRelation.
func (r *Relation) Type() ConditionType { return TypeRelation }

// IsSysprop reports whether the subject is a system field.
func (r *Relation) IsSysprop() bool { return r.sysprop }

// Relations returns the leaf itself.
func (r *Relation) Relations() []*Relation { return []*Relation{r} }

// Test applies the operator to a bare subject value.
func (r *Relation) Test(value interface{}) (bool, error) {
	return r.op.Test(value, r.value)
}

// TestElement resolves the subject from the element and applies the
// operator. A missing user property is unconditionally false, for
// every operator including NEQ.
func (r *Relation) TestElement(e Element) (bool, error) {
	if e == nil {
		return false, errors.New("can't test null element")
	}
	if r.sysprop {
		return r.op.Test(e.Sysprop(r.field), r.value)
	}
	value, ok := e.Property(r.key)
	if !ok || value == nil {
		return false, nil
	}
	return r.op.Test(value, r.value)
}

// Copy returns an independent copy carrying the serialization
// decorations.
func (r *Relation) Copy() Condition {
	clone := *r
	return &clone
}

// Replace returns to when the leaf is from, by pointer identity.
func (r *Relation) Replace(from, to *Relation) Condition {
	if r == from {
		return to
	}
	return r
}

// IsFlattened reports whether the relation can be pushed down as a
// single flat comparison. Member-of, not-member-of and
// text-contains-any relations require multi-value handling and are not
// flattened unless hoisted via Flatten.
func (r *Relation) IsFlattened() bool {
	return r.flattened || !unflattenedType(r.op)
}

// Equal reports equality over (operator, key, value), ignoring the
// serialization decorations.
func (r *Relation) Equal(other Condition) bool {
	o, ok := other.(*Relation)
	if !ok {
		return false
	}
	return r.op == o.op && r.sysprop == o.sysprop &&
		r.field == o.field && r.key == o.key &&
		structuralEqual(r.value, o.value)
}

// Hash returns a hash over (operator, key, value).
func (r *Relation) Hash() uint64 {
	return xxhash.Sum64String(r.op.String() + "|" + fmt.Sprint(r.Key()) + "|" + fmt.Sprint(r.value))
}

func (r *Relation) String() string {
	return fmt.Sprintf("%v %s %v", r.Key(), r.op, r.value)
}

func typeName(v interface{}) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%T", v)
}
