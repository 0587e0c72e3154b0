// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package query implements the backend-independent predicate algebra:
// relations (single typed comparisons), AND/OR condition trees over
// them, and range extraction for query planning. Backend adapters
// consume condition trees; they never construct them.
package query

import (
	"fmt"

	lattice "github.com/featurebasedb/lattice"
)

// ConditionType discriminates nodes of a condition tree.
type ConditionType int

// Constant condition types.
const (
	TypeNone ConditionType = iota
	TypeRelation
	TypeAnd
	TypeOr
)

func (t ConditionType) String() string {
	switch t {
	case TypeRelation:
		return "RELATION"
	case TypeAnd:
		return "AND"
	case TypeOr:
		return "OR"
	default:
		return "NONE"
	}
}

// Field names a well-known system property of an element, as opposed to
// a user-defined property addressed by its property-key id.
type Field int

// Constant system fields.
const (
	FieldID Field = iota
	FieldName
	FieldLabel
	FieldStatus
	FieldUserdata
)

func (f Field) String() string {
	switch f {
	case FieldID:
		return "id"
	case FieldName:
		return "name"
	case FieldLabel:
		return "label"
	case FieldStatus:
		return "status"
	case FieldUserdata:
		return "userdata"
	default:
		return "unknown"
	}
}

// Element is anything a condition tree can be tested against: it
// exposes named system fields and user properties keyed by property-key
// id. Property reports absence through its second return; Sysprop may
// return nil for fields the element does not carry.
type Element interface {
	Sysprop(f Field) interface{}
	Property(key lattice.ID) (interface{}, bool)
}

// Shard is the token-range payload of a scan relation: the backend
// itself restricts the range, the relation always matches.
type Shard struct {
	Start  string
	End    string
	Length int
}

func (s Shard) String() string {
	return fmt.Sprintf("shard(%s..%s)", s.Start, s.End)
}

// Condition is one node of a predicate tree: a Relation leaf or an
// AND/OR combinator. Trees are immutable except through Replace, which
// substitutes one leaf by pointer identity during query planning.
type Condition interface {
	// Type returns the node discriminant.
	Type() ConditionType

	// IsSysprop reports whether every leaf under the node addresses a
	// system field.
	IsSysprop() bool

	// Relations returns every leaf under the node, left to right.
	Relations() []*Relation

	// Test applies the node to a bare value.
	Test(value interface{}) (bool, error)

	// TestElement applies the node to an element, resolving each
	// leaf's subject from the element's fields or properties.
	TestElement(e Element) (bool, error)

	// Copy returns a deep, independent copy of the subtree.
	Copy() Condition

	// Replace substitutes the leaf from with to, by pointer identity,
	// and returns the resulting subtree. Replacing a leaf not present
	// is a no-op.
	Replace(from, to *Relation) Condition

	// IsFlattened reports whether a planner may push the node down as
	// a single flat comparison. Composite nodes are never flattened.
	IsFlattened() bool

	// Equal reports structural equality, ignoring backend serialization
	// decorations.
	Equal(other Condition) bool

	// Hash returns a hash consistent with Equal.
	Hash() uint64

	fmt.Stringer
}

// IsRelation reports whether the condition is a leaf.
func IsRelation(c Condition) bool { return c.Type() == TypeRelation }

// IsLogic reports whether the condition is an AND/OR combinator.
func IsLogic(c Condition) bool {
	return c.Type() == TypeAnd || c.Type() == TypeOr
}

// binCondition is the shared half of And and Or.
type binCondition struct {
	left  Condition
	right Condition
}

func newBinCondition(left, right Condition) binCondition {
	if left == nil || right == nil {
		panic("query: nil child condition")
	}
	return binCondition{left: left, right: right}
}

// Left returns the left child.
func (b *binCondition) Left() Condition { return b.left }

// Right returns the right child.
func (b *binCondition) Right() Condition { return b.right }

func (b *binCondition) IsSysprop() bool {
	return b.left.IsSysprop() && b.right.IsSysprop()
}

func (b *binCondition) Relations() []*Relation {
	rels := append([]*Relation{}, b.left.Relations()...)
	return append(rels, b.right.Relations()...)
}

func (b *binCondition) replace(from, to *Relation) {
	b.left = b.left.Replace(from, to)
	b.right = b.right.Replace(from, to)
}

func (b *binCondition) IsFlattened() bool { return false }

func (b *binCondition) string(typ ConditionType) string {
	return fmt.Sprintf("%s %s %s", b.left, typ, b.right)
}

func (b *binCondition) equal(typ ConditionType, other Condition) bool {
	if other == nil || typ != other.Type() {
		return false
	}
	var o *binCondition
	switch oc := other.(type) {
	case *And:
		o = &oc.binCondition
	case *Or:
		o = &oc.binCondition
	default:
		return false
	}
	return b.left.Equal(o.left) && b.right.Equal(o.right)
}

func (b *binCondition) hash(typ ConditionType) uint64 {
	return uint64(typ) ^ b.left.Hash() ^ b.right.Hash()
}

// And is the strict conjunction of two conditions.
type And struct {
	binCondition
}

// NewAnd combines two conditions conjunctively. Panics on a nil child.
func NewAnd(left, right Condition) *And {
	return &And{newBinCondition(left, right)}
}

// Type returns TypeAnd.
func (c *And) Type() ConditionType { return TypeAnd }

// Test evaluates both children against a bare value.
func (c *And) Test(value interface{}) (bool, error) {
	ok, err := c.left.Test(value)
	if err != nil || !ok {
		return false, err
	}
	return c.right.Test(value)
}

// TestElement evaluates both children against an element.
func (c *And) TestElement(e Element) (bool, error) {
	ok, err := c.left.TestElement(e)
	if err != nil || !ok {
		return false, err
	}
	return c.right.TestElement(e)
}

// Copy returns a deep copy.
func (c *And) Copy() Condition {
	return NewAnd(c.left.Copy(), c.right.Copy())
}

// Replace substitutes one leaf throughout the subtree.
func (c *And) Replace(from, to *Relation) Condition {
	c.replace(from, to)
	return c
}

// Equal reports structural equality.
func (c *And) Equal(other Condition) bool { return c.equal(TypeAnd, other) }

// Hash returns a hash consistent with Equal.
func (c *And) Hash() uint64 { return c.hash(TypeAnd) }

func (c *And) String() string { return c.string(TypeAnd) }

// Or is the strict disjunction of two conditions.
type Or struct {
	binCondition
}

// NewOr combines two conditions disjunctively. Panics on a nil child.
func NewOr(left, right Condition) *Or {
	return &Or{newBinCondition(left, right)}
}

// Type returns TypeOr.
func (c *Or) Type() ConditionType { return TypeOr }

// Test evaluates both children against a bare value.
func (c *Or) Test(value interface{}) (bool, error) {
	ok, err := c.left.Test(value)
	if err != nil || ok {
		return ok, err
	}
	return c.right.Test(value)
}

// TestElement evaluates both children against an element.
func (c *Or) TestElement(e Element) (bool, error) {
	ok, err := c.left.TestElement(e)
	if err != nil || ok {
		return ok, err
	}
	return c.right.TestElement(e)
}

// Copy returns a deep copy.
func (c *Or) Copy() Condition {
	return NewOr(c.left.Copy(), c.right.Copy())
}

// Replace substitutes one leaf throughout the subtree.
func (c *Or) Replace(from, to *Relation) Condition {
	c.replace(from, to)
	return c
}

// Equal reports structural equality.
func (c *Or) Equal(other Condition) bool { return c.equal(TypeOr, other) }

// Hash returns a hash consistent with Equal.
func (c *Or) Hash() uint64 { return c.hash(TypeOr) }

func (c *Or) String() string { return c.string(TypeOr) }
