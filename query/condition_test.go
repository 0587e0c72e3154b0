// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package query_test

import (
	"testing"

	lattice "github.com/featurebasedb/lattice"
	"github.com/featurebasedb/lattice/query"
)

// fakeElement is a minimal element backed by maps.
type fakeElement struct {
	sysprops map[query.Field]interface{}
	props    map[lattice.ID]interface{}
}

func (e *fakeElement) Sysprop(f query.Field) interface{} { return e.sysprops[f] }

func (e *fakeElement) Property(key lattice.ID) (interface{}, bool) {
	v, ok := e.props[key]
	return v, ok
}

var (
	ageKey  = lattice.IntID(1)
	cityKey = lattice.IntID(2)
)

func newPerson(name string, age int, city string) *fakeElement {
	return &fakeElement{
		sysprops: map[query.Field]interface{}{
			query.FieldName:  name,
			query.FieldLabel: "person",
		},
		props: map[lattice.ID]interface{}{
			ageKey:  age,
			cityKey: city,
		},
	}
}

func TestCondition_TreeComposition(t *testing.T) {
	// age > 18 AND (city == "sh" OR city == "bj")
	cond := query.NewAnd(
		query.PropGt(ageKey, 18),
		query.NewOr(
			query.PropEq(cityKey, "sh"),
			query.PropEq(cityKey, "bj"),
		),
	)

	tests := []struct {
		e    *fakeElement
		want bool
	}{
		{newPerson("a", 30, "sh"), true},
		{newPerson("b", 30, "bj"), true},
		{newPerson("c", 30, "hk"), false},
		{newPerson("d", 10, "sh"), false},
	}
	for i, tt := range tests {
		got, err := cond.TestElement(tt.e)
		if err != nil {
			t.Fatalf("test %d: %v", i, err)
		} else if got != tt.want {
			t.Fatalf("test %d: got %v, want %v", i, got, tt.want)
		}
	}
}

func TestCondition_SyspropSubjects(t *testing.T) {
	e := newPerson("marko", 29, "sh")

	cond := query.NewAnd(
		query.Eq(query.FieldLabel, "person"),
		query.Eq(query.FieldName, "marko"),
	)
	if ok, err := cond.TestElement(e); err != nil || !ok {
		t.Fatalf("expected sysprop conjunction to match: ok=%v err=%v", ok, err)
	}
	if !cond.IsSysprop() {
		t.Fatalf("all-sysprop tree should report sysprop")
	}

	mixed := query.NewAnd(query.Eq(query.FieldLabel, "person"), query.PropGt(ageKey, 18))
	if mixed.IsSysprop() {
		t.Fatalf("mixed tree should not report sysprop")
	}
}

func TestCondition_MissingPropertyIsFalse(t *testing.T) {
	e := &fakeElement{props: map[lattice.ID]interface{}{}}

	// Absence is unconditional falsity, even for a negated operator.
	for _, cond := range []query.Condition{
		query.PropEq(ageKey, 30),
		query.PropNeq(ageKey, 30),
		query.PropIn(ageKey, []interface{}{30}),
	} {
		ok, err := cond.TestElement(e)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		} else if ok {
			t.Fatalf("missing property should never match: %s", cond)
		}
	}
}

func TestCondition_NilElement(t *testing.T) {
	if _, err := query.PropEq(ageKey, 1).TestElement(nil); err == nil {
		t.Fatalf("expected error testing nil element")
	}
}

func TestCondition_ShortCircuit(t *testing.T) {
	// A right child that would error is never evaluated once the left
	// child decides the outcome.
	young := newPerson("kid", 10, "sh")
	bad := query.PropGt(cityKey, 18) // orders a string, errors if reached

	and := query.NewAnd(query.PropGt(ageKey, 18), bad)
	if ok, err := and.TestElement(young); err != nil || ok {
		t.Fatalf("AND should short-circuit false: ok=%v err=%v", ok, err)
	}

	or := query.NewOr(query.PropGt(ageKey, 5), bad)
	if ok, err := or.TestElement(young); err != nil || !ok {
		t.Fatalf("OR should short-circuit true: ok=%v err=%v", ok, err)
	}

	// Reached, the error propagates.
	adult := newPerson("grownup", 30, "sh")
	if _, err := and.TestElement(adult); err == nil {
		t.Fatalf("expected right-child error to propagate")
	}
}

func TestCondition_Relations(t *testing.T) {
	r1 := query.PropGt(ageKey, 18)
	r2 := query.PropEq(cityKey, "sh")
	r3 := query.Eq(query.FieldLabel, "person")
	cond := query.NewAnd(r1, query.NewOr(r2, r3))

	rels := cond.Relations()
	if len(rels) != 3 {
		t.Fatalf("expected 3 leaves, got %d", len(rels))
	}
	// Left-to-right order.
	if rels[0] != r1 || rels[1] != r2 || rels[2] != r3 {
		t.Fatalf("leaves out of order: %v", rels)
	}
}

func TestCondition_Replace(t *testing.T) {
	from := query.PropIn(ageKey, []interface{}{18, 19})
	keep := query.PropEq(cityKey, "sh")
	cond := query.NewAnd(from, keep)

	to := query.Flatten(from)
	cond.Replace(from, to)

	rels := cond.Relations()
	if rels[0] != to {
		t.Fatalf("expected leaf substituted by identity")
	}
	if rels[1] != keep {
		t.Fatalf("untouched leaf should survive")
	}

	// An equal-but-distinct leaf is not substituted.
	stranger := query.PropEq(cityKey, "sh")
	cond.Replace(stranger, query.PropEq(cityKey, "bj"))
	if cond.Relations()[1] != keep {
		t.Fatalf("replace must match by pointer, not value")
	}
}

func TestCondition_CopyIndependence(t *testing.T) {
	from := query.PropEq(cityKey, "sh")
	orig := query.NewAnd(query.PropGt(ageKey, 18), from)
	clone := orig.Copy()

	if !orig.Equal(clone) {
		t.Fatalf("copy should equal original")
	}
	if orig.Hash() != clone.Hash() {
		t.Fatalf("equal trees should hash alike")
	}

	// Mutating the original leaves the copy untouched.
	orig.Replace(from, query.PropEq(cityKey, "bj"))
	if orig.Equal(clone) {
		t.Fatalf("replace should not alias into the copy")
	}
}

func TestCondition_Equal(t *testing.T) {
	a := query.NewAnd(query.PropGt(ageKey, 18), query.PropEq(cityKey, "sh"))
	b := query.NewAnd(query.PropGt(ageKey, 18), query.PropEq(cityKey, "sh"))
	if !a.Equal(b) {
		t.Fatalf("structurally identical trees should be equal")
	}

	or := query.NewOr(query.PropGt(ageKey, 18), query.PropEq(cityKey, "sh"))
	if a.Equal(or) {
		t.Fatalf("AND and OR should differ")
	}
	swapped := query.NewAnd(query.PropEq(cityKey, "sh"), query.PropGt(ageKey, 18))
	if a.Equal(swapped) {
		t.Fatalf("child order is significant")
	}
}

func TestCondition_Classifiers(t *testing.T) {
	leaf := query.PropEq(ageKey, 1)
	tree := query.NewAnd(leaf, leaf.Copy())

	if !query.IsRelation(leaf) || query.IsLogic(leaf) {
		t.Fatalf("leaf misclassified")
	}
	if query.IsRelation(tree) || !query.IsLogic(tree) {
		t.Fatalf("tree misclassified")
	}
	if tree.IsFlattened() {
		t.Fatalf("composite nodes are never flattened")
	}
}
