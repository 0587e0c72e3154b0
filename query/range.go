// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package query

import (
	"github.com/pkg/errors"
)

// RangeConditions is the range summary folded from a flat list of
// same-key relations: an optional exact value, and optional lower and
// upper bounds with inclusivity flags. Callers select the relations;
// the fold neither checks key agreement nor resolves conflicts between
// an exact value and bounds.
type RangeConditions struct {
	eq      interface{}
	min     interface{}
	minIncl bool
	max     interface{}
	maxIncl bool
}

// NewRangeConditions folds relations into one range summary. Only
// equality and the four ordering operators are supported; anything
// else is an error naming the operator.
func NewRangeConditions(relations []*Relation) (*RangeConditions, error) {
	rc := &RangeConditions{}
	for _, r := range relations {
		switch r.Op() {
		case EQ:
			rc.eq = r.Value()
		case GTE:
			rc.minIncl = true
			rc.min = r.Value()
		case GT:
			rc.min = r.Value()
		case LTE:
			rc.maxIncl = true
			rc.max = r.Value()
		case LT:
			rc.max = r.Value()
		default:
			return nil, errors.Errorf("unsupported relation '%s'", r.Op())
		}
	}
	return rc, nil
}

// Eq returns the exact value, or nil.
func (rc *RangeConditions) Eq() interface{} { return rc.eq }

// Min returns the lower bound, or nil.
func (rc *RangeConditions) Min() interface{} { return rc.min }

// MinIncl reports whether the lower bound is inclusive.
func (rc *RangeConditions) MinIncl() bool { return rc.minIncl }

// Max returns the upper bound, or nil.
func (rc *RangeConditions) Max() interface{} { return rc.max }

// MaxIncl reports whether the upper bound is inclusive.
func (rc *RangeConditions) MaxIncl() bool { return rc.maxIncl }

// HasRange reports whether a lower or upper bound was set; an
// exact-value-only summary has no range.
func (rc *RangeConditions) HasRange() bool {
	return rc.min != nil || rc.max != nil
}
