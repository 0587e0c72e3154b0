// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package query

import (
	"reflect"
	"time"

	"github.com/pkg/errors"

	lattice "github.com/featurebasedb/lattice"
)

// equalValues determines whether a subject value equals a comparison
// value, normalizing heterogeneous operand types first: an ID subject
// may be compared against its textual or numeric external form, a
// numeric comparison value forces numeric comparison, slices compare
// elementwise, everything else compares structurally.
func equalValues(first, second interface{}) bool {
	if id, ok := first.(lattice.ID); ok {
		switch s := second.(type) {
		case string:
			return id.String() == s
		case int:
			return id.IsNumber() && id.Int64() == int64(s)
		case int64:
			return id.IsNumber() && id.Int64() == s
		}
	} else if isNumber(second) {
		c, err := compareNumber(first, second)
		return err == nil && c == 0
	} else if second != nil && reflect.TypeOf(second).Kind() == reflect.Slice {
		return reflect.DeepEqual(first, second)
	}

	return structuralEqual(first, second)
}

// compareValues orders a subject value against a comparison value.
// Numeric comparison values compare numerically with a nil subject
// treated as zero; time comparison values compare chronologically with
// a nil subject treated as the zero time. Any other pairing is a type
// error.
func compareValues(first, second interface{}) (int, error) {
	if isNumber(second) {
		return compareNumber(first, second)
	}
	if t, ok := second.(time.Time); ok {
		return compareTime(first, t)
	}
	return 0, errors.Errorf("can't compare between %v(%s) and %v(%s)",
		first, typeName(first), second, typeName(second))
}

func compareNumber(first, second interface{}) (int, error) {
	if first == nil {
		first = 0
	}
	if !isNumber(first) {
		return 0, errors.Errorf("can't compare between %v(%s) and %v(%s)",
			first, typeName(first), second, typeName(second))
	}

	// Integral pairs compare exactly; anything involving a float
	// compares as float64.
	if a, ok := asInt64(first); ok {
		if b, ok := asInt64(second); ok {
			switch {
			case a < b:
				return -1, nil
			case a > b:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}
	a, _ := asFloat64(first)
	b, _ := asFloat64(second)
	switch {
	case a < b:
		return -1, nil
	case a > b:
		return 1, nil
	default:
		return 0, nil
	}
}

func compareTime(first interface{}, second time.Time) (int, error) {
	if first == nil {
		first = time.Time{}
	}
	t, ok := first.(time.Time)
	if !ok {
		return 0, errors.Errorf("can't compare between %v(%s) and %v(%s)",
			first, typeName(first), second, typeName(second))
	}
	switch {
	case t.Before(second):
		return -1, nil
	case t.After(second):
		return 1, nil
	default:
		return 0, nil
	}
}

func isNumber(v interface{}) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return true
	default:
		return false
	}
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	}
	return 0, false
}

func asFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// collectionContains reports membership by structural equality, the
// way a hash set's contains does.
func collectionContains(col []interface{}, v interface{}) bool {
	for _, item := range col {
		if structuralEqual(item, v) {
			return true
		}
	}
	return false
}

func structuralEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
