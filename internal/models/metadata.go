// Healthsync - Background Health Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/healthsync

package models

import (
	"math"
	"reflect"
	"strconv"

	"github.com/goccy/go-json"
)

// EqualMetadata reports whether a and b carry the same metadata as JSON sees
// it. Numbers compare by value whatever their Go type, so int 3, float64 3
// and json.Number "3" are equal. A string never equals a number. Nil and
// empty maps are equal.
func EqualMetadata(a, b map[string]interface{}) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return reflect.DeepEqual(canonical(a), canonical(b))
}

// canonical rewrites v into the shape a JSON decoder with UseNumber would
// produce, with numbers reduced to int64, uint64 or float64.
func canonical(v interface{}) interface{} {
	switch x := v.(type) {
	case nil, bool, string:
		return x
	case json.Number:
		return canonicalNumber(x.String())
	case int:
		return int64(x)
	case int8:
		return int64(x)
	case int16:
		return int64(x)
	case int32:
		return int64(x)
	case int64:
		return x
	case uint:
		return canonicalUint(uint64(x))
	case uint8:
		return int64(x)
	case uint16:
		return int64(x)
	case uint32:
		return int64(x)
	case uint64:
		return canonicalUint(x)
	case float32:
		return canonicalFloat(float64(x))
	case float64:
		return canonicalFloat(x)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, e := range x {
			out[k] = canonical(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, e := range x {
			out[i] = canonical(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		out := make(map[string]interface{}, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = canonical(iter.Value().Interface())
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return v
		}
		out := make([]interface{}, rv.Len())
		for i := range out {
			out[i] = canonical(rv.Index(i).Interface())
		}
		return out
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return canonicalUint(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return canonicalFloat(rv.Float())
	case reflect.String:
		return rv.String()
	case reflect.Bool:
		return rv.Bool()
	default:
		return v
	}
}

func canonicalUint(u uint64) interface{} {
	if u <= math.MaxInt64 {
		return int64(u)
	}
	return u
}

func canonicalFloat(f float64) interface{} {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return f
	}
	switch {
	case f >= math.MinInt64 && f < math.MaxInt64:
		return int64(f)
	case f >= 0 && f < math.MaxUint64:
		return uint64(f)
	default:
		return f
	}
}

func canonicalNumber(s string) interface{} {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return u
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return canonicalFloat(f)
	}
	return json.Number(s)
}
