// Package matcher implements subset matching of event properties.
//
// The top level is a subset check: every expected key must be present in the
// actual properties with a deeply equal value, extra actual keys are ignored.
// Below the top level comparison is exact: arrays need equal length and equal
// elements in order, objects need equal key sets. Numbers compare by value across
// Go numeric types, so an expected int 1 matches a decoded float64 1. Integers,
// json.Number literals included, compare exactly.
package matcher

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
)

const maxDepth = 256

// Matches reports whether actual contains every key of expected with an equal value.
// A nil or empty expected always matches.
func Matches(actual, expected map[string]interface{}) bool {
	if len(expected) == 0 {
		return true
	}
	if actual == nil {
		return false
	}
	for k, want := range expected {
		got, ok := actual[k]
		if !ok || !DeepEqual(got, want) {
			return false
		}
	}
	return true
}

// Mismatches lists, in key order, why actual does not satisfy expected.
// It returns nil when Matches would return true.
func Mismatches(actual, expected map[string]interface{}) []string {
	if len(expected) == 0 {
		return nil
	}
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []string
	for _, k := range keys {
		got, ok := actual[k]
		switch {
		case !ok:
			out = append(out, fmt.Sprintf("%q: missing (expected %s)", k, render(expected[k])))
		case !DeepEqual(got, expected[k]):
			out = append(out, fmt.Sprintf("%q: expected %s, got %s", k, render(expected[k]), render(got)))
		}
	}
	return out
}

func render(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		// cyclic or exotic values cannot be printed safely
		return fmt.Sprintf("<%T>", v)
	}
	return string(b)
}

// DeepEqual compares two JSON-like values. It never panics: cyclic values are
// handled, and values that cannot be compared (funcs, channels) are unequal.
func DeepEqual(a, b interface{}) (equal bool) {
	defer func() {
		if r := recover(); r != nil {
			equal = false
		}
	}()
	c := comparer{visited: make(map[visit]bool)}
	return c.equal(reflect.ValueOf(a), reflect.ValueOf(b), 0)
}

type visit struct {
	a, b uintptr
	typ  reflect.Type
}

type comparer struct {
	visited map[visit]bool
}

func (c *comparer) equal(a, b reflect.Value, depth int) bool {
	if depth > maxDepth {
		return false
	}
	a, b = unwrap(a), unwrap(b)

	aNil, bNil := isNull(a), isNull(b)
	if aNil || bNil {
		return aNil && bNil
	}

	if an, ok := number(a); ok {
		bn, ok := number(b)
		return ok && an.equal(bn)
	}

	switch a.Kind() {
	case reflect.String:
		return b.Kind() == reflect.String && a.String() == b.String()
	case reflect.Bool:
		return b.Kind() == reflect.Bool && a.Bool() == b.Bool()
	case reflect.Slice, reflect.Array:
		if b.Kind() != reflect.Slice && b.Kind() != reflect.Array {
			return false
		}
		if a.Len() != b.Len() {
			return false
		}
		if c.seen(a, b) {
			return true
		}
		for i := 0; i < a.Len(); i++ {
			if !c.equal(a.Index(i), b.Index(i), depth+1) {
				return false
			}
		}
		return true
	case reflect.Map:
		if b.Kind() != reflect.Map {
			return false
		}
		if a.Type().Key().Kind() != reflect.String || b.Type().Key().Kind() != reflect.String {
			return false
		}
		if a.Len() != b.Len() {
			return false
		}
		if c.seen(a, b) {
			return true
		}
		bByKey := make(map[string]reflect.Value, b.Len())
		iter := b.MapRange()
		for iter.Next() {
			bByKey[iter.Key().String()] = iter.Value()
		}
		iter = a.MapRange()
		for iter.Next() {
			bv, ok := bByKey[iter.Key().String()]
			if !ok || !c.equal(iter.Value(), bv, depth+1) {
				return false
			}
		}
		return true
	case reflect.Struct:
		if a.Type() != b.Type() || !a.CanInterface() || !b.CanInterface() {
			return false
		}
		return reflect.DeepEqual(a.Interface(), b.Interface())
	default:
		// funcs, channels, unsafe pointers
		return false
	}
}

// seen records the pair of containers; a repeated pair means a cycle whose
// earlier visit is still being compared.
func (c *comparer) seen(a, b reflect.Value) bool {
	if a.Kind() == reflect.Array || b.Kind() == reflect.Array {
		return false
	}
	v := visit{a: a.Pointer(), b: b.Pointer(), typ: a.Type()}
	if v.a == 0 || v.b == 0 {
		return false
	}
	if c.visited[v] {
		return true
	}
	c.visited[v] = true
	return false
}

// unwrap strips interfaces and pointers. Pointer cycles end up as a nil value.
func unwrap(v reflect.Value) reflect.Value {
	for i := 0; i < maxDepth && v.IsValid(); i++ {
		switch v.Kind() {
		case reflect.Interface, reflect.Ptr:
			if v.IsNil() {
				return reflect.Value{}
			}
			v = v.Elem()
		default:
			return v
		}
	}
	if v.IsValid() && (v.Kind() == reflect.Interface || v.Kind() == reflect.Ptr) {
		return reflect.Value{}
	}
	return v
}

func isNull(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Map, reflect.Slice:
		return v.IsNil()
	}
	return false
}

// num keeps integers exact and falls back to float comparison across kinds.
type num struct {
	isInt bool
	i     int64
	isU   bool
	u     uint64
	f     float64
}

func (n num) equal(o num) bool {
	switch {
	case n.isInt && o.isInt:
		return n.i == o.i
	case n.isU && o.isU:
		return n.u == o.u
	case n.isInt && o.isU:
		return n.i >= 0 && uint64(n.i) == o.u
	case n.isU && o.isInt:
		return o.i >= 0 && uint64(o.i) == n.u
	}
	if math.IsNaN(n.f) || math.IsNaN(o.f) {
		return false
	}
	return n.f == o.f
}

func number(v reflect.Value) (num, bool) {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return num{isInt: true, i: v.Int(), f: float64(v.Int())}, true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return num{isU: true, u: v.Uint(), f: float64(v.Uint())}, true
	case reflect.Float32, reflect.Float64:
		return num{f: v.Float()}, true
	case reflect.String:
		if v.Type() == reflect.TypeOf(json.Number("")) {
			return jsonNumber(json.Number(v.String()))
		}
	}
	return num{}, false
}

// jsonNumber keeps integer literals exact; only fractional or exponent forms
// fall back to float comparison.
func jsonNumber(n json.Number) (num, bool) {
	f, err := n.Float64()
	if err != nil {
		return num{}, false
	}
	if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		return num{isInt: true, i: i, f: f}, true
	}
	if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
		return num{isU: true, u: u, f: f}, true
	}
	return num{f: f}, true
}
