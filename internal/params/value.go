package params

import (
	"fmt"
	"slices"
)

// Value is a sealed interface representing JSON-compatible parameter values.
// Only Null, Bool, Int, Float, String, List and Params implement it.
type Value interface {
	paramValue() // Sealed - only these types implement it
}

// Null represents a JSON null (e.g. an unset max_files).
type Null struct{}

func (Null) paramValue() {}

// Bool represents a boolean value.
type Bool bool

func (Bool) paramValue() {}

// Int represents an integral number.
type Int int64

func (Int) paramValue() {}

// Float represents a non-integral (or explicitly float) number.
type Float float64

func (Float) paramValue() {}

// String represents a string value.
type String string

func (String) paramValue() {}

// List represents an ordered list of values, e.g. redshift bin edges.
type List []Value

func (List) paramValue() {}

// Params maps parameter names to values. It is both the top-level
// parameter record of a cached result and the nested object value.
// Use SortedKeys() for deterministic iteration.
type Params map[string]Value

func (Params) paramValue() {}

// Floats builds a List of Float values.
func Floats(xs ...float64) List {
	out := make(List, len(xs))
	for i, x := range xs {
		out[i] = Float(x)
	}
	return out
}

// Ints builds a List of Int values.
func Ints(xs ...int64) List {
	out := make(List, len(xs))
	for i, x := range xs {
		out[i] = Int(x)
	}
	return out
}

// SortedKeys returns the keys in byte-wise lexicographic order.
func (p Params) SortedKeys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Clone returns a deep copy of p.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v Value) Value {
	switch val := v.(type) {
	case List:
		out := make(List, len(val))
		for i, elem := range val {
			out[i] = cloneValue(elem)
		}
		return out
	case Params:
		return val.Clone()
	default:
		return v
	}
}

// With returns a copy of p with key set to v.
func (p Params) With(key string, v Value) Params {
	out := p.Clone()
	if out == nil {
		out = Params{}
	}
	out[key] = v
	return out
}

// Without returns a copy of p with the given keys removed.
func (p Params) Without(keys ...string) Params {
	out := p.Clone()
	if out == nil {
		out = Params{}
	}
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Matches reports whether p satisfies query: every key of query must be
// present in p with an equal value. A key missing from p never matches,
// even when the query value is Null. The empty query matches everything.
func (p Params) Matches(query Params) bool {
	for k, want := range query {
		got, ok := p[k]
		if !ok {
			return false
		}
		if !Equal(got, want) {
			return false
		}
	}
	return true
}

// Equal reports whether two values are equal under JSON semantics.
// Numbers compare by value regardless of Int/Float representation;
// lists compare element-wise; objects compare key-wise.
func Equal(a, b Value) bool {
	if a == nil {
		a = Null{}
	}
	if b == nil {
		b = Null{}
	}

	if an, ok := numeric(a); ok {
		bn, ok := numeric(b)
		if !ok {
			return false
		}
		return an.equal(bn)
	}

	switch x := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Bool:
		y, ok := b.(Bool)
		return ok && x == y
	case String:
		y, ok := b.(String)
		return ok && x == y
	case List:
		y, ok := b.(List)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Params:
		y, ok := b.(Params)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, xv := range x {
			yv, ok := y[k]
			if !ok || !Equal(xv, yv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// number is a numeric view of Int or Float used for cross-type equality.
type number struct {
	isInt bool
	i     int64
	f     float64
}

func numeric(v Value) (number, bool) {
	switch val := v.(type) {
	case Int:
		return number{isInt: true, i: int64(val), f: float64(val)}, true
	case Float:
		return number{f: float64(val)}, true
	default:
		return number{}, false
	}
}

func (n number) equal(o number) bool {
	if n.isInt && o.isInt {
		return n.i == o.i
	}
	return n.f == o.f
}

// Kind returns a short name of the value's JSON type, for messages.
func Kind(v Value) string {
	switch v.(type) {
	case nil, Null:
		return "null"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	case String:
		return "string"
	case List:
		return "list"
	case Params:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// String renders p as canonical JSON, for logs and messages.
func (p Params) String() string {
	b, err := MarshalCanonical(p)
	if err != nil {
		return fmt.Sprintf("<invalid params: %v>", err)
	}
	return string(b)
}

// Str returns the string value of key, if present and a String.
func (p Params) Str(key string) (string, bool) {
	v, ok := p[key].(String)
	return string(v), ok
}
