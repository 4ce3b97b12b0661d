package params

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

// Parse decodes a JSON object into Params.
// Numbers written with a fraction or exponent become Float, others Int.
func Parse(data []byte) (Params, error) {
	v, err := ParseJSON(data)
	if err != nil {
		return nil, err
	}
	p, ok := v.(Params)
	if !ok {
		return nil, fmt.Errorf("expected JSON object, got %s", Kind(v))
	}
	return p, nil
}

// ParseJSON decodes any single JSON value.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	// Reject trailing garbage such as `1 2`
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected data after JSON value")
	}
	return convert(raw)
}

// ParseValue interprets a command-line value: valid JSON is decoded
// (so 128, 0.15, [0,0.15,1], null and true keep their types) and anything
// else is taken verbatim as a String.
func ParseValue(s string) Value {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return String(s)
	}
	v, err := ParseJSON([]byte(trimmed))
	if err != nil {
		return String(s)
	}
	return v
}

// ParseAssignment splits "key=value" and parses the value with ParseValue.
func ParseAssignment(s string) (string, Value, error) {
	key, raw, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", nil, fmt.Errorf("expected key=value, got %q", s)
	}
	return key, ParseValue(raw), nil
}

// FromAssignments builds Params from repeated "key=value" strings.
// A key given twice is an error.
func FromAssignments(assignments []string) (Params, error) {
	p := Params{}
	for _, a := range assignments {
		k, v, err := ParseAssignment(a)
		if err != nil {
			return nil, err
		}
		if _, dup := p[k]; dup {
			return nil, fmt.Errorf("parameter %q given more than once", k)
		}
		p[k] = v
	}
	return p, nil
}

func convert(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case json.Number:
		return convertNumber(val)
	case []any:
		out := make(List, len(val))
		for i, elem := range val {
			pv, err := convert(elem)
			if err != nil {
				return nil, fmt.Errorf("list[%d]: %w", i, err)
			}
			out[i] = pv
		}
		return out, nil
	case map[string]any:
		out := make(Params, len(val))
		for k, elem := range val {
			pv, err := convert(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			out[k] = pv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported JSON type: %T", v)
	}
}

func convertNumber(n json.Number) (Value, error) {
	s := string(n)
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(i), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", s, err)
	}
	return Float(f), nil
}

// FromAny converts a plain Go value into a Value.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case int:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case float32:
		return checkFloat(float64(val))
	case float64:
		return checkFloat(val)
	case []float64:
		for _, f := range val {
			if _, err := checkFloat(f); err != nil {
				return nil, err
			}
		}
		return Floats(val...), nil
	case []int:
		out := make(List, len(val))
		for i, x := range val {
			out[i] = Int(x)
		}
		return out, nil
	case []string:
		out := make(List, len(val))
		for i, x := range val {
			out[i] = String(x)
		}
		return out, nil
	case []any:
		out := make(List, len(val))
		for i, elem := range val {
			pv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = pv
		}
		return out, nil
	case map[string]any:
		out := make(Params, len(val))
		for k, elem := range val {
			pv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			out[k] = pv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// FromMap converts a map of plain Go values into Params.
func FromMap(m map[string]any) (Params, error) {
	v, err := FromAny(m)
	if err != nil {
		return nil, err
	}
	return v.(Params), nil
}

// MustFromMap is FromMap for literals in tests and defaults; it panics on error.
func MustFromMap(m map[string]any) Params {
	p, err := FromMap(m)
	if err != nil {
		panic(err)
	}
	return p
}

func checkFloat(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite number: %v", f)
	}
	return Float(f), nil
}

// ToAny converts a Value back to plain Go values (nil, bool, int64,
// float64, string, []any, map[string]any), e.g. for templates.
func ToAny(v Value) any {
	switch val := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case String:
		return string(val)
	case List:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToAny(elem)
		}
		return out
	case Params:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToAny(elem)
		}
		return out
	default:
		return nil
	}
}
