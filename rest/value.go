package rest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
)

// ValueType identifies the shape of a parsed JSON value
type ValueType int

const (
	TypeUndefined ValueType = iota
	TypeNull
	TypeBool
	TypeNumber
	TypeString
	TypeArray
	TypeMap
)

var valueTypeNames = map[ValueType]string{
	TypeUndefined: "undefined",
	TypeNull:      "null",
	TypeBool:      "bool",
	TypeNumber:    "number",
	TypeString:    "string",
	TypeArray:     "array",
	TypeMap:       "map",
}

func (t ValueType) String() string {
	if name, ok := valueTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ValueType(%d)", int(t))
}

// Value is a read-only view over a decoded JSON document
type Value struct {
	kind ValueType
	raw  any
}

// Undefined is the "no value" sentinel: returned for bodies that are not JSON
// and for lookups of missing keys.
var Undefined = Value{}

// ParseJSON decodes data into a Value. Numbers keep their textual form so
// integers round-trip exactly.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Undefined, fmt.Errorf("failed to parse JSON body: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Undefined, fmt.Errorf("failed to parse JSON body: unexpected data after top-level value")
	}
	return newValue(raw), nil
}

func newValue(raw any) Value {
	switch raw.(type) {
	case nil:
		return Value{kind: TypeNull}
	case bool:
		return Value{kind: TypeBool, raw: raw}
	case json.Number:
		return Value{kind: TypeNumber, raw: raw}
	case string:
		return Value{kind: TypeString, raw: raw}
	case []any:
		return Value{kind: TypeArray, raw: raw}
	case map[string]any:
		return Value{kind: TypeMap, raw: raw}
	default:
		return Undefined
	}
}

func (v Value) mismatch(expected ValueType) error {
	return fmt.Errorf("%w: expected %s, got %s", ErrTypeMismatch, expected, v.kind)
}

func (v Value) Type() ValueType { return v.kind }

func (v Value) IsUndefined() bool { return v.kind == TypeUndefined }

func (v Value) IsNull() bool { return v.kind == TypeNull }

// Interface returns the decoded Go value (json.Number for numbers)
func (v Value) Interface() any { return v.raw }

// Equal reports whether both values hold the same document
func (v Value) Equal(other Value) bool {
	return v.kind == other.kind && reflect.DeepEqual(v.raw, other.raw)
}

func (v Value) AsString() (string, error) {
	if s, ok := v.raw.(string); ok {
		return s, nil
	}
	return "", v.mismatch(TypeString)
}

func (v Value) AsBool() (bool, error) {
	if b, ok := v.raw.(bool); ok {
		return b, nil
	}
	return false, v.mismatch(TypeBool)
}

func (v Value) AsInt() (int64, error) {
	n, ok := v.raw.(json.Number)
	if !ok {
		return 0, v.mismatch(TypeNumber)
	}
	i, err := n.Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %s is not an integer", ErrTypeMismatch, n)
	}
	return i, nil
}

func (v Value) AsFloat() (float64, error) {
	n, ok := v.raw.(json.Number)
	if !ok {
		return 0, v.mismatch(TypeNumber)
	}
	return n.Float64()
}

func (v Value) AsArray() ([]Value, error) {
	items, ok := v.raw.([]any)
	if !ok {
		return nil, v.mismatch(TypeArray)
	}
	out := make([]Value, len(items))
	for i, item := range items {
		out[i] = newValue(item)
	}
	return out, nil
}

func (v Value) AsMap() (map[string]Value, error) {
	m, ok := v.raw.(map[string]any)
	if !ok {
		return nil, v.mismatch(TypeMap)
	}
	out := make(map[string]Value, len(m))
	for k, item := range m {
		out[k] = newValue(item)
	}
	return out, nil
}

// Get returns the member named key, or Undefined when v is not a map or the
// key is missing.
func (v Value) Get(key string) Value {
	m, ok := v.raw.(map[string]any)
	if !ok {
		return Undefined
	}
	item, ok := m[key]
	if !ok {
		return Undefined
	}
	return newValue(item)
}

// GetString returns the string member named key
func (v Value) GetString(key string) (string, error) {
	if v.kind != TypeMap {
		return "", v.mismatch(TypeMap)
	}
	return v.Get(key).AsString()
}

// GetInt returns the integer member named key
func (v Value) GetInt(key string) (int64, error) {
	if v.kind != TypeMap {
		return 0, v.mismatch(TypeMap)
	}
	return v.Get(key).AsInt()
}

// GetMap returns the map member named key
func (v Value) GetMap(key string) (Value, error) {
	if v.kind != TypeMap {
		return Undefined, v.mismatch(TypeMap)
	}
	member := v.Get(key)
	if member.kind != TypeMap {
		return Undefined, member.mismatch(TypeMap)
	}
	return member, nil
}
