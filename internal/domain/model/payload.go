package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"

	"github.com/mitchellh/copystructure"
)

// Payload is an untyped JSON object supplied by an external source. Its
// schema is owned by the sender, so every accessor tolerates missing keys,
// nulls and wrong types.
type Payload map[string]any

// DecodePayload decodes a JSON object. Numbers are kept as json.Number so
// large identifiers survive without float rounding. A JSON null decodes to
// an empty payload.
func DecodePayload(data []byte) (Payload, error) {
	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, err
	}
	switch v := doc.(type) {
	case nil:
		return Payload{}, nil
	case map[string]any:
		return Payload(v), nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrNotObject, doc)
	}
}

// DecodeDocument decodes any JSON value, keeping numbers as json.Number.
func DecodeDocument(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	return doc, nil
}

// DecodeStoredPayload decodes a payload column written from a Snapshot.
// Unlike DecodePayload, JSON null decodes to a nil Payload so that "never
// attached" survives a round trip.
func DecodeStoredPayload(data []byte) (Payload, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, err
	}
	switch v := doc.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return Payload(v), nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrNotObject, doc)
	}
}

// Object returns the nested object stored under key, or nil if there is none.
// A nil Payload is safe to query further.
func (p Payload) Object(key string) Payload {
	switch v := p[key].(type) {
	case map[string]any:
		return Payload(v)
	case Payload:
		return v
	}
	return nil
}

// Lookup returns the value stored under key. JSON null counts as absent.
func (p Payload) Lookup(key string) (any, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// Text returns the string stored under key.
func (p Payload) Text(key string) Optional[string] {
	if s, ok := p[key].(string); ok {
		return Some(s)
	}
	return Unset[string]()
}

// Integer returns the integer stored under key. json.Number, Go integer
// types and integral float64 values are accepted.
func (p Payload) Integer(key string) Optional[int64] {
	v, ok := p.Lookup(key)
	if !ok {
		return Unset[int64]()
	}
	return toInt64(v)
}

// Clone returns a deep copy. A nil payload stays nil.
func (p Payload) Clone() Payload {
	if p == nil {
		return nil
	}
	out := make(Payload, len(p))
	for k, v := range p {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Payload:
		return t.Clone()
	case map[string]any:
		if t == nil {
			return t
		}
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = cloneValue(x)
		}
		return out
	case []any:
		if t == nil {
			return t
		}
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = cloneValue(x)
		}
		return out
	case map[string]string:
		return maps.Clone(t)
	case []string:
		return slices.Clone(t)
	}
	return deepCopy(v)
}

// deepCopy copies any other container reachable from v, such as
// []map[string]any or a pointer to a struct. Scalars are returned as is.
// Unexported struct fields are not copied.
func deepCopy(v any) any {
	if v == nil {
		return nil
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Pointer, reflect.Struct:
	default:
		return v
	}
	out, err := copystructure.Copy(v)
	if err != nil {
		return v
	}
	return out
}

func toInt64(v any) Optional[int64] {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return Some(i)
		}
	case float64:
		if n == math.Trunc(n) && n >= math.MinInt64 && n < math.MaxInt64 {
			return Some(int64(n))
		}
	case int:
		return Some(int64(n))
	case int8:
		return Some(int64(n))
	case int16:
		return Some(int64(n))
	case int32:
		return Some(int64(n))
	case int64:
		return Some(n)
	case uint:
		if uint64(n) <= math.MaxInt64 {
			return Some(int64(n))
		}
	case uint8:
		return Some(int64(n))
	case uint16:
		return Some(int64(n))
	case uint32:
		return Some(int64(n))
	case uint64:
		if n <= math.MaxInt64 {
			return Some(int64(n))
		}
	}
	return Unset[int64]()
}
