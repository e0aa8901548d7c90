package session

import (
	jsoniter "github.com/json-iterator/go"
)

// Mapping is a key/value map that remembers insertion order
type Mapping struct {
	keys   []string
	values map[string]any
}

// NewMapping creates an empty mapping
func NewMapping() *Mapping {
	return &Mapping{values: make(map[string]any)}
}

// Set stores value under key. A key that is already present keeps its position.
func (m *Mapping) Set(key string, value any) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *Mapping) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

func (m *Mapping) Len() int {
	return len(m.keys)
}

// Keys returns the keys in insertion order
func (m *Mapping) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Range calls fn for every entry in insertion order until fn returns false
func (m *Mapping) Range(fn func(key string, value any) bool) {
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}

// Map returns the entries as a plain (unordered) map
func (m *Mapping) Map() map[string]any {
	out := make(map[string]any, len(m.values))
	for k, v := range m.values {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the mapping as a JSON object in insertion order
func (m *Mapping) MarshalJSON() ([]byte, error) {
	stream := jsonAPI.BorrowStream(nil)
	defer jsonAPI.ReturnStream(stream)

	stream.WriteObjectStart()
	for i, k := range m.keys {
		if i > 0 {
			stream.WriteMore()
		}
		stream.WriteObjectField(k)
		stream.WriteVal(m.values[k])
	}
	stream.WriteObjectEnd()

	if stream.Error != nil {
		return nil, stream.Error
	}
	return append([]byte(nil), stream.Buffer()...), nil
}

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary
