package pattern

import (
	"encoding/hex"
	"fmt"
)

// Value is a decoded field value. Raw bytes are carried as lowercase hex so
// a decomposition document survives JSON round-trips byte-exactly even when
// the payload is not valid UTF-8.
type Value struct {
	Type string `json:"type"` // "bytes", "uint" or "string"
	Hex  string `json:"hex,omitempty"`
	Uint uint64 `json:"uint,omitempty"`
	Str  string `json:"str,omitempty"`
}

// BytesValue wraps raw bytes as a field value.
func BytesValue(b []byte) Value {
	return Value{Type: "bytes", Hex: hex.EncodeToString(b)}
}

// UintValue wraps an unsigned integer as a field value.
func UintValue(u uint64) Value {
	return Value{Type: "uint", Uint: u}
}

// StringValue wraps a string as a field value. The string must be valid
// UTF-8; use BytesValue for arbitrary payloads.
func StringValue(s string) Value {
	return Value{Type: "string", Str: s}
}

// AsBytes decodes a bytes value.
func (v Value) AsBytes() ([]byte, error) {
	if v.Type != "bytes" {
		return nil, fmt.Errorf("field is %s, not bytes", v.Type)
	}
	return hex.DecodeString(v.Hex)
}

// Element is one node of a decomposition tree: a pattern (or composition
// group) matched at an absolute offset, its consumed length, the decoded
// fields, and any child elements.
//
// Sibling elements at the same nesting level are adjacent: offset+length of
// element i equals the offset of element i+1, unless the matching pattern
// documents otherwise (chained directories expose decoded views over a raw
// span; key/value pairs leave the item separators between siblings).
type Element struct {
	Pattern  string           `json:"pattern"`
	Offset   int              `json:"offset"`
	Length   int              `json:"length"`
	Fields   map[string]Value `json:"fields,omitempty"`
	Children []*Element       `json:"children,omitempty"`
}

// End returns the first offset past the element.
func (e *Element) End() int {
	return e.Offset + e.Length
}

// SetField stores a field value, allocating the map on first use.
func (e *Element) SetField(name string, v Value) {
	if e.Fields == nil {
		e.Fields = make(map[string]Value)
	}
	e.Fields[name] = v
}

// BytesField returns a bytes field, or an error if absent or mistyped.
func (e *Element) BytesField(name string) ([]byte, error) {
	v, ok := e.Fields[name]
	if !ok {
		return nil, fmt.Errorf("element %s: missing field %q", e.Pattern, name)
	}
	b, err := v.AsBytes()
	if err != nil {
		return nil, fmt.Errorf("element %s: field %q: %w", e.Pattern, name, err)
	}
	return b, nil
}

// UintField returns an unsigned integer field.
func (e *Element) UintField(name string) (uint64, error) {
	v, ok := e.Fields[name]
	if !ok {
		return 0, fmt.Errorf("element %s: missing field %q", e.Pattern, name)
	}
	if v.Type != "uint" {
		return 0, fmt.Errorf("element %s: field %q is %s, not uint", e.Pattern, name, v.Type)
	}
	return v.Uint, nil
}

// StringField returns a string field.
func (e *Element) StringField(name string) (string, error) {
	v, ok := e.Fields[name]
	if !ok {
		return "", fmt.Errorf("element %s: missing field %q", e.Pattern, name)
	}
	if v.Type != "string" {
		return "", fmt.Errorf("element %s: field %q is %s, not string", e.Pattern, name, v.Type)
	}
	return v.Str, nil
}

// Walk visits the element and all descendants depth-first.
func (e *Element) Walk(fn func(*Element)) {
	fn(e)
	for _, c := range e.Children {
		c.Walk(fn)
	}
}
