package pattern

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Endian declares the byte order of a fixed-width integer field.
type Endian string

const (
	Big    Endian = "big"
	Little Endian = "little"
)

// ByteOrder maps the declaration onto encoding/binary. Big-endian is the
// default for an empty declaration.
func (e Endian) ByteOrder() binary.ByteOrder {
	if e == Little {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// readUint decodes a size-byte unsigned integer at the start of buf.
// The caller guarantees len(buf) >= size.
func readUint(buf []byte, size int, e Endian) uint64 {
	switch size {
	case 1:
		return uint64(buf[0])
	case 2:
		return uint64(e.ByteOrder().Uint16(buf))
	case 4:
		return uint64(e.ByteOrder().Uint32(buf))
	default:
		return e.ByteOrder().Uint64(buf)
	}
}

// putUint encodes v into size bytes with the given byte order.
func putUint(v uint64, size int, e Endian) []byte {
	out := make([]byte, size)
	switch size {
	case 1:
		out[0] = byte(v)
	case 2:
		e.ByteOrder().PutUint16(out, uint16(v))
	case 4:
		e.ByteOrder().PutUint32(out, uint32(v))
	default:
		e.ByteOrder().PutUint64(out, v)
	}
	return out
}

// validIntSize reports whether size is a supported integer width.
func validIntSize(size int) bool {
	return size == 1 || size == 2 || size == 4 || size == 8
}

// Params carries the declarative parameters of a grammar composition node
// into a pattern constructor. Values originate from YAML, so integers may
// arrive as int or int64 and byte sequences as hex strings.
type Params map[string]interface{}

// Name returns the explicit pattern name, or the kind's default.
func (p Params) Name(def string) string {
	return p.String("name", def)
}

// String returns a string parameter or the default.
func (p Params) String(key, def string) string {
	if v, ok := p[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Int returns an integer parameter or the default.
func (p Params) Int(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("parameter %q: expected integer, got %T", key, v)
	}
}

// Bytes returns a hex-encoded byte parameter. A missing key yields nil.
func (p Params) Bytes(key string) ([]byte, error) {
	v, ok := p[key]
	if !ok {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("parameter %q: expected hex string, got %T", key, v)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("parameter %q: %w", key, err)
	}
	return b, nil
}

// Text returns a string parameter as raw bytes. A missing key yields nil.
func (p Params) Text(key string) []byte {
	if v, ok := p[key]; ok {
		if s, ok := v.(string); ok {
			return []byte(s)
		}
	}
	return nil
}

// Endian returns the declared byte order, defaulting to big-endian.
func (p Params) Endian(key string) (Endian, error) {
	switch s := p.String(key, string(Big)); Endian(s) {
	case Big:
		return Big, nil
	case Little:
		return Little, nil
	default:
		return Big, fmt.Errorf("parameter %q: unknown byte order %q", key, s)
	}
}
