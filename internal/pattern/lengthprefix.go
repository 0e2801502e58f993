package pattern

import "fmt"

// LengthPrefixed matches an N-byte integer followed by exactly that many
// data bytes. The length field is computed: reconstruction derives it from
// the data, never from a stored value.
type LengthPrefixed struct {
	name       string
	PrefixSize int
	Endian     Endian
}

// NewLengthPrefixed constructs a LENGTH_PREFIXED_DATA pattern.
//
// Parameters: prefix_size (1, 2, 4 or 8; default 4), endian (big|little,
// default big), name (optional).
func NewLengthPrefixed(params Params) (Pattern, error) {
	size, err := params.Int("prefix_size", 4)
	if err != nil {
		return nil, err
	}
	if !validIntSize(size) {
		return nil, fmt.Errorf("length prefix size must be 1, 2, 4 or 8, got %d", size)
	}
	endian, err := params.Endian("endian")
	if err != nil {
		return nil, err
	}
	return &LengthPrefixed{
		name:       params.Name(string(KindLengthPrefixed)),
		PrefixSize: size,
		Endian:     endian,
	}, nil
}

func (p *LengthPrefixed) Name() string { return p.name }
func (p *LengthPrefixed) Kind() Kind   { return KindLengthPrefixed }

// Match reads the length prefix and the declared number of data bytes. A
// declared length past the end of the buffer is a ParseError, never a read
// beyond len(buf).
func (p *LengthPrefixed) Match(buf []byte, offset int) (*Element, error) {
	if offset < 0 || offset+p.PrefixSize > len(buf) {
		return nil, NewParseError(p.name, offset, "truncated length prefix: need %d bytes, have %d",
			p.PrefixSize, len(buf)-offset)
	}
	n := readUint(buf[offset:], p.PrefixSize, p.Endian)
	remaining := uint64(len(buf) - offset - p.PrefixSize)
	if n > remaining {
		return nil, NewParseError(p.name, offset, "declared length %d exceeds remaining buffer (%d bytes)",
			n, remaining)
	}

	start := offset + p.PrefixSize
	el := &Element{Pattern: p.name, Offset: offset, Length: p.PrefixSize + int(n)}
	el.SetField("length", UintValue(n))
	el.SetField("data", BytesValue(buf[start:start+int(n)]))
	return el, nil
}

// Reconstruct emits the recomputed length prefix followed by the data.
func (p *LengthPrefixed) Reconstruct(el *Element) ([]byte, error) {
	data, err := el.BytesField("data")
	if err != nil {
		return nil, err
	}
	out := putUint(uint64(len(data)), p.PrefixSize, p.Endian)
	return append(out, data...), nil
}
