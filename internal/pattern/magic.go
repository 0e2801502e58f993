package pattern

import "fmt"

// MagicNumber matches a fixed byte signature at a fixed position relative
// to the match offset. An optional mask marks don't-care bits: only bits
// set in the mask participate in the comparison. The raw matched bytes are
// retained so reconstruction is exact even under a mask.
type MagicNumber struct {
	name      string
	Signature []byte
	Mask      []byte // nil means every bit is significant
	Skip      int    // bytes between the match offset and the signature
}

// NewMagicNumber constructs a MAGIC_NUMBER pattern.
//
// Parameters: bytes (hex, required), mask (hex, optional, same length),
// skip (int, optional), name (optional).
func NewMagicNumber(params Params) (Pattern, error) {
	sig, err := params.Bytes("bytes")
	if err != nil {
		return nil, err
	}
	if len(sig) == 0 {
		return nil, fmt.Errorf("magic number requires a non-empty bytes parameter")
	}
	mask, err := params.Bytes("mask")
	if err != nil {
		return nil, err
	}
	if mask != nil && len(mask) != len(sig) {
		return nil, fmt.Errorf("magic number mask length %d does not match signature length %d", len(mask), len(sig))
	}
	skip, err := params.Int("skip", 0)
	if err != nil {
		return nil, err
	}
	if skip < 0 {
		return nil, fmt.Errorf("magic number skip must not be negative")
	}
	return &MagicNumber{
		name:      params.Name(string(KindMagicNumber)),
		Signature: sig,
		Mask:      mask,
		Skip:      skip,
	}, nil
}

func (m *MagicNumber) Name() string { return m.name }
func (m *MagicNumber) Kind() Kind   { return KindMagicNumber }

// Match verifies the signature and returns an element holding the matched
// bytes (and any skipped prefix bytes) verbatim.
func (m *MagicNumber) Match(buf []byte, offset int) (*Element, error) {
	total := m.Skip + len(m.Signature)
	if offset < 0 || offset+total > len(buf) {
		return nil, NewParseError(m.name, offset, "need %d bytes, have %d", total, len(buf)-offset)
	}
	got := buf[offset+m.Skip : offset+m.Skip+len(m.Signature)]
	for i := range m.Signature {
		mask := byte(0xFF)
		if m.Mask != nil {
			mask = m.Mask[i]
		}
		if got[i]&mask != m.Signature[i]&mask {
			return nil, NewParseError(m.name, offset+m.Skip+i,
				"signature mismatch: expected 0x%02x, got 0x%02x", m.Signature[i]&mask, got[i]&mask)
		}
	}

	el := &Element{Pattern: m.name, Offset: offset, Length: total}
	if m.Skip > 0 {
		el.SetField("pad", BytesValue(buf[offset:offset+m.Skip]))
	}
	el.SetField("magic", BytesValue(got))
	return el, nil
}

// Reconstruct re-emits the skipped prefix and the matched signature bytes.
func (m *MagicNumber) Reconstruct(el *Element) ([]byte, error) {
	magic, err := el.BytesField("magic")
	if err != nil {
		return nil, err
	}
	if len(magic) != len(m.Signature) {
		return nil, fmt.Errorf("magic field is %d bytes, expected %d", len(magic), len(m.Signature))
	}
	if m.Skip == 0 {
		return magic, nil
	}
	pad, err := el.BytesField("pad")
	if err != nil {
		return nil, err
	}
	if len(pad) != m.Skip {
		return nil, fmt.Errorf("pad field is %d bytes, expected %d", len(pad), m.Skip)
	}
	return append(append([]byte{}, pad...), magic...), nil
}
