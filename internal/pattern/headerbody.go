package pattern

import (
	"bytes"
	"fmt"
)

// HeaderBody matches a fixed-size header followed by a body. The body is
// delimited one of three ways: a fixed size, a marker byte sequence (the
// body ends just before the marker, which is not consumed), or the rest of
// the buffer.
type HeaderBody struct {
	name       string
	HeaderSize int
	BodySize   int    // -1 when the body is marker-delimited or open-ended
	Marker     []byte // nil when not marker-delimited
}

// NewHeaderBody constructs a HEADER_BODY pattern.
//
// Parameters: header_size (required, > 0), body_size (optional fixed body
// length), marker (hex, optional body delimiter), name (optional). With
// neither body_size nor marker, the body extends to the end of the buffer.
func NewHeaderBody(params Params) (Pattern, error) {
	headerSize, err := params.Int("header_size", 0)
	if err != nil {
		return nil, err
	}
	if headerSize <= 0 {
		return nil, fmt.Errorf("header_size must be positive, got %d", headerSize)
	}
	bodySize, err := params.Int("body_size", -1)
	if err != nil {
		return nil, err
	}
	marker, err := params.Bytes("marker")
	if err != nil {
		return nil, err
	}
	if bodySize >= 0 && marker != nil {
		return nil, fmt.Errorf("body_size and marker are mutually exclusive")
	}
	return &HeaderBody{
		name:       params.Name(string(KindHeaderBody)),
		HeaderSize: headerSize,
		BodySize:   bodySize,
		Marker:     marker,
	}, nil
}

func (h *HeaderBody) Name() string { return h.name }
func (h *HeaderBody) Kind() Kind   { return KindHeaderBody }

func (h *HeaderBody) Match(buf []byte, offset int) (*Element, error) {
	if offset < 0 || offset+h.HeaderSize > len(buf) {
		return nil, NewParseError(h.name, offset, "truncated header: need %d bytes, have %d",
			h.HeaderSize, len(buf)-offset)
	}
	bodyStart := offset + h.HeaderSize

	var bodyLen int
	switch {
	case h.BodySize >= 0:
		if bodyStart+h.BodySize > len(buf) {
			return nil, NewParseError(h.name, bodyStart, "truncated body: need %d bytes, have %d",
				h.BodySize, len(buf)-bodyStart)
		}
		bodyLen = h.BodySize
	case h.Marker != nil:
		idx := bytes.Index(buf[bodyStart:], h.Marker)
		if idx < 0 {
			return nil, NewParseError(h.name, bodyStart, "body delimiter % x not found", h.Marker)
		}
		bodyLen = idx
	default:
		bodyLen = len(buf) - bodyStart
	}

	el := &Element{Pattern: h.name, Offset: offset, Length: h.HeaderSize + bodyLen}
	el.SetField("header", BytesValue(buf[offset:bodyStart]))
	el.SetField("body", BytesValue(buf[bodyStart:bodyStart+bodyLen]))
	return el, nil
}

func (h *HeaderBody) Reconstruct(el *Element) ([]byte, error) {
	header, err := el.BytesField("header")
	if err != nil {
		return nil, err
	}
	if len(header) != h.HeaderSize {
		return nil, fmt.Errorf("header field is %d bytes, expected %d", len(header), h.HeaderSize)
	}
	body, err := el.BytesField("body")
	if err != nil {
		return nil, err
	}
	if h.BodySize >= 0 && len(body) != h.BodySize {
		return nil, fmt.Errorf("body field is %d bytes, expected %d", len(body), h.BodySize)
	}
	return append(append([]byte{}, header...), body...), nil
}
