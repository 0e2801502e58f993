package pattern

import (
	"bytes"
	"fmt"
	"hash/crc32"
)

// TypedChunk matches a tagged, length-prefixed chunk with a trailing CRC32
// over tag and payload. Two layouts exist: "tag_first" (tag | length |
// data | crc, the default) and "length_first" (length | tag | data | crc,
// as in PNG). Both the length and the checksum are computed fields — Match
// verifies them against the buffer and Reconstruct recomputes them from
// the tag and data, so an edited payload reconstructs with a checksum
// consistent with the new bytes rather than a stale stored one.
type TypedChunk struct {
	name        string
	TagSize     int
	PrefixSize  int
	Endian      Endian
	LengthFirst bool
	ExpectedTag []byte // nil accepts any tag
}

const chunkCRCSize = 4

// NewTypedChunk constructs a TYPED_CHUNK pattern.
//
// Parameters: tag_size (default 4), prefix_size (default 4), endian
// (default big), layout (tag_first|length_first, default tag_first), tag
// (ASCII, optional — restricts matches to one chunk type), name
// (optional).
func NewTypedChunk(params Params) (Pattern, error) {
	tagSize, err := params.Int("tag_size", 4)
	if err != nil {
		return nil, err
	}
	if tagSize <= 0 {
		return nil, fmt.Errorf("chunk tag size must be positive, got %d", tagSize)
	}
	prefixSize, err := params.Int("prefix_size", 4)
	if err != nil {
		return nil, err
	}
	if !validIntSize(prefixSize) {
		return nil, fmt.Errorf("chunk length prefix size must be 1, 2, 4 or 8, got %d", prefixSize)
	}
	endian, err := params.Endian("endian")
	if err != nil {
		return nil, err
	}
	var lengthFirst bool
	switch layout := params.String("layout", "tag_first"); layout {
	case "tag_first":
	case "length_first":
		lengthFirst = true
	default:
		return nil, fmt.Errorf("unknown chunk layout %q", layout)
	}
	expected := params.Text("tag")
	if expected != nil && len(expected) != tagSize {
		return nil, fmt.Errorf("expected tag %q is %d bytes, tag size is %d", expected, len(expected), tagSize)
	}
	return &TypedChunk{
		name:        params.Name(string(KindTypedChunk)),
		TagSize:     tagSize,
		PrefixSize:  prefixSize,
		Endian:      endian,
		LengthFirst: lengthFirst,
		ExpectedTag: expected,
	}, nil
}

func (c *TypedChunk) Name() string { return c.name }
func (c *TypedChunk) Kind() Kind   { return KindTypedChunk }

// Match decodes one chunk and verifies its checksum against the bytes in
// the buffer. A stored checksum that disagrees with the computed one is a
// ParseError — corruption is surfaced, never ignored.
func (c *TypedChunk) Match(buf []byte, offset int) (*Element, error) {
	head := c.TagSize + c.PrefixSize
	if offset < 0 || offset+head > len(buf) {
		return nil, NewParseError(c.name, offset, "truncated chunk header: need %d bytes, have %d",
			head, len(buf)-offset)
	}

	tagAt, lenAt := offset, offset+c.TagSize
	if c.LengthFirst {
		lenAt, tagAt = offset, offset+c.PrefixSize
	}
	tag := buf[tagAt : tagAt+c.TagSize]
	if c.ExpectedTag != nil && !bytes.Equal(tag, c.ExpectedTag) {
		return nil, NewParseError(c.name, tagAt, "tag mismatch: expected %q, got %q", c.ExpectedTag, tag)
	}

	n := readUint(buf[lenAt:], c.PrefixSize, c.Endian)
	remaining := uint64(len(buf) - offset - head)
	if n > remaining || remaining-n < chunkCRCSize {
		return nil, NewParseError(c.name, lenAt,
			"declared length %d exceeds remaining buffer (%d bytes)", n, remaining)
	}

	dataStart := offset + head
	data := buf[dataStart : dataStart+int(n)]
	crcStart := dataStart + int(n)
	stored := readUint(buf[crcStart:], chunkCRCSize, Big)

	computed := crc32.ChecksumIEEE(tag)
	computed = crc32.Update(computed, crc32.IEEETable, data)
	if uint64(computed) != stored {
		return nil, NewParseError(c.name, crcStart,
			"checksum mismatch: stored %08x, computed %08x", stored, computed)
	}

	el := &Element{Pattern: c.name, Offset: offset, Length: head + int(n) + chunkCRCSize}
	el.SetField("tag", BytesValue(tag))
	el.SetField("length", UintValue(n))
	el.SetField("data", BytesValue(data))
	el.SetField("checksum", UintValue(stored))
	return el, nil
}

// Reconstruct emits the chunk with a recomputed length and CRC32. The
// stored checksum field is deliberately ignored.
func (c *TypedChunk) Reconstruct(el *Element) ([]byte, error) {
	tag, err := el.BytesField("tag")
	if err != nil {
		return nil, err
	}
	if len(tag) != c.TagSize {
		return nil, fmt.Errorf("chunk tag is %d bytes, expected %d", len(tag), c.TagSize)
	}
	data, err := el.BytesField("data")
	if err != nil {
		return nil, err
	}

	length := putUint(uint64(len(data)), c.PrefixSize, c.Endian)
	out := make([]byte, 0, c.TagSize+c.PrefixSize+len(data)+chunkCRCSize)
	if c.LengthFirst {
		out = append(out, length...)
		out = append(out, tag...)
	} else {
		out = append(out, tag...)
		out = append(out, length...)
	}
	out = append(out, data...)

	crc := crc32.ChecksumIEEE(tag)
	crc = crc32.Update(crc, crc32.IEEETable, data)
	out = append(out, putUint(uint64(crc), chunkCRCSize, Big)...)
	return out, nil
}
