package pattern

import "fmt"

// ChainedDirectory matches an IFD-style chain of directories: each
// directory holds an entry count, count fixed-size entries, and the
// absolute offset of the next directory (zero terminates the chain).
//
// The chain is traversed with two guards: every directory must lie fully
// inside the buffer, and an offset that was already visited (or that jumps
// before the structure's start) is refused, so corrupted or hostile chains
// cannot loop.
//
// The element spans from the match offset to the end of the furthest
// directory. The whole span is retained in a raw field — reconstruction
// re-emits it verbatim — and each directory is additionally decoded as a
// child element. Directory children are positioned views inside the raw
// span, so the usual sibling-adjacency rule does not apply to them.
type ChainedDirectory struct {
	name      string
	CountSize int
	EntrySize int
	NextSize  int
	Endian    Endian
}

// NewChainedDirectory constructs a CHAINED_DIRECTORY pattern.
//
// Parameters: count_size (default 2), entry_size (default 12), next_size
// (default 4), endian (default big), name (optional).
func NewChainedDirectory(params Params) (Pattern, error) {
	countSize, err := params.Int("count_size", 2)
	if err != nil {
		return nil, err
	}
	entrySize, err := params.Int("entry_size", 12)
	if err != nil {
		return nil, err
	}
	nextSize, err := params.Int("next_size", 4)
	if err != nil {
		return nil, err
	}
	if !validIntSize(countSize) || !validIntSize(nextSize) {
		return nil, fmt.Errorf("count_size and next_size must be 1, 2, 4 or 8")
	}
	if entrySize <= 0 {
		return nil, fmt.Errorf("entry_size must be positive, got %d", entrySize)
	}
	endian, err := params.Endian("endian")
	if err != nil {
		return nil, err
	}
	return &ChainedDirectory{
		name:      params.Name(string(KindChainedDirectory)),
		CountSize: countSize,
		EntrySize: entrySize,
		NextSize:  nextSize,
		Endian:    endian,
	}, nil
}

func (d *ChainedDirectory) Name() string { return d.name }
func (d *ChainedDirectory) Kind() Kind   { return KindChainedDirectory }

func (d *ChainedDirectory) Match(buf []byte, offset int) (*Element, error) {
	if offset < 0 || offset > len(buf) {
		return nil, NewParseError(d.name, offset, "offset outside buffer")
	}

	visited := make(map[int]bool)
	cur := offset
	maxEnd := offset
	var dirs []*Element

	for {
		if visited[cur] {
			return nil, NewParseError(d.name, cur, "directory chain cycle: offset %d already visited", cur)
		}
		visited[cur] = true

		if cur+d.CountSize > len(buf) {
			return nil, NewParseError(d.name, cur, "truncated directory count: need %d bytes, have %d",
				d.CountSize, len(buf)-cur)
		}
		count := readUint(buf[cur:], d.CountSize, d.Endian)

		// Bound the count before multiplying so a hostile 8-byte count
		// cannot wrap entriesLen past 2^64.
		rest := len(buf) - cur - d.CountSize - d.NextSize
		if rest < 0 || count > uint64(rest)/uint64(d.EntrySize) {
			return nil, NewParseError(d.name, cur,
				"directory with %d entries exceeds remaining %d bytes", count, len(buf)-cur)
		}
		entriesLen := count * uint64(d.EntrySize)

		entriesStart := cur + d.CountSize
		nextStart := entriesStart + int(entriesLen)
		end := nextStart + d.NextSize
		next := readUint(buf[nextStart:], d.NextSize, d.Endian)

		dir := &Element{Pattern: d.name + "_DIR", Offset: cur, Length: end - cur}
		dir.SetField("count", UintValue(count))
		dir.SetField("entries", BytesValue(buf[entriesStart:nextStart]))
		dir.SetField("next", UintValue(next))
		dirs = append(dirs, dir)

		if end > maxEnd {
			maxEnd = end
		}
		if next == 0 {
			break
		}
		if next >= uint64(len(buf)) {
			return nil, NewParseError(d.name, nextStart,
				"next directory offset %d past end of buffer (%d bytes)", next, len(buf))
		}
		if int(next) < offset {
			return nil, NewParseError(d.name, nextStart,
				"next directory offset %d precedes structure start %d", next, offset)
		}
		cur = int(next)
	}

	el := &Element{Pattern: d.name, Offset: offset, Length: maxEnd - offset, Children: dirs}
	el.SetField("raw", BytesValue(buf[offset:maxEnd]))
	return el, nil
}

// Reconstruct re-emits the raw span covering the whole chain. The decoded
// directory children are views and carry no bytes of their own.
func (d *ChainedDirectory) Reconstruct(el *Element) ([]byte, error) {
	raw, err := el.BytesField("raw")
	if err != nil {
		return nil, err
	}
	if len(raw) != el.Length {
		return nil, fmt.Errorf("raw span is %d bytes, element length is %d", len(raw), el.Length)
	}
	return raw, nil
}
