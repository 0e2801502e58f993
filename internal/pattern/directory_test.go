package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildDirectory appends one directory (count(2, BE) | entries | next(4, BE))
// to buf and returns the result.
func buildDirectory(buf []byte, entries [][]byte, next uint64) []byte {
	buf = append(buf, putUint(uint64(len(entries)), 2, Big)...)
	for _, e := range entries {
		buf = append(buf, e...)
	}
	return append(buf, putUint(next, 4, Big)...)
}

func dirParams() Params {
	return Params{"count_size": 2, "entry_size": 4, "next_size": 4}
}

func TestChainedDirectory_SingleDirectory(t *testing.T) {
	p := mustPattern(t, NewChainedDirectory, dirParams())

	buf := buildDirectory(nil, [][]byte{[]byte("AAAA"), []byte("BBBB")}, 0)
	el, err := p.Match(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, len(buf), el.Length)
	require.Len(t, el.Children, 1)

	count, err := el.Children[0].UintField("count")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	out, err := p.Reconstruct(el)
	require.NoError(t, err)
	assert.Equal(t, buf, out)
}

func TestChainedDirectory_FollowsChain(t *testing.T) {
	p := mustPattern(t, NewChainedDirectory, dirParams())

	// First directory at 0 (one entry, 10 bytes), gap, second at 14.
	buf := buildDirectory(nil, [][]byte{[]byte("AAAA")}, 14)
	buf = append(buf, 0xEE, 0xEE, 0xEE, 0xEE) // slack between directories
	buf = buildDirectory(buf, [][]byte{[]byte("BBBB")}, 0)

	el, err := p.Match(buf, 0)
	require.NoError(t, err)
	require.Len(t, el.Children, 2)
	assert.Equal(t, 14, el.Children[1].Offset)
	assert.Equal(t, len(buf), el.Length)

	// The raw span preserves the slack bytes between directories.
	out, err := p.Reconstruct(el)
	require.NoError(t, err)
	assert.Equal(t, buf, out)
}

func TestChainedDirectory_CycleGuard(t *testing.T) {
	p := mustPattern(t, NewChainedDirectory, dirParams())

	// Chain 0 -> 6 -> 6: the second directory points at itself.
	buf := buildDirectory(nil, nil, 6)
	buf = buildDirectory(buf, nil, 6)

	_, err := p.Match(buf, 0)
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Msg, "cycle")
}

func TestChainedDirectory_NextPastEndOfBuffer(t *testing.T) {
	p := mustPattern(t, NewChainedDirectory, dirParams())

	buf := buildDirectory(nil, nil, 9999)
	_, err := p.Match(buf, 0)
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Msg, "past end of buffer")
}

func TestChainedDirectory_HugeCountRejected(t *testing.T) {
	p := mustPattern(t, NewChainedDirectory, Params{"count_size": 8, "entry_size": 12, "next_size": 4})

	// 12 * 1537228672809129302 wraps to 8 mod 2^64, so an unguarded size
	// computation would fit this directory inside 20 bytes.
	buf := putUint(1537228672809129302, 8, Big)
	buf = append(buf, make([]byte, 12)...)
	require.Len(t, buf, 20)

	_, err := p.Match(buf, 0)
	require.Error(t, err)

	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Contains(t, pe.Msg, "exceeds remaining")
}

func TestChainedDirectory_TruncatedEntries(t *testing.T) {
	p := mustPattern(t, NewChainedDirectory, dirParams())

	// Claims 100 entries with almost no bytes behind them.
	buf := append(putUint(100, 2, Big), 0x00, 0x01)
	_, err := p.Match(buf, 0)
	assert.ErrorIs(t, err, ErrParse)
}
