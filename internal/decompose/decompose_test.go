package decompose

import (
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilupskalvis/binform/internal/grammar"
	"github.com/kilupskalvis/binform/internal/pattern"
)

func newTestRegistry(t *testing.T) *grammar.Registry {
	t.Helper()
	reg, err := grammar.NewRegistry()
	require.NoError(t, err)
	return reg
}

// chunk assembles tag | len(4, BE) | data | crc32(tag+data).
func chunk(tag string, data []byte) []byte {
	out := []byte(tag)
	out = append(out, 0, 0, 0, 0)
	out[4] = byte(len(data) >> 24)
	out[5] = byte(len(data) >> 16)
	out[6] = byte(len(data) >> 8)
	out[7] = byte(len(data))
	out = append(out, data...)
	crc := crc32.ChecksumIEEE(append([]byte(tag), data...))
	return append(out, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))
}

// chunkedFile builds a valid CHUNKED buffer: "BINF" magic, the given
// chunks, and the END terminator.
func chunkedFile(chunks ...[]byte) []byte {
	buf := []byte("BINF")
	for _, c := range chunks {
		buf = append(buf, c...)
	}
	return append(buf, chunk("END\x00", nil)...)
}

func TestDecompose_ChunkedFile(t *testing.T) {
	reg := newTestRegistry(t)
	g, err := reg.Latest("CHUNKED")
	require.NoError(t, err)

	buf := chunkedFile(chunk("TEST", []byte("hello")))
	tree, err := New(reg, ModeStrict).Decompose(buf, g)
	require.NoError(t, err)

	assert.Equal(t, "CHUNKED", tree.Format)
	assert.Equal(t, ModeStrict, tree.Mode)
	assert.Empty(t, tree.Warnings)

	// sequence -> [magic, repeat_until]
	require.Len(t, tree.Root.Children, 2)
	magic := tree.Root.Children[0]
	assert.Equal(t, "MAGIC_NUMBER", magic.Pattern)
	repeat := tree.Root.Children[1]
	require.Len(t, repeat.Children, 2) // TEST chunk + END terminator
	assert.Equal(t, "END_CHUNK", repeat.Children[1].Pattern)
	assert.Equal(t, len(buf), tree.Root.Length)
}

func TestDecompose_SiblingAdjacency(t *testing.T) {
	reg := newTestRegistry(t)
	g, err := reg.Latest("CHUNKED")
	require.NoError(t, err)

	buf := chunkedFile(chunk("AAAA", []byte("one")), chunk("BBBB", []byte("two")))
	tree, err := New(reg, ModeStrict).Decompose(buf, g)
	require.NoError(t, err)

	var check func(el *pattern.Element)
	check = func(el *pattern.Element) {
		for i := 1; i < len(el.Children); i++ {
			assert.Equal(t, el.Children[i-1].End(), el.Children[i].Offset,
				"gap or overlap between children of %s", el.Pattern)
		}
		for _, c := range el.Children {
			check(c)
		}
	}
	check(tree.Root)
}

func TestDecompose_Deterministic(t *testing.T) {
	reg := newTestRegistry(t)
	g, err := reg.Latest("CHUNKED")
	require.NoError(t, err)

	buf := chunkedFile(chunk("TEST", []byte("abc")))
	d := New(reg, ModeStrict)

	first, err := d.Decompose(buf, g)
	require.NoError(t, err)
	second, err := d.Decompose(buf, g)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDecompose_LengthExceedsBuffer(t *testing.T) {
	reg := newTestRegistry(t)
	g, err := reg.Latest("CHUNKED")
	require.NoError(t, err)

	buf := chunkedFile(chunk("TEST", []byte("hello")))
	// Inflate the first chunk's declared length far past the buffer.
	buf[8] = 0xFF

	_, err = New(reg, ModeStrict).Decompose(buf, g)
	require.Error(t, err)

	var pe *pattern.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 8, pe.Offset) // the length field of the first chunk
}

func TestDecompose_BestEffortTruncatesWithWarning(t *testing.T) {
	reg := newTestRegistry(t)
	g, err := reg.Latest("CHUNKED")
	require.NoError(t, err)

	good := chunk("TEST", []byte("ok"))
	bad := []byte{'B', 'A', 'D', '!', 0xFF, 0xFF} // truncated garbage, no END
	buf := append([]byte("BINF"), good...)
	buf = append(buf, bad...)

	_, err = New(reg, ModeStrict).Decompose(buf, g)
	require.Error(t, err, "strict mode must abort")

	tree, err := New(reg, ModeBestEffort).Decompose(buf, g)
	require.NoError(t, err)
	assert.Equal(t, ModeBestEffort, tree.Mode)
	assert.NotEmpty(t, tree.Warnings, "truncation must be recorded, not hidden")

	repeat := tree.Root.Children[1]
	require.Len(t, repeat.Children, 1)
	assert.Equal(t, 4, repeat.Children[0].Offset)
}

func TestDecompose_TrailingBytesStrict(t *testing.T) {
	reg := newTestRegistry(t)
	g, err := reg.Latest("CHUNKED")
	require.NoError(t, err)

	buf := append(chunkedFile(), 0xDE, 0xAD)
	_, err = New(reg, ModeStrict).Decompose(buf, g)
	require.Error(t, err)
	assert.ErrorIs(t, err, pattern.ErrParse)
	assert.Contains(t, err.Error(), "trailing bytes")
}

func TestDecompose_UnknownPatternIsGrammarError(t *testing.T) {
	reg := newTestRegistry(t)
	g := &grammar.Grammar{
		Format:      "BROKEN",
		Version:     1,
		Composition: &grammar.Node{Pattern: "NO_SUCH"},
	}

	_, err := New(reg, ModeStrict).Decompose([]byte{1, 2, 3}, g)
	assert.ErrorIs(t, err, grammar.ErrGrammar)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("strict")
	require.NoError(t, err)
	assert.Equal(t, ModeStrict, m)

	m, err = ParseMode("best-effort")
	require.NoError(t, err)
	assert.Equal(t, ModeBestEffort, m)

	_, err = ParseMode("lenient")
	assert.Error(t, err)
}

func TestDocument_RoundTrip(t *testing.T) {
	reg := newTestRegistry(t)
	g, err := reg.Latest("CHUNKED")
	require.NoError(t, err)

	buf := chunkedFile(chunk("TEST", []byte{0x00, 0xFF, 0x80})) // non-UTF-8 payload
	tree, err := New(reg, ModeStrict).Decompose(buf, g)
	require.NoError(t, err)

	doc := tree.Record("abc123")
	assert.NotEmpty(t, doc.ID)

	data, err := doc.Marshal()
	require.NoError(t, err)

	again, err := ParseDocument(data)
	require.NoError(t, err)
	assert.Equal(t, doc.ID, again.ID)
	assert.Equal(t, tree.Root, again.Root)
}
