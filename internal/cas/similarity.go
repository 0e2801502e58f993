package cas

import (
	"encoding/hex"
	"fmt"
	"math"
)

// SimFields is the number of independent 4-bit fields in a similarity
// hash. The rendered form is one hex character per field.
const SimFields = 8

// Field positions within the similarity hash.
const (
	simEntropy    = 0 // quantized Shannon entropy of the payload
	simNegentropy = 1 // structuredness: max entropy minus actual entropy
	simFieldCount = 2 // structural feature: number of leaf fields
	simDiversity  = 3 // structural feature: distinct pattern kinds
	simRepeats    = 4 // structural feature: repetition flag
	simDepth      = 5 // structural feature: nesting depth
	simCheckHi    = 6 // low-order payload checksum, high nibble
	simCheckLo    = 7 // low-order payload checksum, low nibble
)

// StructuralFeatures are caller-supplied shape hints folded into the
// similarity hash. They are optional — raw files have none.
type StructuralFeatures struct {
	FieldCount    int
	TypeDiversity int
	Repeats       bool
	Depth         int
}

// SimilarityHash is a fixed-width composite fingerprint used for fuzzy
// nearest-neighbor discovery. It is not cryptographic and not unique;
// never use it for identity.
type SimilarityHash [SimFields]uint8

// ComputeSimilarity derives the similarity hash of a payload plus optional
// structural features.
func ComputeSimilarity(payload []byte, f *StructuralFeatures) SimilarityHash {
	var h SimilarityHash

	e := entropy(payload)
	h[simEntropy] = quantize(e, 8)
	h[simNegentropy] = quantize(8-e, 8)

	if f != nil {
		h[simFieldCount] = clampNibble(f.FieldCount)
		h[simDiversity] = clampNibble(f.TypeDiversity)
		if f.Repeats {
			h[simRepeats] = 1
		}
		h[simDepth] = clampNibble(f.Depth)
	}

	var sum int
	for _, b := range payload {
		sum += int(b)
	}
	h[simCheckHi] = uint8(sum>>4) & 0x0F
	h[simCheckLo] = uint8(sum) & 0x0F
	return h
}

// Score returns the fraction of matching fields between two similarity
// hashes. It is symmetric, 1.0 for identical hashes.
func Score(a, b SimilarityHash) float64 {
	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(SimFields)
}

// Bucket returns the index bucket key: the first two hex characters.
// Bucketing by a fixed-width prefix keeps similarity queries from
// scanning the whole store.
func (h SimilarityHash) Bucket() string {
	return h.String()[:2]
}

func (h SimilarityHash) String() string {
	out := make([]byte, SimFields)
	const digits = "0123456789abcdef"
	for i, v := range h {
		out[i] = digits[v&0x0F]
	}
	return string(out)
}

// ParseSimilarity decodes the rendered form of a similarity hash.
func ParseSimilarity(s string) (SimilarityHash, error) {
	var h SimilarityHash
	if len(s) != SimFields {
		return h, fmt.Errorf("similarity hash must be %d hex characters, got %q", SimFields, s)
	}
	for i := 0; i < SimFields; i++ {
		b, err := hex.DecodeString("0" + s[i:i+1])
		if err != nil {
			return h, fmt.Errorf("similarity hash %q: %w", s, err)
		}
		h[i] = b[0]
	}
	return h, nil
}

// entropy computes Shannon entropy of the payload in bits per byte
// (0 for empty or uniform payloads, up to 8 for uniformly random ones).
func entropy(payload []byte) float64 {
	if len(payload) == 0 {
		return 0
	}
	var counts [256]int
	for _, b := range payload {
		counts[b]++
	}
	total := float64(len(payload))
	var e float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / total
		e -= p * math.Log2(p)
	}
	return e
}

// quantize maps a value in [0, max] onto a nibble.
func quantize(v, max float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= max {
		return 15
	}
	return uint8(v / max * 15)
}

func clampNibble(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 15 {
		return 15
	}
	return uint8(v)
}
