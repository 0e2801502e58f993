// Package pattern implements the library of structural primitives used to
// decompose and reconstruct binary formats. Each pattern knows how to match
// bytes at an offset into a decoded Element and how to re-serialize an
// Element back into the exact bytes it was matched from.
package pattern

import (
	"fmt"
	"sort"
	"sync"
)

// Kind identifies a pattern type. The catalog is closed — every kind is
// known at compile time and dispatched through the Pattern interface.
type Kind string

const (
	KindMagicNumber      Kind = "MAGIC_NUMBER"
	KindLengthPrefixed   Kind = "LENGTH_PREFIXED_DATA"
	KindTypedChunk       Kind = "TYPED_CHUNK"
	KindHeaderBody       Kind = "HEADER_BODY"
	KindChainedDirectory Kind = "CHAINED_DIRECTORY"
	KindKeyValue         Kind = "KEY_VALUE"
	KindSequential       Kind = "SEQUENTIAL_STRUCTURE"
)

// Pattern is the contract shared by every structural primitive.
//
// Match consumes zero or more bytes starting at offset and returns the
// decoded Element, or a *ParseError carrying the offending offset.
// Reconstruct is the strict inverse of Match: given the element Match
// produced, it emits byte-identical output — except for computed fields
// (lengths, checksums), which are recomputed from the other fields rather
// than replayed.
type Pattern interface {
	Name() string
	Kind() Kind
	Match(buf []byte, offset int) (*Element, error)
	Reconstruct(el *Element) ([]byte, error)
}

// Constructor builds a pattern instance from declarative parameters,
// typically taken from a grammar composition node.
type Constructor func(params Params) (Pattern, error)

// Registry maps pattern kinds to constructors. It is explicitly
// constructed and passed by reference — there is no ambient global
// registry, so tests can build isolated catalogs.
type Registry struct {
	mu    sync.RWMutex
	kinds map[Kind]Constructor
}

// NewRegistry returns a registry seeded with the builtin pattern catalog.
func NewRegistry() *Registry {
	r := &Registry{kinds: make(map[Kind]Constructor)}
	r.RegisterKind(KindMagicNumber, NewMagicNumber)
	r.RegisterKind(KindLengthPrefixed, NewLengthPrefixed)
	r.RegisterKind(KindTypedChunk, NewTypedChunk)
	r.RegisterKind(KindHeaderBody, NewHeaderBody)
	r.RegisterKind(KindChainedDirectory, NewChainedDirectory)
	r.RegisterKind(KindKeyValue, NewKeyValue)
	r.RegisterKind(KindSequential, newSequentialFromParams)
	return r
}

// RegisterKind registers a constructor for a pattern kind, replacing any
// previous registration.
func (r *Registry) RegisterKind(kind Kind, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[kind] = c
}

// Knows reports whether the registry has a constructor for the kind.
func (r *Registry) Knows(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.kinds[kind]
	return ok
}

// Construct builds a pattern of the given kind from parameters.
func (r *Registry) Construct(kind Kind, params Params) (Pattern, error) {
	r.mu.RLock()
	c, ok := r.kinds[kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown pattern kind %q", kind)
	}
	return c(params)
}

// Kinds returns the registered kinds in sorted order.
func (r *Registry) Kinds() []Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]Kind, 0, len(r.kinds))
	for k := range r.kinds {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
