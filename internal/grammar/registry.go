package grammar

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kilupskalvis/binform/internal/pattern"
)

// Registry resolves grammars by format and version. It embeds the pattern
// registry so a single object carries the whole catalog; construct one per
// process (or per test) and pass it by reference.
type Registry struct {
	Patterns *pattern.Registry

	mu       sync.RWMutex
	grammars map[string]*Grammar // key: "FORMAT/version"
	latest   map[string]int
}

// NewRegistry returns a registry seeded with the builtin pattern catalog
// and the builtin grammars.
func NewRegistry() (*Registry, error) {
	r := &Registry{
		Patterns: pattern.NewRegistry(),
		grammars: make(map[string]*Grammar),
		latest:   make(map[string]int),
	}
	for _, g := range Builtins() {
		if err := r.Add(g); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add validates and registers a grammar. Registering the same
// format/version twice is refused — stored grammars never change, new
// revisions get new version numbers.
func (r *Registry) Add(g *Grammar) error {
	if err := g.Validate(r.Patterns); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.grammars[g.Ref()]; exists {
		return grammarErrf(g.Format, "version %d already registered", g.Version)
	}
	r.grammars[g.Ref()] = g
	if g.Version > r.latest[g.Format] {
		r.latest[g.Format] = g.Version
	}
	return nil
}

// Get returns one exact grammar version.
func (r *Registry) Get(format string, version int) (*Grammar, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.grammars[fmt.Sprintf("%s/%d", format, version)]
	if !ok {
		return nil, grammarErrf(format, "version %d not registered", version)
	}
	return g, nil
}

// Latest returns the highest registered version of a format.
func (r *Registry) Latest(format string) (*Grammar, error) {
	r.mu.RLock()
	version, ok := r.latest[format]
	r.mu.RUnlock()
	if !ok {
		return nil, grammarErrf(format, "not registered")
	}
	return r.Get(format, version)
}

// All returns every registered grammar, sorted by format then version.
func (r *Registry) All() []*Grammar {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Grammar, 0, len(r.grammars))
	for _, g := range r.grammars {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Format != out[j].Format {
			return out[i].Format < out[j].Format
		}
		return out[i].Version < out[j].Version
	})
	return out
}
