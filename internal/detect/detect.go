// Package detect proposes candidate grammars for an unidentified buffer.
// It never picks a format silently: callers get a ranked candidate list
// and choose which grammar to decompose with.
package detect

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/kilupskalvis/binform/internal/cas"
	"github.com/kilupskalvis/binform/internal/grammar"
	"github.com/kilupskalvis/binform/internal/pattern"
)

// Detection methods, in order of confidence.
const (
	MethodMagic      = "magic"
	MethodSimilarity = "similarity"
)

// DefaultThreshold is the minimum similarity score for fallback candidates.
const DefaultThreshold = 0.75

// Candidate is one proposed grammar for a buffer. Magic matches score a
// flat 1.0; similarity candidates carry the index score and the stored
// grammar object's hash.
type Candidate struct {
	Format  string  `json:"format"`
	Version int     `json:"version"`
	Score   float64 `json:"score"`
	Method  string  `json:"method"`
	Hash    string  `json:"hash,omitempty"`
}

// Detector runs the two-pass format identification: exact magic-number
// matches over every registered grammar's entry pattern, then a similarity
// query against stored grammar objects when no magic matches.
type Detector struct {
	reg       *grammar.Registry
	store     *cas.Store
	threshold float64
	logger    *slog.Logger
}

// New returns a detector over the registry and store. The store may be nil,
// which disables the similarity fallback. A non-positive threshold means
// DefaultThreshold.
func New(reg *grammar.Registry, store *cas.Store, threshold float64) *Detector {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Detector{reg: reg, store: store, threshold: threshold, logger: slog.Default()}
}

// WithLogger replaces the detector's logger.
func (d *Detector) WithLogger(logger *slog.Logger) *Detector {
	d.logger = logger
	return d
}

// Detect returns ranked candidate grammars for the buffer. An empty list
// with a nil error means no registered or stored grammar resembles it.
func (d *Detector) Detect(ctx context.Context, buf []byte) ([]Candidate, error) {
	candidates := d.magicPass(buf)
	if len(candidates) > 0 {
		d.logger.Debug("format detected by magic", "candidates", len(candidates))
		return candidates, nil
	}
	return d.similarityPass(ctx, buf)
}

// magicPass tries every registered grammar's entry magic pattern against
// the start of the buffer. Grammars are probed concurrently; each probe
// reads the shared buffer and appends under the lock.
func (d *Detector) magicPass(buf []byte) []Candidate {
	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		candidates []Candidate
	)
	for _, g := range d.reg.All() {
		entry := g.EntryMagic()
		if entry == nil {
			continue
		}
		wg.Add(1)
		go func(g *grammar.Grammar, entry *grammar.Node) {
			defer wg.Done()
			p, err := d.reg.Patterns.Construct(pattern.Kind(entry.Pattern), pattern.Params(entry.Params))
			if err != nil {
				return
			}
			if _, err := p.Match(buf, 0); err != nil {
				return
			}
			mu.Lock()
			candidates = append(candidates, Candidate{
				Format:  g.Format,
				Version: g.Version,
				Score:   1.0,
				Method:  MethodMagic,
			})
			mu.Unlock()
		}(g, entry)
	}
	wg.Wait()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Format != candidates[j].Format {
			return candidates[i].Format < candidates[j].Format
		}
		return candidates[i].Version > candidates[j].Version
	})
	return candidates
}

// similarityPass queries the similarity index over stored grammar objects
// with the buffer's own fingerprint.
func (d *Detector) similarityPass(ctx context.Context, buf []byte) ([]Candidate, error) {
	if d.store == nil {
		return nil, nil
	}
	sim := cas.ComputeSimilarity(buf, nil)
	matches, err := d.store.FindSimilar(ctx, cas.TypeGrammar, sim, d.threshold)
	if err != nil {
		return nil, err
	}

	var candidates []Candidate
	for _, m := range matches {
		c := Candidate{
			Score:  m.Score,
			Method: MethodSimilarity,
			Hash:   m.ExactHash,
			Format: m.Metadata["format"],
		}
		if v, err := strconv.Atoi(m.Metadata["version"]); err == nil {
			c.Version = v
		}
		candidates = append(candidates, c)
	}
	d.logger.Debug("similarity fallback", "threshold", d.threshold, "candidates", len(candidates))
	return candidates, nil
}
