package cas

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Store is the content-addressed store facade: filesystem payloads, the
// sqlite catalog/similarity index, and the symbolic ref namespace.
//
// Loads and similarity queries are side-effect-free and may run
// concurrently; writes are serialized so storing a hash that already
// exists is an observable idempotent no-op, never a race on the bucket
// index.
type Store struct {
	fs     *FSStore
	index  *Index
	refs   *RefStore
	logger *slog.Logger

	writeMu sync.Mutex
}

// Open opens a store over the given object tree, index database and refs
// namespace, creating them as needed.
func Open(objectsDir, indexPath, refsDir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	fs, err := NewFSStore(objectsDir)
	if err != nil {
		return nil, err
	}
	index, err := OpenIndex(indexPath)
	if err != nil {
		return nil, err
	}
	refs, err := NewRefStore(refsDir)
	if err != nil {
		index.Close()
		return nil, err
	}
	return &Store{fs: fs, index: index, refs: refs, logger: logger}, nil
}

// Close releases the index database.
func (s *Store) Close() error {
	return s.index.Close()
}

// PutResult reports the outcome of a store operation.
type PutResult struct {
	ExactHash      string
	SimilarityHash SimilarityHash
	Existed        bool
}

// Put stores a payload. Idempotent on the exact hash: byte-identical
// payloads share one physical entry, and the original metadata wins.
func (s *Store) Put(ctx context.Context, payload []byte, typ ObjectType,
	features *StructuralFeatures, metadata map[string]string) (*PutResult, error) {

	exact := ExactHash(payload)
	sim := ComputeSimilarity(payload, features)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	existed, err := s.fs.Has(typ, exact)
	if err != nil {
		return nil, err
	}
	if existed {
		// Deduplicated. Return the hashes of the existing entry. The index
		// insert is idempotent, so re-running it repairs a row lost to an
		// earlier failure between the payload write and the index write.
		_, obj, err := s.fs.Get(typ, exact)
		if err != nil {
			return nil, err
		}
		prior, err := ParseSimilarity(obj.SimilarityHash)
		if err != nil {
			return nil, err
		}
		if err := s.index.Add(ctx, obj); err != nil {
			return nil, err
		}
		return &PutResult{ExactHash: exact, SimilarityHash: prior, Existed: true}, nil
	}

	obj := &ContentObject{
		ExactHash:      exact,
		SimilarityHash: sim.String(),
		Type:           typ,
		Size:           len(payload),
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.fs.Put(obj, payload); err != nil {
		return nil, err
	}
	if err := s.index.Add(ctx, obj); err != nil {
		return nil, err
	}

	s.logger.Debug("stored object",
		"type", string(typ), "hash", ShortHash(exact),
		"similarity", sim.String(), "size", len(payload))
	return &PutResult{ExactHash: exact, SimilarityHash: sim}, nil
}

// Load returns an object's payload and metadata, verifying the payload
// against its address.
func (s *Store) Load(ctx context.Context, typ ObjectType, exactHash string) ([]byte, *ContentObject, error) {
	return s.fs.Get(typ, exactHash)
}

// SimilarMatch is one ranked result of a similarity query.
type SimilarMatch struct {
	ExactHash string
	Score     float64
	Metadata  map[string]string
}

// FindSimilar returns indexed objects whose similarity hash matches the
// query in at least threshold fraction of fields, best first. Only the
// bucket keyed by the query's prefix is scanned.
func (s *Store) FindSimilar(ctx context.Context, typ ObjectType, h SimilarityHash, threshold float64) ([]SimilarMatch, error) {
	entries, err := s.index.Bucket(ctx, typ, h.Bucket())
	if err != nil {
		return nil, err
	}

	var matches []SimilarMatch
	for _, e := range entries {
		score := Score(h, e.SimilarityHash)
		if score >= threshold {
			matches = append(matches, SimilarMatch{ExactHash: e.ExactHash, Score: score, Metadata: e.Metadata})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ExactHash < matches[j].ExactHash
	})
	return matches, nil
}

// Count returns the number of physical entries of one type.
func (s *Store) Count(ctx context.Context, typ ObjectType) (int, error) {
	return s.index.Count(ctx, typ)
}

// ListObjects returns the catalog rows for one type, newest first.
func (s *Store) ListObjects(ctx context.Context, typ ObjectType) ([]*ContentObject, error) {
	return s.index.ListObjects(ctx, typ)
}

// SetRef points a symbolic ref at an exact hash.
func (s *Store) SetRef(name, hash string) error {
	return s.refs.Set(name, hash)
}

// ResolveRef returns the hash a symbolic ref points at.
func (s *Store) ResolveRef(name string) (string, error) {
	return s.refs.Resolve(name)
}

// ListRefs returns all symbolic refs.
func (s *Store) ListRefs() ([]Ref, error) {
	return s.refs.List()
}
