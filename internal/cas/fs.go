package cas

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FSStore keeps object payloads on the local filesystem, grouped by type
// and then by a two-character prefix of the exact hash:
//
//	<root>/<type>/<hh>/<rest-of-hash>       payload
//	<root>/<type>/<hh>/<rest-of-hash>.meta  ContentObject record
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem object store rooted at the directory.
func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create object root: %w", err)
	}
	return &FSStore{root: root}, nil
}

// Has checks whether an object exists.
func (s *FSStore) Has(typ ObjectType, hash string) (bool, error) {
	if !ValidHash(hash) {
		return false, nil
	}
	_, err := os.Stat(s.payloadPath(typ, hash))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat object %s: %w", ShortHash(hash), err)
	}
	return true, nil
}

// Get reads an object's payload and metadata record. The payload is
// verified against its address; a mismatch is fatal.
func (s *FSStore) Get(typ ObjectType, hash string) ([]byte, *ContentObject, error) {
	if !ValidHash(hash) {
		return nil, nil, ErrNotFound
	}
	payload, err := os.ReadFile(s.payloadPath(typ, hash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("read object %s: %w", ShortHash(hash), err)
	}
	if got := ExactHash(payload); got != hash {
		return nil, nil, fmt.Errorf("object %s hashes to %s: %w",
			ShortHash(hash), ShortHash(got), ErrHashMismatch)
	}

	metaData, err := os.ReadFile(s.metaPath(typ, hash))
	if err != nil {
		return nil, nil, fmt.Errorf("read object meta %s: %w", ShortHash(hash), err)
	}
	var obj ContentObject
	if err := json.Unmarshal(metaData, &obj); err != nil {
		return nil, nil, fmt.Errorf("parse object meta %s: %w", ShortHash(hash), err)
	}
	return payload, &obj, nil
}

// Put stores a payload and its metadata record. Idempotent — if the
// object already exists this is a no-op.
func (s *FSStore) Put(obj *ContentObject, payload []byte) error {
	hash := obj.ExactHash
	if !ValidHash(hash) {
		return fmt.Errorf("invalid object hash: %q", hash)
	}
	payloadPath := s.payloadPath(obj.Type, hash)

	if _, err := os.Stat(payloadPath); err == nil {
		return nil // idempotent
	}

	dir := filepath.Dir(payloadPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}

	// Write to a temp file, verify the address, rename into place.
	tmp, err := os.CreateTemp(dir, ".obj-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write object payload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if got := ExactHash(payload); got != hash {
		os.Remove(tmpPath)
		return fmt.Errorf("expected %s, got %s: %w", ShortHash(hash), ShortHash(got), ErrHashMismatch)
	}

	if err := os.Rename(tmpPath, payloadPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename object: %w", err)
	}

	metaData, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("marshal object meta: %w", err)
	}
	if err := os.WriteFile(s.metaPath(obj.Type, hash), metaData, 0644); err != nil {
		return fmt.Errorf("write object meta: %w", err)
	}
	return nil
}

// Count returns the number of stored objects of one type.
func (s *FSStore) Count(typ ObjectType) (int, error) {
	hashes, err := s.ListHashes(typ)
	return len(hashes), err
}

// ListHashes returns all object hashes of one type by scanning the tree.
func (s *FSStore) ListHashes(typ ObjectType) ([]string, error) {
	typeRoot := filepath.Join(s.root, string(typ))
	if _, err := os.Stat(typeRoot); os.IsNotExist(err) {
		return nil, nil
	}

	var hashes []string
	err := filepath.Walk(typeRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || strings.HasSuffix(path, ".meta") || strings.HasPrefix(info.Name(), ".") {
			return nil
		}
		rel, err := filepath.Rel(typeRoot, path)
		if err != nil {
			return nil
		}
		parts := strings.Split(rel, string(filepath.Separator))
		if len(parts) == 2 {
			hashes = append(hashes, parts[0]+parts[1])
		}
		return nil
	})
	return hashes, err
}

func (s *FSStore) payloadPath(typ ObjectType, hash string) string {
	return filepath.Join(s.root, string(typ), hash[:2], hash[2:])
}

func (s *FSStore) metaPath(typ ObjectType, hash string) string {
	return s.payloadPath(typ, hash) + ".meta"
}
