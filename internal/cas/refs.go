package cas

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// validRefName matches symbolic ref names like "grammar/PNG/latest".
// Path separators are allowed (they become directories); traversal is not.
var validRefName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/-]*$`)

// RefStore maps human-readable names to exact hashes. Unlike the objects
// they point at, refs are mutable: repointing a ref is how "FORMAT/latest"
// moves forward as new grammar versions are stored.
type RefStore struct {
	root string
}

// NewRefStore creates a ref namespace rooted at the directory.
func NewRefStore(root string) (*RefStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create refs root: %w", err)
	}
	return &RefStore{root: root}, nil
}

// Set points a ref at an exact hash, creating or repointing it.
func (r *RefStore) Set(name, hash string) error {
	if err := checkRefName(name); err != nil {
		return err
	}
	if !ValidHash(hash) {
		return fmt.Errorf("ref %s: invalid target hash %q", name, hash)
	}
	path := filepath.Join(r.root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create ref dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(hash+"\n"), 0644); err != nil {
		return fmt.Errorf("write ref %s: %w", name, err)
	}
	return nil
}

// Resolve returns the exact hash a ref points at.
func (r *RefStore) Resolve(name string) (string, error) {
	if err := checkRefName(name); err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(r.root, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("ref %s: %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("read ref %s: %w", name, err)
	}
	hash := strings.TrimSpace(string(data))
	if !ValidHash(hash) {
		return "", fmt.Errorf("ref %s holds %q: %w", name, hash, ErrIndexCorrupt)
	}
	return hash, nil
}

// Ref is one name -> hash mapping.
type Ref struct {
	Name string
	Hash string
}

// List returns all refs sorted by name.
func (r *RefStore) List() ([]Ref, error) {
	var refs []Ref
	err := filepath.Walk(r.root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(r.root, path)
		if err != nil {
			return nil
		}
		name := filepath.ToSlash(rel)
		hash, err := r.Resolve(name)
		if err != nil {
			return err
		}
		refs = append(refs, Ref{Name: name, Hash: hash})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	return refs, nil
}

func checkRefName(name string) error {
	if !validRefName.MatchString(name) || strings.Contains(name, "..") {
		return fmt.Errorf("%q: %w", name, ErrBadRef)
	}
	return nil
}
