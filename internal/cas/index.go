package cas

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"
)

// Index is the sqlite-backed catalog and similarity index. The catalog
// row per object carries both hashes and metadata; the similarity rows are
// grouped by bucket so a FindSimilar query scans one bucket, not the
// whole store.
type Index struct {
	db *sql.DB
}

// OpenIndex opens (or creates) the index database.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}
	ix := &Index{db: db}
	if err := ix.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return ix, nil
}

// Close closes the database connection.
func (ix *Index) Close() error {
	return ix.db.Close()
}

func (ix *Index) initialize() error {
	schema := `
	-- Object catalog: one row per stored object
	CREATE TABLE IF NOT EXISTS objects (
		object_type TEXT NOT NULL,
		exact_hash TEXT NOT NULL,
		similarity_hash TEXT NOT NULL,
		size INTEGER NOT NULL,
		metadata JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (object_type, exact_hash)
	);

	-- Similarity index, bucketed by hash prefix
	CREATE TABLE IF NOT EXISTS similarity_index (
		object_type TEXT NOT NULL,
		bucket TEXT NOT NULL,
		similarity_hash TEXT NOT NULL,
		exact_hash TEXT NOT NULL,
		PRIMARY KEY (object_type, bucket, exact_hash)
	);

	CREATE INDEX IF NOT EXISTS idx_similarity_bucket
		ON similarity_index(object_type, bucket);
	`
	if _, err := ix.db.Exec(schema); err != nil {
		return fmt.Errorf("initialize index schema: %w", err)
	}
	return nil
}

// Add records an object in the catalog and its similarity bucket.
// Idempotent per (type, exact hash).
func (ix *Index) Add(ctx context.Context, obj *ContentObject) error {
	metadata, err := json.Marshal(obj.Metadata)
	if err != nil {
		return fmt.Errorf("marshal object metadata: %w", err)
	}

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin index transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO objects (object_type, exact_hash, similarity_hash, size, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		string(obj.Type), obj.ExactHash, obj.SimilarityHash, obj.Size, string(metadata), obj.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert object row: %w", err)
	}

	sim, err := ParseSimilarity(obj.SimilarityHash)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO similarity_index (object_type, bucket, similarity_hash, exact_hash)
		VALUES (?, ?, ?, ?)`,
		string(obj.Type), sim.Bucket(), obj.SimilarityHash, obj.ExactHash)
	if err != nil {
		return fmt.Errorf("insert similarity row: %w", err)
	}

	return tx.Commit()
}

// IndexEntry is one row of a similarity bucket.
type IndexEntry struct {
	ExactHash      string
	SimilarityHash SimilarityHash
	Metadata       map[string]string
}

// Bucket returns all entries in one similarity bucket, joined with their
// catalog metadata. An index row without a catalog row means the store's
// invariants were violated.
func (ix *Index) Bucket(ctx context.Context, typ ObjectType, bucket string) ([]IndexEntry, error) {
	rows, err := ix.db.QueryContext(ctx, `
		SELECT s.exact_hash, s.similarity_hash, o.metadata
		FROM similarity_index s
		LEFT JOIN objects o
			ON o.object_type = s.object_type AND o.exact_hash = s.exact_hash
		WHERE s.object_type = ? AND s.bucket = ?`,
		string(typ), bucket)
	if err != nil {
		return nil, fmt.Errorf("query similarity bucket: %w", err)
	}
	defer rows.Close()

	var entries []IndexEntry
	for rows.Next() {
		var exact, simStr string
		var metadata sql.NullString
		if err := rows.Scan(&exact, &simStr, &metadata); err != nil {
			return nil, fmt.Errorf("scan similarity row: %w", err)
		}
		if !metadata.Valid {
			return nil, fmt.Errorf("index row %s has no catalog entry: %w", ShortHash(exact), ErrIndexCorrupt)
		}
		sim, err := ParseSimilarity(simStr)
		if err != nil {
			return nil, fmt.Errorf("index row %s: %v: %w", ShortHash(exact), err, ErrIndexCorrupt)
		}
		entry := IndexEntry{ExactHash: exact, SimilarityHash: sim}
		if metadata.String != "" && metadata.String != "null" {
			if err := json.Unmarshal([]byte(metadata.String), &entry.Metadata); err != nil {
				return nil, fmt.Errorf("index row %s metadata: %v: %w", ShortHash(exact), err, ErrIndexCorrupt)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Count returns the number of catalog rows for one type.
func (ix *Index) Count(ctx context.Context, typ ObjectType) (int, error) {
	var n int
	err := ix.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM objects WHERE object_type = ?`, string(typ)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count objects: %w", err)
	}
	return n, nil
}

// ListObjects returns the catalog rows for one type, newest first.
func (ix *Index) ListObjects(ctx context.Context, typ ObjectType) ([]*ContentObject, error) {
	rows, err := ix.db.QueryContext(ctx, `
		SELECT exact_hash, similarity_hash, size, metadata, created_at
		FROM objects WHERE object_type = ?
		ORDER BY created_at DESC, exact_hash`, string(typ))
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	defer rows.Close()

	var objects []*ContentObject
	for rows.Next() {
		obj := &ContentObject{Type: typ}
		var metadata sql.NullString
		if err := rows.Scan(&obj.ExactHash, &obj.SimilarityHash, &obj.Size, &metadata, &obj.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan object row: %w", err)
		}
		if metadata.Valid && metadata.String != "" && metadata.String != "null" {
			if err := json.Unmarshal([]byte(metadata.String), &obj.Metadata); err != nil {
				return nil, fmt.Errorf("object %s metadata: %w", obj.ShortID(), err)
			}
		}
		objects = append(objects, obj)
	}
	return objects, rows.Err()
}
