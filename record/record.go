// Package record layers a schema-validated JSON document store on top of
// the skiplist package: paths are hashed into the uint64 key space the
// skip list actually orders on, and every document is checked against a
// compiled JSON schema before it is allowed into the map.
package record

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/arvehren/ordermap/pathcodec"
	"github.com/arvehren/ordermap/skiplist"
)

// ErrSchemaViolation is returned when a document fails schema validation.
var ErrSchemaViolation = errors.New("record: document does not conform to schema")

// ErrConflict is returned by Put when a document already exists at path.
// The underlying skip list never overwrites on collision, and Store
// preserves that contract rather than silently replacing the value.
var ErrConflict = errors.New("record: a document already exists at this path")

// Store is a schema-validated document store keyed by path.
type Store struct {
	schema *jsonschema.Schema
	list   *skiplist.SkipList
}

// NewStore builds an empty store whose documents will be validated against
// schema before being admitted.
func NewStore(schema *jsonschema.Schema, maxLevel int) *Store {
	return &Store{schema: schema, list: skiplist.New(maxLevel)}
}

// pathKey hashes a document path into the skip list's uint64 key space
// with 64-bit FNV-1a. Collisions between distinct paths are possible in
// principle but astronomically unlikely for any realistic path set, and
// are not distinguished from a genuine conflict — exactly as any hashed
// key space makes no promise against an adversarial namespace.
func pathKey(path string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(path))
	return h.Sum64()
}

// Put validates doc against the store's schema and inserts it at path. It
// returns ErrConflict if a document already exists there, and
// ErrSchemaViolation if doc fails validation. ctx only bounds the
// validation step; the skip list insert itself is not cancelable, since the
// core skiplist package takes no context at all.
func (s *Store) Put(ctx context.Context, path string, doc []byte) error {
	path, err := pathcodec.Decode(path)
	if err != nil {
		return fmt.Errorf("record: %w", err)
	}
	key := pathKey(path)
	slog.Debug("record put", "path", path, "key", key)

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("record: put canceled before validation: %w", err)
	}

	var decoded any
	if err := json.Unmarshal(doc, &decoded); err != nil {
		return fmt.Errorf("record: invalid JSON at %q: %w", path, err)
	}

	if err := s.schema.Validate(decoded); err != nil {
		slog.Warn("record: schema violation", "path", path, "error", err)
		return fmt.Errorf("%w: %s: %v", ErrSchemaViolation, path, err)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("record: put canceled after validation: %w", err)
	}

	if !s.list.Insert(key, doc) {
		return fmt.Errorf("%w: %s", ErrConflict, path)
	}
	return nil
}

// Get returns the document stored at path, if any. A path that fails to
// decode matches nothing, since Put would have rejected it before storage.
func (s *Store) Get(path string) ([]byte, bool) {
	path, err := pathcodec.Decode(path)
	if err != nil {
		return nil, false
	}
	return s.list.Value(pathKey(path))
}

// Delete removes the document at path, if any.
func (s *Store) Delete(path string) bool {
	path, err := pathcodec.Decode(path)
	if err != nil {
		return false
	}
	key := pathKey(path)
	slog.Debug("record delete", "path", path, "key", key)
	return s.list.Erase(key)
}

// Len returns the number of documents currently stored.
func (s *Store) Len() int {
	return s.list.Len()
}
