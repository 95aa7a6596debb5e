package record

import (
	"context"
	"errors"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const testSchema = `{
	"type": "object",
	"required": ["name"],
	"properties": {
		"name": {"type": "string"}
	}
}`

func mustCompileSchema(t *testing.T) *jsonschema.Schema {
	t.Helper()
	schema, err := jsonschema.CompileString("memory://test-schema.json", testSchema)
	if err != nil {
		t.Fatalf("failed to compile test schema: %v", err)
	}
	return schema
}

func TestPutGetRoundTrip(t *testing.T) {
	s := NewStore(mustCompileSchema(t), 6)
	doc := []byte(`{"name": "alice"}`)

	if err := s.Put(context.Background(), "/users/alice", doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok := s.Get("/users/alice")
	if !ok {
		t.Fatal("expected document to be present")
	}
	if string(got) != string(doc) {
		t.Fatalf("got %s want %s", got, doc)
	}
}

func TestPutRejectsSchemaViolation(t *testing.T) {
	s := NewStore(mustCompileSchema(t), 6)
	err := s.Put(context.Background(), "/users/bob", []byte(`{"age": 5}`))
	if !errors.Is(err, ErrSchemaViolation) {
		t.Fatalf("expected ErrSchemaViolation, got %v", err)
	}
	if _, ok := s.Get("/users/bob"); ok {
		t.Fatal("a rejected document must not be stored")
	}
}

func TestPutRejectsMalformedJSON(t *testing.T) {
	s := NewStore(mustCompileSchema(t), 6)
	err := s.Put(context.Background(), "/users/bob", []byte(`not json`))
	if err == nil {
		t.Fatal("expected an error for malformed JSON")
	}
}

func TestPutConflict(t *testing.T) {
	s := NewStore(mustCompileSchema(t), 6)
	doc := []byte(`{"name": "alice"}`)

	if err := s.Put(context.Background(), "/users/alice", doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := s.Put(context.Background(), "/users/alice", []byte(`{"name": "mallory"}`))
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, _ := s.Get("/users/alice")
	if string(got) != string(doc) {
		t.Fatal("conflicting Put must not overwrite the stored document")
	}
}

func TestDelete(t *testing.T) {
	s := NewStore(mustCompileSchema(t), 6)
	if err := s.Put(context.Background(), "/users/alice", []byte(`{"name": "alice"}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !s.Delete("/users/alice") {
		t.Fatal("expected Delete to succeed")
	}
	if _, ok := s.Get("/users/alice"); ok {
		t.Fatal("deleted document must not be retrievable")
	}
	if s.Delete("/users/alice") {
		t.Fatal("deleting an absent document should report false")
	}
}

func TestPutCanceledContext(t *testing.T) {
	s := NewStore(mustCompileSchema(t), 6)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Put(ctx, "/users/alice", []byte(`{"name": "alice"}`))
	if err == nil {
		t.Fatal("expected an error for a canceled context")
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestLenTracksDocuments(t *testing.T) {
	s := NewStore(mustCompileSchema(t), 6)
	for i, name := range []string{"alice", "bob", "carol"} {
		path := []string{"/users/alice", "/users/bob", "/users/carol"}[i]
		if err := s.Put(context.Background(), path, []byte(`{"name": "`+name+`"}`)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if s.Len() != 3 {
		t.Fatalf("expected 3, got %d", s.Len())
	}
	s.Delete("/users/bob")
	if s.Len() != 2 {
		t.Fatalf("expected 2, got %d", s.Len())
	}
}
