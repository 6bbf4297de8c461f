package memory

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"strings"
	"sync"

	"budget/internal/docstore"

	"github.com/google/uuid"
)

// Ensure interface conformance
var (
	_ docstore.DocumentStore = (*Store)(nil)
	_ docstore.Putter        = (*Store)(nil)
	_ docstore.Pinger        = (*Store)(nil)
)

type entry struct {
	id   string
	data docstore.Record
}

// Store keeps collections in process memory. Insertion order is preserved
// per collection, which makes List deterministic for tests.
type Store struct {
	mu          sync.Mutex
	collections map[string][]entry
	newID       func() string
}

func New() *Store {
	return &Store{
		collections: make(map[string][]entry),
		newID:       func() string { return uuid.NewString() },
	}
}

// NewFromFile seeds collection with one JSON object per line of path.
// Blank lines and lines starting with "#" are skipped; a missing file yields
// an empty store.
func NewFromFile(path, collection string) (*Store, error) {
	s := New()
	lines := readLines(path)
	for i, line := range lines {
		var rec docstore.Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("seed %s line %d: %w", path, i+1, err)
		}
		if _, err := s.Add(context.Background(), collection, rec); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add stores a copy of rec under a fresh UUID.
func (s *Store) Add(_ context.Context, collection string, rec docstore.Record) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	s.collections[collection] = append(s.collections[collection], entry{id: id, data: maps.Clone(rec)})
	return id, nil
}

// Put replaces or inserts the document with the given id.
func (s *Store) Put(_ context.Context, collection, id string, rec docstore.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.collections[collection]
	for i := range items {
		if items[i].id == id {
			items[i].data = maps.Clone(rec)
			return nil
		}
	}
	s.collections[collection] = append(items, entry{id: id, data: maps.Clone(rec)})
	return nil
}

func (s *Store) List(_ context.Context, collection string) ([]docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.collections[collection]
	out := make([]docstore.Document, 0, len(items))
	for _, it := range items {
		out = append(out, docstore.Document{ID: it.id, Data: maps.Clone(it.data)})
	}
	return out, nil
}

func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.collections[collection]
	for i := range items {
		if items[i].id == id {
			s.collections[collection] = append(items[:i:i], items[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("delete %s/%s: %w", collection, id, docstore.ErrNotFound)
}

func (s *Store) Ping(context.Context) error { return nil }

func readLines(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
