package document

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/edwardbudaza/pdfchat/internal/domain"
	domdoc "github.com/edwardbudaza/pdfchat/internal/domain/document"
)

// MemoryStore keeps documents in process memory with the same uniqueness rules as SQLStore.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]domdoc.Document
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]domdoc.Document)}
}

// Create inserts a document unless id, file name, location or namespace is taken.
func (s *MemoryStore) Create(_ context.Context, doc domdoc.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.docs[doc.ID()]; ok {
		return fmt.Errorf("document %s: %w", doc.ID(), domain.ErrConflict)
	}
	for _, existing := range s.docs {
		switch {
		case existing.DisplayName() == doc.DisplayName(),
			existing.SourceLocation() == doc.SourceLocation(),
			existing.Namespace() == doc.Namespace():
			return fmt.Errorf("document %q: %w", doc.DisplayName(), domain.ErrConflict)
		}
	}
	s.docs[doc.ID()] = doc
	return nil
}

// Get returns a document by id or domain.ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, id string) (domdoc.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return domdoc.Document{}, domain.ErrNotFound
	}
	return doc, nil
}

// List returns every document, newest first.
func (s *MemoryStore) List(_ context.Context) ([]domdoc.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]domdoc.Document, 0, len(s.docs))
	for _, d := range s.docs {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool {
		if !docs[i].CreatedAt().Equal(docs[j].CreatedAt()) {
			return docs[i].CreatedAt().After(docs[j].CreatedAt())
		}
		return docs[i].ID() < docs[j].ID()
	})
	return docs, nil
}

// MarkProcessed flips processed false → true exactly once.
func (s *MemoryStore) MarkProcessed(_ context.Context, id string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.docs[id]
	if !ok {
		return domain.ErrNotFound
	}
	if doc.Processed() {
		return domain.ErrAlreadyProcessed
	}
	s.docs[id] = doc.MarkProcessed(now)
	return nil
}

// Delete removes a document; domain.ErrNotFound when absent.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.docs, id)
	return nil
}

// Ping always succeeds.
func (s *MemoryStore) Ping(_ context.Context) error { return nil }
