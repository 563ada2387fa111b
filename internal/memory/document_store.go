package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ragweaver/internal/model"
)

// DocumentStore keeps documents in-process. Used for local runs and tests.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]model.Document
}

func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]model.Document)}
}

func (s *DocumentStore) CreateDocument(_ context.Context, doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.docs[doc.ID]; exists {
		return fmt.Errorf("document %s already exists", doc.ID)
	}
	s.docs[doc.ID] = *doc
	return nil
}

// GetDocument returns nil when the document does not exist.
func (s *DocumentStore) GetDocument(_ context.Context, id string) (*model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, nil
	}
	return &doc, nil
}

func (s *DocumentStore) ListDocuments(_ context.Context) ([]model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]model.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		list = append(list, doc)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func (s *DocumentStore) DeleteDocument(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}
