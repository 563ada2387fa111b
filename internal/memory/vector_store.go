package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"ragweaver/internal/model"
	"ragweaver/internal/pkg/similarity"
)

// VectorStore is a brute-force cosine store over chunks held in memory.
type VectorStore struct {
	mu     sync.RWMutex
	nextID uint
	chunks []model.Chunk
}

func NewVectorStore() *VectorStore {
	return &VectorStore{}
}

func (s *VectorStore) InsertChunk(_ context.Context, chunk *model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.chunks {
		if c.DocumentID == chunk.DocumentID && c.Index == chunk.Index {
			return fmt.Errorf("chunk %d of document %s already exists", chunk.Index, chunk.DocumentID)
		}
	}
	s.nextID++
	chunk.ID = s.nextID
	stored := *chunk
	stored.Embedding = append([]float32(nil), chunk.Embedding...)
	s.chunks = append(s.chunks, stored)
	return nil
}

func (s *VectorStore) Search(_ context.Context, embedding []float32, threshold float32, limit int) ([]model.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return similarity.Rank(embedding, s.chunks, threshold, limit), nil
}

func (s *VectorStore) DeleteByDocumentID(_ context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}
	s.chunks = kept
	return nil
}

func (s *VectorStore) CountByDocumentID(_ context.Context, documentID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, c := range s.chunks {
		if c.DocumentID == documentID {
			n++
		}
	}
	return n, nil
}

// Chunks returns a copy of the chunks of a document in index order.
func (s *VectorStore) Chunks(documentID string) []model.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Chunk
	for _, c := range s.chunks {
		if c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Index < out[j].Index
	})
	return out
}
