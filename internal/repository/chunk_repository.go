package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"ragweaver/internal/model"
	"ragweaver/internal/pkg/similarity"
)

// ChunkRepository keeps chunks in MySQL and scores them in process, since
// MySQL has no vector index. Suitable for small corpora; use the pgvector
// store for larger ones.
type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

func (r *ChunkRepository) InsertChunk(ctx context.Context, chunk *model.Chunk) error {
	if err := r.db.WithContext(ctx).Create(chunk).Error; err != nil {
		return fmt.Errorf("create chunk failed: %w", err)
	}
	return nil
}

func (r *ChunkRepository) Search(ctx context.Context, embedding []float32, threshold float32, limit int) ([]model.ScoredChunk, error) {
	if limit <= 0 {
		return nil, nil
	}
	var chunks []model.Chunk
	if err := r.db.WithContext(ctx).
		Where("embedding IS NOT NULL").
		Order("document_id ASC, chunk_index ASC").
		Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("load chunks for search failed: %w", err)
	}
	return similarity.Rank(embedding, chunks, threshold, limit), nil
}

func (r *ChunkRepository) DeleteByDocumentID(ctx context.Context, documentID string) error {
	if err := r.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&model.Chunk{}).Error; err != nil {
		return fmt.Errorf("delete chunks by document failed: %w", err)
	}
	return nil
}

func (r *ChunkRepository) CountByDocumentID(ctx context.Context, documentID string) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Chunk{}).Where("document_id = ?", documentID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count chunks failed: %w", err)
	}
	return n, nil
}
