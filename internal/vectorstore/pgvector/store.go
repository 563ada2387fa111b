package pgvector

import (
	"context"
	"fmt"
	"time"

	pgv "github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ragweaver/internal/model"
)

// chunkVector is the Postgres row of a chunk. The embedding column is a
// pgvector vector searched by cosine distance.
type chunkVector struct {
	ID         uint       `gorm:"primaryKey"`
	DocumentID string     `gorm:"size:36;not null;uniqueIndex:idx_chunk_vector_document_index,priority:1"`
	ChunkIndex int        `gorm:"not null;uniqueIndex:idx_chunk_vector_document_index,priority:2"`
	Text       string     `gorm:"type:text;not null"`
	Embedding  pgv.Vector `gorm:"type:vector"`
	CreatedAt  time.Time  `gorm:"not null"`
}

func (chunkVector) TableName() string {
	return "chunk_vectors"
}

type Store struct {
	db  *gorm.DB
	dim int
}

// New prepares the pgvector schema. With a positive dim the column is fixed
// to that width and an HNSW cosine index is created.
func New(db *gorm.DB, dim int) (*Store, error) {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return nil, fmt.Errorf("create pgvector extension failed: %w", err)
	}
	if err := db.AutoMigrate(&chunkVector{}); err != nil {
		return nil, fmt.Errorf("auto migrate chunk vectors failed: %w", err)
	}
	if dim > 0 {
		if err := db.Exec(fmt.Sprintf("ALTER TABLE chunk_vectors ALTER COLUMN embedding TYPE vector(%d)", dim)).Error; err != nil {
			return nil, fmt.Errorf("set embedding dimension failed: %w", err)
		}
		if err := db.Exec("CREATE INDEX IF NOT EXISTS idx_chunk_vectors_embedding ON chunk_vectors USING hnsw (embedding vector_cosine_ops)").Error; err != nil {
			return nil, fmt.Errorf("create embedding index failed: %w", err)
		}
	}
	return &Store{db: db, dim: dim}, nil
}

func (s *Store) InsertChunk(ctx context.Context, chunk *model.Chunk) error {
	if err := s.validate(chunk.Embedding); err != nil {
		return err
	}
	row := chunkVector{
		DocumentID: chunk.DocumentID,
		ChunkIndex: chunk.Index,
		Text:       chunk.Text,
		Embedding:  pgv.NewVector(chunk.Embedding),
		CreatedAt:  chunk.CreatedAt,
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert chunk vector failed: %w", err)
	}
	chunk.ID = row.ID
	return nil
}

// Search ranks by cosine distance (<=>); score is 1 - distance.
func (s *Store) Search(ctx context.Context, embedding []float32, threshold float32, limit int) ([]model.ScoredChunk, error) {
	if limit <= 0 {
		return nil, nil
	}
	if err := s.validate(embedding); err != nil {
		return nil, err
	}
	vec := pgv.NewVector(embedding)

	var rows []struct {
		ID         uint
		DocumentID string
		ChunkIndex int
		Text       string
		CreatedAt  time.Time
		Score      float32
	}
	if err := s.db.WithContext(ctx).
		Model(&chunkVector{}).
		Select("id, document_id, chunk_index, text, created_at, 1 - (embedding <=> ?) AS score", vec).
		Where("embedding IS NOT NULL AND 1 - (embedding <=> ?) >= ?", vec, threshold).
		Order(clause.Expr{SQL: "embedding <=> ?", Vars: []interface{}{vec}}).
		Limit(limit).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("search chunk vectors failed: %w", err)
	}

	hits := make([]model.ScoredChunk, 0, len(rows))
	for _, row := range rows {
		hits = append(hits, model.ScoredChunk{
			Chunk: model.Chunk{
				ID:         row.ID,
				DocumentID: row.DocumentID,
				Index:      row.ChunkIndex,
				Text:       row.Text,
				CreatedAt:  row.CreatedAt,
			},
			Score: row.Score,
		})
	}
	return hits, nil
}

func (s *Store) DeleteByDocumentID(ctx context.Context, documentID string) error {
	if err := s.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&chunkVector{}).Error; err != nil {
		return fmt.Errorf("delete chunk vectors failed: %w", err)
	}
	return nil
}

func (s *Store) CountByDocumentID(ctx context.Context, documentID string) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&chunkVector{}).Where("document_id = ?", documentID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count chunk vectors failed: %w", err)
	}
	return n, nil
}

func (s *Store) validate(embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("embedding vector is empty")
	}
	if s.dim > 0 && len(embedding) != s.dim {
		return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(embedding), s.dim)
	}
	return nil
}
