package model

import "time"

// Chunk stores a text segment of a document and its embedding for retrieval.
// Embedding is serialized as a JSON array of float32 for portability.
type Chunk struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	DocumentID string    `gorm:"size:36;not null;uniqueIndex:idx_chunk_document_index,priority:1" json:"document_id"`
	Index      int       `gorm:"column:chunk_index;not null;uniqueIndex:idx_chunk_document_index,priority:2" json:"index"`
	Text       string    `gorm:"type:text;not null" json:"text"`
	Embedding  []float32 `gorm:"type:longtext;serializer:json" json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// ScoredChunk is a search hit with its cosine similarity to the query.
type ScoredChunk struct {
	Chunk
	Score float32 `json:"score"`
}
