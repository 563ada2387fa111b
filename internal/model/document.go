package model

import "time"

// Document is an uploaded file. Content is stored verbatim and never updated.
type Document struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Filename    string    `gorm:"size:255;not null" json:"filename"`
	Content     string    `gorm:"type:longtext;not null" json:"-"`
	Size        int64     `gorm:"not null" json:"size"`
	ContentType string    `gorm:"size:128;not null" json:"content_type"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}

// DocumentSummary is a document listing entry.
type DocumentSummary struct {
	Document
	ChunkCount int64 `json:"chunk_count"`
}
