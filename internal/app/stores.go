package app

import (
	"context"

	"ragweaver/internal/ai"
	"ragweaver/internal/model"
)

// DocumentStore persists uploaded documents.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	ListDocuments(ctx context.Context) ([]model.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// VectorStore persists chunk embeddings and answers similarity queries.
// Search returns chunks scoring at least threshold, best first, at most limit.
type VectorStore interface {
	InsertChunk(ctx context.Context, chunk *model.Chunk) error
	Search(ctx context.Context, embedding []float32, threshold float32, limit int) ([]model.ScoredChunk, error)
	DeleteByDocumentID(ctx context.Context, documentID string) error
	CountByDocumentID(ctx context.Context, documentID string) (int64, error)
}

// HistoryStore persists chat turns keyed by session.
type HistoryStore interface {
	AppendTurn(ctx context.Context, turn *model.ChatTurn) error
	ListTurns(ctx context.Context, sessionID string, limit int) ([]model.ChatTurn, error)
	ListSessions(ctx context.Context) ([]model.SessionSummary, error)
}

// TurnPublisher hands turns to an asynchronous writer.
type TurnPublisher interface {
	Publish(ctx context.Context, turn model.ChatTurn) error
}

type HistoryCache interface {
	GetHistory(ctx context.Context, sessionID string) ([]model.ChatTurn, bool, error)
	SetHistory(ctx context.Context, sessionID string, turns []model.ChatTurn) error
	DeleteHistory(ctx context.Context, sessionID string) error
	MarkDirty(ctx context.Context, sessionID string) error
	IsDirty(ctx context.Context, sessionID string) (bool, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Generator interface {
	StreamComplete(ctx context.Context, messages []ai.ChatMessage, onChunk func(chunk string) error) (string, error)
}
