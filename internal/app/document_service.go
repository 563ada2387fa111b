package app

import (
	"context"

	"ragweaver/internal/model"
	"ragweaver/internal/pkg/logging"
)

type DocumentService struct {
	documents DocumentStore
	vectors   VectorStore
}

func NewDocumentService(documents DocumentStore, vectors VectorStore) *DocumentService {
	return &DocumentService{documents: documents, vectors: vectors}
}

// List returns all documents, newest first, with their stored chunk counts.
func (s *DocumentService) List(ctx context.Context) ([]model.DocumentSummary, error) {
	docs, err := s.documents.ListDocuments(ctx)
	if err != nil {
		return nil, storageError("list documents", err)
	}
	summaries := make([]model.DocumentSummary, 0, len(docs))
	for _, doc := range docs {
		count, err := s.vectors.CountByDocumentID(ctx, doc.ID)
		if err != nil {
			logging.FromContext(ctx).WithError(err).WithField("document_id", doc.ID).Warn("count chunks failed")
		}
		summaries = append(summaries, model.DocumentSummary{Document: doc, ChunkCount: count})
	}
	return summaries, nil
}

// Delete removes a document and every chunk that references it. Chunks go
// first so a failure never leaves chunks pointing at a missing document.
func (s *DocumentService) Delete(ctx context.Context, id string) error {
	doc, err := s.documents.GetDocument(ctx, id)
	if err != nil {
		return storageError("get document", err)
	}
	if doc == nil {
		return ErrDocumentNotFound
	}
	if err := s.vectors.DeleteByDocumentID(ctx, doc.ID); err != nil {
		return storageError("delete chunks", err)
	}
	if err := s.documents.DeleteDocument(ctx, doc.ID); err != nil {
		return storageError("delete document", err)
	}
	return nil
}
