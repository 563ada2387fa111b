package app

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragweaver/internal/memory"
)

func TestUploadThenDeleteLeavesNoChunks(t *testing.T) {
	ctx := context.Background()
	docs := memory.NewDocumentStore()
	vectors := memory.NewVectorStore()
	ingest := NewIngestService(docs, vectors, constantEmbedder([]float32{1, 0}), IngestConfig{})
	svc := NewDocumentService(docs, vectors)

	res, err := ingest.Ingest(ctx, IngestInput{
		Filename:    "a.txt",
		ContentType: "text/plain",
		Content:     []byte(strings.Repeat("x", 1500)),
	})
	require.NoError(t, err)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(2), list[0].ChunkCount)
	assert.Equal(t, "a.txt", list[0].Filename)

	require.NoError(t, svc.Delete(ctx, res.DocumentID))

	n, err := vectors.CountByDocumentID(ctx, res.DocumentID)
	require.NoError(t, err)
	assert.Zero(t, n)
	hits, err := vectors.Search(ctx, []float32{1, 0}, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	list, err = svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestDeleteMissingDocument(t *testing.T) {
	svc := NewDocumentService(memory.NewDocumentStore(), memory.NewVectorStore())
	err := svc.Delete(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrDocumentNotFound)
	assert.ErrorIs(t, err, ErrValidation)
}
