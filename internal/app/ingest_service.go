package app

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ragweaver/internal/model"
	"ragweaver/internal/pkg/chunker"
	"ragweaver/internal/pkg/logging"
	"ragweaver/internal/pkg/pdfextract"
)

const (
	ContentTypePlain    = "text/plain"
	ContentTypeMarkdown = "text/markdown"
	ContentTypePDF      = "application/pdf"

	defaultMaxFileSize = 10 << 20
)

type IngestConfig struct {
	ChunkSize    int
	Concurrency  int
	MaxFileSize  int64
	AllowedTypes []string
	Policy       IngestPolicy
}

type IngestService struct {
	documents DocumentStore
	vectors   VectorStore
	embedder  Embedder
	cfg       IngestConfig
	allowed   map[string]bool
}

func NewIngestService(documents DocumentStore, vectors VectorStore, embedder Embedder, cfg IngestConfig) *IngestService {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = chunker.DefaultSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = defaultMaxFileSize
	}
	if cfg.Policy == (IngestPolicy{}) {
		cfg.Policy = DefaultIngestPolicy()
	}
	if len(cfg.AllowedTypes) == 0 {
		cfg.AllowedTypes = []string{ContentTypePlain, ContentTypeMarkdown, ContentTypePDF}
	}
	allowed := make(map[string]bool, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return &IngestService{
		documents: documents,
		vectors:   vectors,
		embedder:  embedder,
		cfg:       cfg,
		allowed:   allowed,
	}
}

// MaxFileSize is the largest upload Ingest accepts, in bytes.
func (s *IngestService) MaxFileSize() int64 {
	return s.cfg.MaxFileSize
}

type IngestInput struct {
	Filename    string
	ContentType string
	Content     []byte
}

// ChunkFailure reports a chunk that could not be embedded or stored.
type ChunkFailure struct {
	Index int    `json:"index"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

type IngestResult struct {
	DocumentID string `json:"document_id"`
	// ChunksProcessed counts attempted chunks, including failed ones.
	ChunksProcessed int            `json:"chunks_processed"`
	Failures        []ChunkFailure `json:"failures,omitempty"`
}

// Ingest stores the document and then embeds and stores each of its chunks.
// Chunk failures are reported in the result and do not fail the call.
func (s *IngestService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	if input.Content == nil {
		return nil, ErrMissingFile
	}
	if int64(len(input.Content)) > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w (max %d bytes)", ErrFileTooLarge, s.cfg.MaxFileSize)
	}
	contentType := resolveContentType(input.Filename, input.ContentType)
	if !s.allowed[contentType] {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, input.ContentType)
	}

	filename := strings.TrimSpace(input.Filename)
	if filename == "" {
		filename = "Untitled"
	}
	doc := &model.Document{
		ID:          uuid.NewString(),
		Filename:    filename,
		Content:     extractText(ctx, contentType, input.Content),
		Size:        int64(len(input.Content)),
		ContentType: contentType,
		CreatedAt:   time.Now(),
	}

	stored := runStage("store_document", s.cfg.Policy.StoreDocument, func() (struct{}, error) {
		return struct{}{}, s.documents.CreateDocument(ctx, doc)
	})
	if stored.Fatal() {
		return nil, storageError("store document", stored.Err)
	}

	logger := logging.FromContext(ctx).WithField("document_id", doc.ID)
	chunks := chunker.Split(doc.Content, s.cfg.ChunkSize)

	// One slot per index keeps the failure set independent of completion order.
	slots := make([]*ChunkFailure, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, text := range chunks {
		g.Go(func() error {
			res := s.ingestChunk(gctx, doc.ID, i, text)
			if res.OK() {
				return nil
			}
			if res.Fatal() {
				return fmt.Errorf("chunk %d: %w", i, res.Err)
			}
			logger.WithFields(logrus.Fields{
				"chunk_index": i,
				"stage":       res.Stage,
			}).WithError(res.Err).Warn("chunk ingestion failed")
			slots[i] = &ChunkFailure{Index: i, Stage: res.Stage, Error: res.Err.Error()}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &IngestResult{DocumentID: doc.ID, ChunksProcessed: len(chunks)}
	for _, f := range slots {
		if f != nil {
			result.Failures = append(result.Failures, *f)
		}
	}
	logger.WithFields(logrus.Fields{
		"filename": doc.Filename,
		"chunks":   len(chunks),
		"failed":   len(result.Failures),
	}).Info("document ingested")
	return result, nil
}

func (s *IngestService) ingestChunk(ctx context.Context, documentID string, index int, text string) StageResult[struct{}] {
	embedded := runStage("embed", s.cfg.Policy.Chunk, func() ([]float32, error) {
		vec, err := s.embedder.Embed(ctx, text)
		if err != nil {
			return nil, upstreamError("embed chunk", err)
		}
		return vec, nil
	})
	if !embedded.OK() {
		return StageResult[struct{}]{Stage: embedded.Stage, Err: embedded.Err, Policy: embedded.Policy}
	}

	return runStage("store_chunk", s.cfg.Policy.Chunk, func() (struct{}, error) {
		err := s.vectors.InsertChunk(ctx, &model.Chunk{
			DocumentID: documentID,
			Index:      index,
			Text:       text,
			Embedding:  embedded.Value,
			CreatedAt:  time.Now(),
		})
		if err != nil {
			return struct{}{}, storageError("store chunk", err)
		}
		return struct{}{}, nil
	})
}

var extensionTypes = map[string]string{
	".txt":      ContentTypePlain,
	".text":     ContentTypePlain,
	".md":       ContentTypeMarkdown,
	".markdown": ContentTypeMarkdown,
	".pdf":      ContentTypePDF,
}

// resolveContentType normalizes the declared media type. Markdown files are
// recognized by extension whatever their declared type, and files sent
// without a specific type are typed by extension.
func resolveContentType(filename, declared string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if extensionTypes[ext] == ContentTypeMarkdown {
		return ContentTypeMarkdown
	}

	mediaType := strings.ToLower(strings.TrimSpace(declared))
	if parsed, _, err := mime.ParseMediaType(declared); err == nil {
		mediaType = parsed
	}
	if mediaType == "" || mediaType == "application/octet-stream" {
		if byExt, ok := extensionTypes[ext]; ok {
			return byExt
		}
	}
	return mediaType
}

// extractText turns uploaded bytes into document text. PDFs go through plain
// text extraction; when that fails or finds nothing the bytes are kept as
// text. Invalid UTF-8 sequences are always replaced with U+FFFD so the
// stored content is exactly what its chunks reassemble to.
func extractText(ctx context.Context, contentType string, content []byte) string {
	text := string(content)
	if contentType == ContentTypePDF {
		extracted, err := pdfextract.ExtractText(content)
		switch {
		case err != nil:
			logging.FromContext(ctx).WithError(err).Warn("pdf text extraction failed, storing raw content")
		case strings.TrimSpace(extracted) != "":
			text = extracted
		}
	}
	return strings.ToValidUTF8(text, "\uFFFD")
}
