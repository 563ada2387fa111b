package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"ragweaver/internal/app"
	"ragweaver/internal/transport/http/response"
)

// multipartOverhead allows for boundaries and part headers on top of the
// file itself.
const multipartOverhead = 1 << 20

type IngestHandler struct {
	ingest *app.IngestService
}

type ingestResponse struct {
	Success         bool               `json:"success"`
	DocumentID      string             `json:"document_id"`
	ChunksProcessed int                `json:"chunks_processed"`
	Failures        []app.ChunkFailure `json:"failures,omitempty"`
}

func NewIngestHandler(ingest *app.IngestService) *IngestHandler {
	return &IngestHandler{ingest: ingest}
}

// Upload accepts a multipart form with a "file" field and ingests it.
func (h *IngestHandler) Upload(c *gin.Context) {
	maxSize := h.ingest.MaxFileSize()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize+multipartOverhead)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.FromError(c, app.ErrFileTooLarge, "upload failed")
			return
		}
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			response.FromError(c, app.ErrMissingFile, "upload failed")
			return
		}
		response.Error(c, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}

	if file.Size > maxSize {
		response.FromError(c, app.ErrFileTooLarge, "upload failed")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to read file")
		return
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to read file")
		return
	}
	if content == nil {
		content = []byte{}
	}

	result, err := h.ingest.Ingest(c.Request.Context(), app.IngestInput{
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		response.FromError(c, err, "ingest failed")
		return
	}

	response.OK(c, ingestResponse{
		Success:         true,
		DocumentID:      result.DocumentID,
		ChunksProcessed: result.ChunksProcessed,
		Failures:        result.Failures,
	})
}
