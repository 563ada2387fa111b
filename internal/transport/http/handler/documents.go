package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"ragweaver/internal/app"
	"ragweaver/internal/transport/http/response"
)

type DocumentHandler struct {
	documents *app.DocumentService
}

func NewDocumentHandler(documents *app.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.documents.List(c.Request.Context())
	if err != nil {
		response.FromError(c, err, "list documents failed")
		return
	}
	response.OK(c, docs)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		response.Error(c, http.StatusBadRequest, "invalid document id")
		return
	}
	if err := h.documents.Delete(c.Request.Context(), id); err != nil {
		response.FromError(c, err, "delete document failed")
		return
	}
	response.OK(c, gin.H{"success": true, "deleted_document_id": id})
}
