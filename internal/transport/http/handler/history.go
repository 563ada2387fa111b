package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"ragweaver/internal/app"
	"ragweaver/internal/model"
	"ragweaver/internal/transport/http/response"
)

const defaultHistoryLimit = 100

type HistoryHandler struct {
	history *app.HistoryService
}

func NewHistoryHandler(history *app.HistoryService) *HistoryHandler {
	return &HistoryHandler{history: history}
}

func (h *HistoryHandler) Sessions(c *gin.Context) {
	sessions, err := h.history.Sessions(c.Request.Context())
	if err != nil {
		response.FromError(c, err, "list sessions failed")
		return
	}
	if sessions == nil {
		sessions = []model.SessionSummary{}
	}
	response.OK(c, sessions)
}

// History returns the latest turns of ?sessionId=, oldest first.
func (h *HistoryHandler) History(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}

	turns, err := h.history.History(c.Request.Context(), c.Query("sessionId"), limit)
	if err != nil {
		response.FromError(c, err, "get history failed")
		return
	}
	if turns == nil {
		turns = []model.ChatTurn{}
	}
	response.OK(c, turns)
}
