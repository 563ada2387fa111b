package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"ragweaver/internal/app"
	"ragweaver/internal/pkg/logging"
	"ragweaver/internal/transport/http/response"
)

type QueryHandler struct {
	query *app.QueryService
}

type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId"`
}

func NewQueryHandler(query *app.QueryService) *QueryHandler {
	return &QueryHandler{query: query}
}

// sseStream writes data frames and defers the stream headers to the first
// frame, so failures before any output can still be answered with JSON.
type sseStream struct {
	c       *gin.Context
	started bool
}

func (s *sseStream) start() {
	if s.started {
		return
	}
	s.started = true
	h := s.c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	s.c.Status(http.StatusOK)
}

func (s *sseStream) frame(payload string) error {
	s.start()
	if _, err := s.c.Writer.WriteString("data: " + payload + "\n\n"); err != nil {
		return err
	}
	s.c.Writer.Flush()
	return nil
}

func (s *sseStream) send(v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.frame(string(raw))
}

// Query answers with a server-sent event stream of content fragments
// followed by [DONE].
func (h *QueryHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return
	}

	stream := &sseStream{c: c}
	result, err := h.query.Answer(c.Request.Context(), app.QueryInput{
		Query:     req.Query,
		SessionID: req.SessionID,
	}, func(fragment string) error {
		return stream.send(gin.H{"content": fragment})
	})

	if err != nil {
		if result.State == app.QueryCancelled {
			return
		}
		if !stream.started {
			response.FromError(c, err, "query failed")
			return
		}
		logging.FromContext(c.Request.Context()).WithError(err).Warn("query failed after streaming started")
		_ = stream.send(gin.H{"error": err.Error()})
		return
	}

	_ = stream.frame("[DONE]")
}
