package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	nethttp "net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragweaver/internal/bootstrap"
	"ragweaver/internal/config"
	"ragweaver/internal/model"
)

type fakeLLM struct {
	failChat atomic.Bool
	// dropChat cuts the connection after the first content frame.
	dropChat atomic.Bool
}

func (f *fakeLLM) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	switch r.URL.Path {
	case "/embeddings":
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1,0,0]}]}`))
	case "/chat/completions":
		if f.failChat.Load() {
			nethttp.Error(w, "model overloaded", nethttp.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		if f.dropChat.Load() {
			fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"Hel\"}}]}\n\n")
			w.(nethttp.Flusher).Flush()
			panic(nethttp.ErrAbortHandler)
		}
		for _, frame := range []string{
			`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
			`data: {not json`,
			`data: {"choices":[{"delta":{"content":"lo"}}]}`,
			`data: [DONE]`,
		} {
			fmt.Fprintf(w, "%s\n\n", frame)
		}
	default:
		nethttp.NotFound(w, r)
	}
}

func newTestRouter(t *testing.T) (*gin.Engine, *fakeLLM) {
	t.Helper()
	llm := &fakeLLM{}
	upstream := httptest.NewServer(llm)
	t.Cleanup(upstream.Close)

	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "none.toml"))
	t.Setenv("GIN_MODE", gin.TestMode)
	t.Setenv("STORAGE_DRIVER", config.StorageMemory)
	t.Setenv("STORAGE_VECTOR_DRIVER", config.StorageMemory)
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("RABBITMQ_ENABLED", "false")
	t.Setenv("LLM_BASE_URL", upstream.URL)

	cfg, err := config.Load()
	require.NoError(t, err)
	app, err := bootstrap.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	return NewRouter(app), llm
}

func uploadRequest(t *testing.T, path, filename, content string) *nethttp.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(nethttp.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func queryRequest(path, body string) *nethttp.Request {
	req := httptest.NewRequest(nethttp.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func serve(router *gin.Engine, req *nethttp.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestUploadAndQueryFlow(t *testing.T) {
	router, _ := newTestRouter(t)

	w := serve(router, uploadRequest(t, "/embed", "notes.txt", strings.Repeat("x", 2500)))
	require.Equal(t, nethttp.StatusOK, w.Code, w.Body.String())
	var uploaded struct {
		Success         bool   `json:"success"`
		DocumentID      string `json:"document_id"`
		ChunksProcessed int    `json:"chunks_processed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &uploaded))
	assert.True(t, uploaded.Success)
	assert.NotEmpty(t, uploaded.DocumentID)
	assert.Equal(t, 3, uploaded.ChunksProcessed)

	w = serve(router, queryRequest("/api/query", `{"query":"what is x?","sessionId":"s1"}`))
	require.Equal(t, nethttp.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
	assert.Equal(t,
		"data: {\"content\":\"Hel\"}\n\ndata: {\"content\":\"lo\"}\n\ndata: [DONE]\n\n",
		w.Body.String())

	w = serve(router, httptest.NewRequest(nethttp.MethodGet, "/history?sessionId=s1", nil))
	require.Equal(t, nethttp.StatusOK, w.Code)
	var turns []model.ChatTurn
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &turns))
	require.Len(t, turns, 2)
	assert.Equal(t, "what is x?", turns[0].Message)
	assert.Equal(t, "Hello", turns[1].Message)

	w = serve(router, httptest.NewRequest(nethttp.MethodGet, "/api/sessions", nil))
	require.Equal(t, nethttp.StatusOK, w.Code)
	var sessions []model.SessionSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sessions))
	require.Len(t, sessions, 1)
	assert.Equal(t, int64(2), sessions[0].MessageCount)
}

func TestDocumentListAndDelete(t *testing.T) {
	router, _ := newTestRouter(t)

	w := serve(router, uploadRequest(t, "/api/embed", "readme.md", "# title\nbody"))
	require.Equal(t, nethttp.StatusOK, w.Code, w.Body.String())
	var uploaded struct {
		DocumentID string `json:"document_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &uploaded))

	w = serve(router, httptest.NewRequest(nethttp.MethodGet, "/documents", nil))
	require.Equal(t, nethttp.StatusOK, w.Code)
	var docs []model.DocumentSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "readme.md", docs[0].Filename)
	assert.Equal(t, "text/markdown", docs[0].ContentType)
	assert.Equal(t, int64(1), docs[0].ChunkCount)

	w = serve(router, httptest.NewRequest(nethttp.MethodDelete, "/documents/"+uploaded.DocumentID, nil))
	require.Equal(t, nethttp.StatusOK, w.Code)

	w = serve(router, httptest.NewRequest(nethttp.MethodDelete, "/documents/"+uploaded.DocumentID, nil))
	assert.Equal(t, nethttp.StatusNotFound, w.Code)
}

func TestValidationErrors(t *testing.T) {
	router, _ := newTestRouter(t)

	w := serve(router, uploadRequest(t, "/embed", "photo.png", "\x89PNG"))
	assert.Equal(t, nethttp.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"error"`)

	req := httptest.NewRequest(nethttp.MethodPost, "/embed", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=xyz")
	w = serve(router, req)
	assert.Equal(t, nethttp.StatusBadRequest, w.Code)

	w = serve(router, queryRequest("/query", `{"query":"  "}`))
	assert.Equal(t, nethttp.StatusBadRequest, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	w = serve(router, queryRequest("/query", `not json`))
	assert.Equal(t, nethttp.StatusBadRequest, w.Code)
}

func TestQueryGenerationFailureBeforeStreaming(t *testing.T) {
	router, llm := newTestRouter(t)
	llm.failChat.Store(true)

	w := serve(router, queryRequest("/query", `{"query":"hi","sessionId":"s"}`))
	assert.Equal(t, nethttp.StatusInternalServerError, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])

	w = serve(router, httptest.NewRequest(nethttp.MethodGet, "/history?sessionId=s", nil))
	var turns []model.ChatTurn
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &turns))
	require.Len(t, turns, 1)
	assert.Equal(t, model.RoleUser, turns[0].Role)
}

func TestQueryUpstreamFailureMidStream(t *testing.T) {
	router, llm := newTestRouter(t)
	llm.dropChat.Store(true)

	w := serve(router, queryRequest("/query", `{"query":"hi","sessionId":"s"}`))
	require.Equal(t, nethttp.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	body := w.Body.String()
	require.True(t, strings.HasPrefix(body, "data: {\"content\":\"Hel\"}\n\ndata: {\"error\":"), body)
	assert.True(t, strings.HasSuffix(body, "}\n\n"), body)
	assert.NotContains(t, body, "[DONE]")

	frames := strings.Split(strings.TrimSuffix(body, "\n\n"), "\n\n")
	require.Len(t, frames, 2)
	var errFrame map[string]string
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(frames[1], "data: ")), &errFrame))
	assert.Contains(t, errFrame["error"], "upstream call failed")

	w = serve(router, httptest.NewRequest(nethttp.MethodGet, "/history?sessionId=s", nil))
	var turns []model.ChatTurn
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &turns))
	require.Len(t, turns, 1)
	assert.Equal(t, model.RoleUser, turns[0].Role)
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	t.Setenv("UPLOAD_MAX_FILE_SIZE", "100")
	router, _ := newTestRouter(t)

	w := serve(router, uploadRequest(t, "/embed", "big.txt", strings.Repeat("x", 200)))
	assert.Equal(t, nethttp.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "file too large")

	w = serve(router, uploadRequest(t, "/embed", "huge.txt", strings.Repeat("x", 1<<20+200)))
	assert.Equal(t, nethttp.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "file too large")

	w = serve(router, uploadRequest(t, "/embed", "small.txt", strings.Repeat("x", 100)))
	assert.Equal(t, nethttp.StatusOK, w.Code, w.Body.String())

	w = serve(router, httptest.NewRequest(nethttp.MethodGet, "/documents", nil))
	var docs []model.DocumentSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &docs))
	require.Len(t, docs, 1)
	assert.Equal(t, "small.txt", docs[0].Filename)
}

func TestCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t)

	w := serve(router, httptest.NewRequest(nethttp.MethodOptions, "/api/query", nil))
	assert.Equal(t, nethttp.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "authorization, x-client-info, apikey, content-type", w.Header().Get("Access-Control-Allow-Headers"))
}

func TestHealthzAndRequestID(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(nethttp.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	w := serve(router, req)
	assert.Equal(t, nethttp.StatusOK, w.Code)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))

	w = serve(router, httptest.NewRequest(nethttp.MethodGet, "/healthz", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
