package app

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"ragweaver/internal/ai"
	"ragweaver/internal/model"
	"ragweaver/internal/pkg/logging"
)

const (
	defaultMatchThreshold = 0.7
	defaultMatchCount     = 5
	fragmentBuffer        = 16

	DefaultSystemPrompt = "You are a document assistant that helps users understand their documents. " +
		"Use the context from the user's documents below to answer the question. " +
		"If the context does not contain relevant information, say so clearly."
)

type QueryConfig struct {
	MatchThreshold float32
	MatchCount     int
	SystemPrompt   string
	Policy         QueryPolicy
}

type QueryService struct {
	history   *HistoryService
	vectors   VectorStore
	embedder  Embedder
	generator Generator
	cfg       QueryConfig
}

func NewQueryService(history *HistoryService, vectors VectorStore, embedder Embedder, generator Generator, cfg QueryConfig) *QueryService {
	if cfg.MatchThreshold < 0 || cfg.MatchThreshold > 1 {
		cfg.MatchThreshold = defaultMatchThreshold
	}
	if cfg.MatchCount <= 0 {
		cfg.MatchCount = defaultMatchCount
	}
	if strings.TrimSpace(cfg.SystemPrompt) == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.Policy == (QueryPolicy{}) {
		cfg.Policy = DefaultQueryPolicy()
	}
	return &QueryService{
		history:   history,
		vectors:   vectors,
		embedder:  embedder,
		generator: generator,
		cfg:       cfg,
	}
}

type QueryInput struct {
	Query     string
	SessionID string
}

// AnswerResult describes where a query ended up.
type AnswerResult struct {
	SessionID string
	State     QueryState
	// Answer is the concatenation of every fragment handed to the sink.
	Answer             string
	Sources            []model.ScoredChunk
	FragmentsSent      int
	AssistantPersisted bool
}

// Answer runs one query through the pipeline, handing each generated
// fragment to sink as soon as it arrives. The user turn is stored before any
// remote call; the assistant turn only after generation completes. A sink
// error or a cancelled ctx stops forwarding and drops the assistant turn.
// The returned result is never nil.
func (s *QueryService) Answer(ctx context.Context, input QueryInput, sink func(fragment string) error) (*AnswerResult, error) {
	result := &AnswerResult{
		SessionID: NormalizeSessionID(input.SessionID),
		State:     QueryReceived,
	}
	logger := logging.FromContext(ctx).WithField("session_id", result.SessionID)

	if strings.TrimSpace(input.Query) == "" {
		result.State = QueryRejected
		return result, ErrEmptyQuery
	}
	query := input.Query

	persisted := runStage("persist_user", s.cfg.Policy.PersistUser, func() (*model.ChatTurn, error) {
		return s.history.Append(ctx, result.SessionID, model.RoleUser, query)
	})
	if persisted.Fatal() {
		return result, persisted.Err
	}
	if !persisted.OK() {
		logger.WithError(persisted.Err).Warn("persist user turn failed")
	}
	result.State = QueryUserPersisted

	embedded := runStage("embed", s.cfg.Policy.Embed, func() ([]float32, error) {
		vec, err := s.embedder.Embed(ctx, query)
		if err != nil {
			return nil, upstreamError("embed query", err)
		}
		return vec, nil
	})
	if embedded.Fatal() {
		result.State = QueryEmbeddingFailed
		logger.WithError(embedded.Err).Error("embed query failed")
		return result, embedded.Err
	}

	if embedded.OK() {
		result.State = QueryEmbedded
	} else {
		logger.WithError(embedded.Err).Warn("embed query failed, skipping retrieval")
	}

	retrieved := runStage("retrieve", s.cfg.Policy.Retrieve, func() ([]model.ScoredChunk, error) {
		if !embedded.OK() {
			return nil, embedded.Err
		}
		return s.vectors.Search(ctx, embedded.Value, s.cfg.MatchThreshold, s.cfg.MatchCount)
	})
	if retrieved.Fatal() {
		result.State = QueryRetrievalFailed
		return result, storageError("search chunks", retrieved.Err)
	}
	if retrieved.OK() {
		result.State = QueryRetrieved
	} else {
		result.State = QueryRetrievalFailed
		logger.WithError(retrieved.Err).Warn("retrieval failed, answering without context")
	}
	result.Sources = retrieved.Value

	result.State = QueryGenerating
	messages := BuildPrompt(s.cfg.SystemPrompt, retrieved.Value, query)
	answer, sent, err := s.generate(ctx, messages, sink)
	result.Answer = answer
	result.FragmentsSent = sent

	if err != nil {
		if ctx.Err() != nil || errors.Is(err, errSinkClosed) {
			result.State = QueryCancelled
			logger.WithField("fragments", sent).Info("query stream cancelled, assistant turn dropped")
			return result, err
		}
		result.State = QueryGenerationFailed
		logger.WithError(err).WithField("fragments", sent).Error("generation failed")
		return result, upstreamError("generate answer", err)
	}

	saved := runStage("persist_assistant", s.cfg.Policy.PersistAssistant, func() (*model.ChatTurn, error) {
		return s.history.Append(ctx, result.SessionID, model.RoleAssistant, answer)
	})
	result.State = QueryCompleted
	if saved.Fatal() {
		return result, saved.Err
	}
	if !saved.OK() {
		logger.WithError(saved.Err).Error("persist assistant turn failed")
	}
	result.AssistantPersisted = saved.OK()

	logger.WithFields(logrus.Fields{
		"sources":   len(result.Sources),
		"fragments": sent,
	}).Info("query answered")
	return result, nil
}

var errSinkClosed = errors.New("stream consumer closed")

// generate streams a completion. The generation client runs in its own
// goroutine and feeds a channel; this side forwards every fragment to sink
// and accumulates what was forwarded, in arrival order.
func (s *QueryService) generate(ctx context.Context, messages []ai.ChatMessage, sink func(string) error) (string, int, error) {
	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	fragments := make(chan string, fragmentBuffer)
	done := make(chan error, 1)
	go func() {
		defer close(fragments)
		_, err := s.generator.StreamComplete(genCtx, messages, func(chunk string) error {
			select {
			case fragments <- chunk:
				return nil
			case <-genCtx.Done():
				return genCtx.Err()
			}
		})
		done <- err
	}()

	var (
		full    strings.Builder
		sent    int
		sinkErr error
	)
	for fragment := range fragments {
		if sinkErr != nil {
			continue
		}
		if err := sink(fragment); err != nil {
			sinkErr = errors.Join(errSinkClosed, err)
			cancel()
			continue
		}
		full.WriteString(fragment)
		sent++
	}
	genErr := <-done

	if sinkErr != nil {
		return full.String(), sent, sinkErr
	}
	if genErr != nil {
		return full.String(), sent, genErr
	}
	return full.String(), sent, nil
}

// BuildPrompt grounds the query in the retrieved chunks, which are joined by
// blank lines in the order given.
func BuildPrompt(instruction string, chunks []model.ScoredChunk, query string) []ai.ChatMessage {
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}
	system := instruction + "\n\nContext from documents:\n" + strings.Join(texts, "\n\n")
	return []ai.ChatMessage{
		{Role: "system", Content: system},
		{Role: "user", Content: query},
	}
}
