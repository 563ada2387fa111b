package app

import (
	"context"
	"errors"
	"strings"
	"sync"

	"ragweaver/internal/ai"
	"ragweaver/internal/memory"
	"ragweaver/internal/model"
)

type embedFunc func(ctx context.Context, text string) ([]float32, error)

func (f embedFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

func constantEmbedder(vec []float32) embedFunc {
	return func(context.Context, string) ([]float32, error) { return vec, nil }
}

// scriptedGenerator emits the given fragments and then returns err.
type scriptedGenerator struct {
	fragments []string
	err       error

	mu       sync.Mutex
	messages []ai.ChatMessage
}

func (g *scriptedGenerator) StreamComplete(ctx context.Context, messages []ai.ChatMessage, onChunk func(string) error) (string, error) {
	g.mu.Lock()
	g.messages = messages
	g.mu.Unlock()

	var full strings.Builder
	for _, f := range g.fragments {
		if err := ctx.Err(); err != nil {
			return full.String(), err
		}
		if err := onChunk(f); err != nil {
			return full.String(), err
		}
		full.WriteString(f)
	}
	return full.String(), g.err
}

func (g *scriptedGenerator) lastMessages() []ai.ChatMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.messages
}

type failingVectorStore struct {
	*memory.VectorStore
	searchErr error
}

func (s failingVectorStore) Search(context.Context, []float32, float32, int) ([]model.ScoredChunk, error) {
	return nil, s.searchErr
}

type failingHistoryStore struct {
	*memory.HistoryStore
	failRole string
}

func (s failingHistoryStore) AppendTurn(ctx context.Context, turn *model.ChatTurn) error {
	if turn.Role == s.failRole {
		return errors.New("disk full")
	}
	return s.HistoryStore.AppendTurn(ctx, turn)
}

func collect(out *[]string) func(string) error {
	return func(fragment string) error {
		*out = append(*out, fragment)
		return nil
	}
}
