package memory

import (
	"context"
	"sort"
	"sync"

	"ragweaver/internal/model"
)

type HistoryStore struct {
	mu     sync.RWMutex
	nextID uint
	turns  []model.ChatTurn
}

func NewHistoryStore() *HistoryStore {
	return &HistoryStore{}
}

func (s *HistoryStore) AppendTurn(_ context.Context, turn *model.ChatTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	turn.ID = s.nextID
	s.turns = append(s.turns, *turn)
	return nil
}

// ListTurns returns the latest limit turns of a session, oldest first.
func (s *HistoryStore) ListTurns(_ context.Context, sessionID string, limit int) ([]model.ChatTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ChatTurn
	for _, t := range s.turns {
		if t.SessionID == sessionID {
			out = append(out, t)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

// ListSessions summarizes every session, most recently active first.
func (s *HistoryStore) ListSessions(_ context.Context) ([]model.SessionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	index := make(map[string]int)
	var out []model.SessionSummary
	for _, t := range s.turns {
		i, ok := index[t.SessionID]
		if !ok {
			index[t.SessionID] = len(out)
			out = append(out, model.SessionSummary{SessionID: t.SessionID, CreatedAt: t.CreatedAt})
			i = len(out) - 1
		}
		out[i].MessageCount++
		out[i].LastMessage = t.Message
	}

	lastSeen := make(map[string]uint, len(out))
	for _, t := range s.turns {
		lastSeen[t.SessionID] = t.ID
	}
	sort.SliceStable(out, func(i, j int) bool {
		return lastSeen[out[i].SessionID] > lastSeen[out[j].SessionID]
	})
	return out, nil
}
