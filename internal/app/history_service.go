package app

import (
	"context"
	"strings"
	"time"

	"ragweaver/internal/model"
	"ragweaver/internal/pkg/logging"
)

const (
	DefaultSessionID = "default"

	// maxHistoryTurns bounds a session read and the cached copy of it.
	maxHistoryTurns = 500
)

// HistoryService records chat turns and serves session history. Writes go
// through the publisher when one is configured, otherwise straight to the
// store.
type HistoryService struct {
	store     HistoryStore
	publisher TurnPublisher
	cache     HistoryCache
}

func NewHistoryService(store HistoryStore, publisher TurnPublisher, cache HistoryCache) *HistoryService {
	return &HistoryService{
		store:     store,
		publisher: publisher,
		cache:     cache,
	}
}

// NormalizeSessionID maps a blank session to the default session.
func NormalizeSessionID(sessionID string) string {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return DefaultSessionID
	}
	return sessionID
}

func (s *HistoryService) Append(ctx context.Context, sessionID, role, message string) (*model.ChatTurn, error) {
	turn := &model.ChatTurn{
		SessionID: NormalizeSessionID(sessionID),
		Role:      role,
		Message:   message,
		CreatedAt: time.Now(),
	}

	if s.cache != nil {
		_ = s.cache.MarkDirty(ctx, turn.SessionID)
		_ = s.cache.DeleteHistory(ctx, turn.SessionID)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, *turn); err != nil {
			return nil, storageError("enqueue chat turn", err)
		}
		return turn, nil
	}
	if err := s.store.AppendTurn(ctx, turn); err != nil {
		return nil, storageError("append chat turn", err)
	}
	return turn, nil
}

// History returns the latest limit turns of a session, oldest first.
// A non-positive limit returns the whole (bounded) history.
func (s *HistoryService) History(ctx context.Context, sessionID string, limit int) ([]model.ChatTurn, error) {
	sessionID = NormalizeSessionID(sessionID)

	if s.cache != nil {
		dirty, err := s.cache.IsDirty(ctx, sessionID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.cache.GetHistory(ctx, sessionID); cacheErr == nil && hit {
				return trimTurns(cached, limit), nil
			}
		}
	}

	turns, err := s.store.ListTurns(ctx, sessionID, maxHistoryTurns)
	if err != nil {
		return nil, storageError("list chat turns", err)
	}
	if s.cache != nil {
		if dirty, dirtyErr := s.cache.IsDirty(ctx, sessionID); dirtyErr == nil && !dirty {
			if err := s.cache.SetHistory(ctx, sessionID, turns); err != nil {
				logging.FromContext(ctx).WithError(err).Debug("cache history failed")
			}
		}
	}
	return trimTurns(turns, limit), nil
}

func (s *HistoryService) Sessions(ctx context.Context) ([]model.SessionSummary, error) {
	sessions, err := s.store.ListSessions(ctx)
	if err != nil {
		return nil, storageError("list sessions", err)
	}
	return sessions, nil
}

func trimTurns(turns []model.ChatTurn, limit int) []model.ChatTurn {
	if limit <= 0 || limit >= len(turns) {
		return turns
	}
	return turns[len(turns)-limit:]
}
