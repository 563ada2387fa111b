package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"ragweaver/internal/model"
)

type ChatTurnRepository struct {
	db *gorm.DB
}

func NewChatTurnRepository(db *gorm.DB) *ChatTurnRepository {
	return &ChatTurnRepository{db: db}
}

func (r *ChatTurnRepository) AppendTurn(ctx context.Context, turn *model.ChatTurn) error {
	if err := r.db.WithContext(ctx).Create(turn).Error; err != nil {
		return fmt.Errorf("create chat turn failed: %w", err)
	}
	return nil
}

// ListTurns returns the latest limit turns of a session, oldest first.
func (r *ChatTurnRepository) ListTurns(ctx context.Context, sessionID string, limit int) ([]model.ChatTurn, error) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}

	var turns []model.ChatTurn
	if err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("list chat turns failed: %w", err)
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// ListSessions summarizes every session, most recently active first.
// CreatedAt is the time of the first turn of the session.
func (r *ChatTurnRepository) ListSessions(ctx context.Context) ([]model.SessionSummary, error) {
	var rows []struct {
		SessionID    string
		MessageCount int64
		CreatedAt    time.Time
		LastID       uint
	}
	if err := r.db.WithContext(ctx).
		Model(&model.ChatTurn{}).
		Select("session_id, COUNT(*) AS message_count, MIN(created_at) AS created_at, MAX(id) AS last_id").
		Group("session_id").
		Order("last_id DESC").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("list sessions failed: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	lastIDs := make([]uint, 0, len(rows))
	for _, row := range rows {
		lastIDs = append(lastIDs, row.LastID)
	}
	var last []model.ChatTurn
	if err := r.db.WithContext(ctx).Where("id IN ?", lastIDs).Find(&last).Error; err != nil {
		return nil, fmt.Errorf("load last session turns failed: %w", err)
	}
	lastByID := make(map[uint]model.ChatTurn, len(last))
	for _, turn := range last {
		lastByID[turn.ID] = turn
	}

	summaries := make([]model.SessionSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, model.SessionSummary{
			SessionID:    row.SessionID,
			MessageCount: row.MessageCount,
			LastMessage:  lastByID[row.LastID].Message,
			CreatedAt:    row.CreatedAt,
		})
	}
	return summaries, nil
}
