package model

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatTurn is one message of a session. Sessions are plain string keys.
type ChatTurn struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"size:128;not null;index:idx_turn_session_created,priority:1" json:"session_id"`
	Role      string    `gorm:"size:16;not null" json:"role"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	CreatedAt time.Time `gorm:"index:idx_turn_session_created,priority:2" json:"created_at"`
}

type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	MessageCount int64     `json:"message_count"`
	LastMessage  string    `json:"last_message"`
	CreatedAt    time.Time `json:"created_at"`
}
