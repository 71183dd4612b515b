package tracking

import (
	"context"
	"time"
)

// Participant statuses.
const (
	StatusUnsafe = "unsafe"
	StatusSafe   = "safe"
)

// Participant - per-chat-per-user tracked record.
type Participant struct {
	ChatID          int64  `json:"chat_id"`
	UserID          int64  `json:"user_id"`
	Serial          int    `json:"srno"`
	Name            string `json:"name"`
	Handle          string `json:"username"`
	SecondaryHandle string `json:"x_username,omitempty"`
	LinkCount       int    `json:"link_count"`
	AdCount         int    `json:"ad_count"`
	Status          string `json:"status"`
}

// Session - per-chat tracking period.
type Session struct {
	ChatID          int64     `json:"chat_id"`
	StartedAt       time.Time `json:"started_at"`
	TrackingEnabled bool      `json:"tracking_enabled"`
}

// Upsert - one atomic read-modify-write against a participant row.
// A missing row is created with the next serial number for the chat.
// SecondaryHandle is sticky: it is applied only when the stored value
// is still empty. ForceStatus, when non-empty, overrides the stored
// status unconditionally.
type Upsert struct {
	Name            string
	Handle          string
	SecondaryHandle string
	LinkDelta       int
	AdDelta         int
	ForceStatus     string
	ResetAdCount    bool
}

// ParticipantStore - durable participant records with atomic upsert.
// Implementations must apply Upsert all-or-nothing and retry a
// detected write conflict once before reporting ErrStoreUnavailable.
type ParticipantStore interface {
	Get(ctx context.Context, chatID, userID int64) (Participant, error)
	Upsert(ctx context.Context, chatID, userID int64, up Upsert) (Participant, error)
	List(ctx context.Context, chatID int64) ([]Participant, error)
	Delete(ctx context.Context, chatID, userID int64) error
	DeleteChat(ctx context.Context, chatID int64) error
}

// SessionStore - per-chat session flags. A chat without a stored
// session reads as the zero Session, not as an error.
type SessionStore interface {
	GetSession(ctx context.Context, chatID int64) (Session, error)
	SetSession(ctx context.Context, session Session) error
}
