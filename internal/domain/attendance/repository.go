package attendance

import (
	"context"
	"encoding/json"
	"time"
)

// NewSession carries the fields needed to open a session.
type NewSession struct {
	UserID     string
	Date       time.Time
	ClockIn    time.Time
	LocationIn json.RawMessage
	StatusHint Status
	Notes      *string
}

// CloseSession carries the fields written when a session is closed.
type CloseSession struct {
	SessionID   string
	ClockOut    time.Time
	LocationOut json.RawMessage
	StatusHint  Status
	TotalHours  float64
	Notes       *string
}

// NewBreak carries the fields needed to start a break.
type NewBreak struct {
	SessionID  string
	UserID     string
	BreakStart time.Time
	BreakType  BreakType
	Notes      *string
}

// SessionRepository is the Session Store. The at-most-one-open-session rule
// is enforced here atomically, never by a read-then-write in the service.
type SessionRepository interface {
	// FindSessions returns sessions (with breaks) for userIDs whose Date lies in [start, end].
	FindSessions(ctx context.Context, userIDs []string, start, end time.Time) ([]Session, error)

	// FindOpenSession returns the user's open session on any date, or ErrSessionNotFound.
	FindOpenSession(ctx context.Context, userID string) (Session, error)

	// CreateSession opens a session. Returns ErrOpenSessionExists when the user already has one.
	CreateSession(ctx context.Context, s NewSession) (Session, error)

	// CloseSession closes an open session and ends its ongoing break at the
	// same instant. Returns ErrSessionNotFound when it is missing or already closed.
	CloseSession(ctx context.Context, c CloseSession) (Session, error)

	// CountOpenSessions counts sessions without a clock-out.
	CountOpenSessions(ctx context.Context) (int64, error)

	// FindOpenBreak returns the ongoing break of a session, or ErrBreakNotFound.
	FindOpenBreak(ctx context.Context, sessionID string) (Break, error)

	// CreateBreak starts a break. Returns ErrOpenBreakExists when one is ongoing
	// and ErrSessionNotFound when the session is no longer open.
	CreateBreak(ctx context.Context, b NewBreak) (Break, error)

	// EndBreak ends an ongoing break. Returns ErrBreakNotFound when it is missing or already ended.
	EndBreak(ctx context.Context, breakID string, end time.Time) (Break, error)
}
