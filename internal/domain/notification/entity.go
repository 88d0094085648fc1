package notification

import (
	"time"
)

// EventType identifies a clock event pushed to connected clients.
type EventType string

const (
	TypeSessionOpened EventType = "session_opened"
	TypeSessionClosed EventType = "session_closed"
	TypeBreakStarted  EventType = "break_started"
	TypeBreakEnded    EventType = "break_ended"
)

// AllEventTypes returns all event types
func AllEventTypes() []EventType {
	return []EventType{
		TypeSessionOpened,
		TypeSessionClosed,
		TypeBreakStarted,
		TypeBreakEnded,
	}
}

// AdminTopic is the fan-out key every admin stream subscribes to.
const AdminTopic = "role:admin"

// Event is emitted by the attendance service after a successful write.
type Event struct {
	ID         string
	Type       EventType
	UserID     string
	UserName   string
	ManagerID  *string
	SessionID  string
	BreakID    *string
	At         time.Time
	Status     string
	TotalHours *float64
}

// Recipients lists the hub keys the event is delivered to: the user, their
// manager and the admin topic.
func (e Event) Recipients() []string {
	keys := []string{e.UserID}
	if e.ManagerID != nil && *e.ManagerID != "" && *e.ManagerID != e.UserID {
		keys = append(keys, *e.ManagerID)
	}
	return append(keys, AdminTopic)
}
