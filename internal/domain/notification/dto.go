package notification

// EventResponse is the JSON payload of a pushed event.
type EventResponse struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	UserID     string    `json:"user_id"`
	UserName   string    `json:"user_name"`
	SessionID  string    `json:"session_id"`
	BreakID    *string   `json:"break_id,omitempty"`
	At         string    `json:"at"`
	Status     string    `json:"status,omitempty"`
	TotalHours *float64  `json:"total_hours,omitempty"`
}

// SSEEvent represents a Server-Sent Event
type SSEEvent struct {
	Event string        `json:"event"`
	Data  EventResponse `json:"data"`
}

// SSETokenResponse represents the SSE token response
type SSETokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}
