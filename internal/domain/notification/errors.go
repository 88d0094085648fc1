package notification

import "errors"

// Notification domain errors
var (
	ErrQueueFull      = errors.New("notification queue is full")
	ErrServiceStopped = errors.New("notification service stopped")
)
