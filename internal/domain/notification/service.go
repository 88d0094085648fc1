package notification

import (
	"context"
)

// Publisher accepts events without blocking the caller. Delivery is best
// effort and never reports an error back to the clock operation.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// Service defines the notification service interface
type Service interface {
	Publisher

	// SSE subscription. keys are the hub keys the stream listens on.
	Subscribe(ctx context.Context, keys []string) (<-chan SSEEvent, func())

	// Lifecycle
	Stop()
}
