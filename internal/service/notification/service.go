package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cmlabs-hris/hris-attendance-go/internal/domain/notification"
	"github.com/cmlabs-hris/hris-attendance-go/internal/pkg/sse"
	"github.com/google/uuid"
)

// Config holds notification service configuration
type Config struct {
	WorkerCount int // default: 2
	QueueSize   int // default: 1000
}

type service struct {
	hub    *sse.Hub
	config Config
	logger *slog.Logger

	queue    chan notification.Event
	wg       sync.WaitGroup
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewNotificationService creates a new notification service with background workers
func NewNotificationService(hub *sse.Hub, cfg Config, logger *slog.Logger) notification.Service {
	if cfg.WorkerCount == 0 {
		cfg.WorkerCount = 2
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 1000
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &service{
		hub:    hub,
		config: cfg,
		logger: logger,
		queue:  make(chan notification.Event, cfg.QueueSize),
		stopCh: make(chan struct{}),
	}

	for i := 0; i < cfg.WorkerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	logger.Info("notification service started", slog.Int("workers", cfg.WorkerCount), slog.Int("queue_size", cfg.QueueSize))

	return s
}

// worker drains the queue and fans each event out to its recipients
func (s *service) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case event := <-s.queue:
			s.deliver(event)
		case <-s.stopCh:
			// Drain what is already queued
			for {
				select {
				case event := <-s.queue:
					s.deliver(event)
				default:
					s.logger.Debug("notification worker stopped", slog.Int("worker", id))
					return
				}
			}
		}
	}
}

func (s *service) deliver(event notification.Event) {
	s.hub.PublishToMany(event.Recipients(), sse.Event{
		Event: string(event.Type),
		Data:  toResponse(event),
	})
}

// Publish queues an event. A full queue drops the event with a warning so
// the clock operation that produced it is never held up.
func (s *service) Publish(ctx context.Context, event notification.Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.At.IsZero() {
		event.At = time.Now()
	}

	select {
	case <-s.stopCh:
		s.logger.WarnContext(ctx, "notification dropped",
			slog.String("event", string(event.Type)),
			slog.String("error", notification.ErrServiceStopped.Error()))
		return
	default:
	}

	select {
	case s.queue <- event:
	default:
		s.logger.WarnContext(ctx, "notification dropped",
			slog.String("event", string(event.Type)),
			slog.String("user_id", event.UserID),
			slog.String("error", notification.ErrQueueFull.Error()))
	}
}

// Subscribe creates an SSE subscription listening on every key
func (s *service) Subscribe(ctx context.Context, keys []string) (<-chan notification.SSEEvent, func()) {
	ch, cleanup := s.hub.SubscribeMany(keys)

	out := make(chan notification.SSEEvent, 10)

	go func() {
		defer close(out)
		for {
			select {
			case event, ok := <-ch:
				if !ok {
					return
				}
				if resp, ok := event.Data.(notification.EventResponse); ok {
					select {
					case out <- notification.SSEEvent{Event: event.Event, Data: resp}:
					case <-ctx.Done():
						return
					}
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, cleanup
}

// Stop gracefully stops the notification service
func (s *service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()
		s.logger.Info("notification service stopped")
	})
}

func toResponse(e notification.Event) notification.EventResponse {
	return notification.EventResponse{
		ID:         e.ID,
		Type:       e.Type,
		UserID:     e.UserID,
		UserName:   e.UserName,
		SessionID:  e.SessionID,
		BreakID:    e.BreakID,
		At:         e.At.UTC().Format(time.RFC3339),
		Status:     e.Status,
		TotalHours: e.TotalHours,
	}
}
