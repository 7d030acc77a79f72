package avatarmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rbaliyan/event/v3"
	"github.com/rbaliyan/event/v3/transport/noop"
	eventredis "github.com/rbaliyan/event/v3/transport/redis"
	"golang.org/x/sync/semaphore"

	"github.com/playforge/avatarmail/store"
)

// ServiceHealth provides health and state information about the service.
type ServiceHealth interface {
	// IsConnected returns true if the service is connected and ready.
	IsConnected() bool
}

// Service manages avatar mail. It owns the message state machine;
// the store persists records without business rules.
//
// Composed of:
//   - ServiceHealth: Health and state queries (IsConnected)
type Service interface {
	ServiceHealth

	// Connect establishes connections to storage and the event bus.
	Connect(ctx context.Context) error
	// Close drains in-flight mutations and closes all connections.
	Close(ctx context.Context) error

	// CreateAvatarMessage creates a message from one avatar to another.
	// Both avatars must be in the same game round.
	CreateAvatarMessage(ctx context.Context, fromAvatarID, toAvatarID, subject, content string) (*store.Message, error)
	// CreateSystemMessage creates a message with no sender. The sender
	// side starts in the delete state, so only both-side recipient
	// deletion is needed to remove the record.
	CreateSystemMessage(ctx context.Context, toAvatarID, subject, content string) (*store.Message, error)

	// ReadMessage marks a message as read. Only the recipient may read,
	// and only while the recipient state is new.
	ReadMessage(ctx context.Context, avatarID, messageID string) (*store.Message, error)
	// DeleteMessage marks the caller's side of a message as deleted.
	// When both sides are deleted the record is physically removed and
	// a MessageRemoved event is published.
	DeleteMessage(ctx context.Context, avatarID, messageID string) error
	// RemoveByAvatarID removes every message the avatar sent or received,
	// regardless of state, and returns the number of removed messages.
	// One MessageRemoved event is published per message.
	RemoveByAvatarID(ctx context.Context, avatarID string) (int, error)

	// Get returns a single message. The caller must be sender or recipient.
	Get(ctx context.Context, avatarID, messageID string) (*store.Message, error)
	// Inbox returns received messages not yet deleted by the recipient.
	Inbox(ctx context.Context, avatarID string) ([]*store.Message, error)
	// Outbox returns sent messages whose sender-side state is read.
	Outbox(ctx context.Context, avatarID string) ([]*store.Message, error)
	// NewInWindow returns unread messages created in [from, to).
	NewInWindow(ctx context.Context, avatarID string, from, to time.Time) ([]*store.Message, error)

	// Events returns per-service event instances for subscribing and
	// publishing. Each service has its own events bound to its own event
	// bus, enabling independent event routing and parallel testing.
	Events() *ServiceEvents
}

// Connection states for the service.
const (
	stateDisconnected int32 = 0
	stateConnecting   int32 = 1
	stateConnected    int32 = 2
)

// service is the default implementation of Service.
type service struct {
	store     store.Store
	directory Directory
	logger    *slog.Logger
	opts      *options
	state     int32 // stateDisconnected, stateConnecting, or stateConnected
	otel      *otelInstrumentation
	mutSem    *semaphore.Weighted // Limits concurrent mutations to prevent resource exhaustion
	eventBus  *event.Bus
	events    *ServiceEvents
}

// NewService creates a new avatar mail service.
// Call Connect() to establish connections to backends.
func NewService(opts ...Option) (Service, error) {
	o := newOptions(opts...)

	if o.store == nil {
		return nil, ErrStoreRequired
	}
	if o.directory == nil {
		return nil, ErrDirectoryRequired
	}

	otelInstr, err := newOtelInstrumentation(o)
	if err != nil {
		return nil, fmt.Errorf("init otel: %w", err)
	}

	return &service{
		store:     o.store,
		directory: o.directory,
		logger:    o.logger,
		opts:      o,
		otel:      otelInstr,
		mutSem:    semaphore.NewWeighted(int64(o.maxConcurrentMutations)),
	}, nil
}

// Events returns per-service event instances for subscribing and publishing.
func (s *service) Events() *ServiceEvents {
	return s.events
}

// IsConnected returns true if the service is connected and ready.
func (s *service) IsConnected() bool {
	return atomic.LoadInt32(&s.state) == stateConnected
}

// Connect establishes connections to storage backends.
func (s *service) Connect(ctx context.Context) error {
	// Three-state transition keeps operations from seeing partial
	// initialization: stateDisconnected -> stateConnecting -> stateConnected.
	if !atomic.CompareAndSwapInt32(&s.state, stateDisconnected, stateConnecting) {
		return ErrAlreadyConnected
	}

	success := false
	defer func() {
		if success {
			atomic.StoreInt32(&s.state, stateConnected)
		} else {
			atomic.StoreInt32(&s.state, stateDisconnected)
		}
	}()

	if err := s.store.Connect(ctx); err != nil {
		return fmt.Errorf("connect store: %w", err)
	}

	if err := s.initEventBus(ctx); err != nil {
		s.store.Close(ctx)
		return fmt.Errorf("init event bus: %w", err)
	}

	success = true
	s.logger.Info("avatarmail service connected")
	return nil
}

// busCounter generates unique suffixes for event bus names.
var busCounter int64

// initEventBus initializes the event bus for this service.
// Each service creates its own bus with per-service events bound to it.
func (s *service) initEventBus(ctx context.Context) error {
	serviceName := s.opts.serviceName
	if serviceName == "" {
		serviceName = "avatarmail"
	}
	// Each bus needs a unique name, so append a counter suffix
	busName := fmt.Sprintf("%s-%d", serviceName, atomic.AddInt64(&busCounter, 1))

	var bus *event.Bus
	var err error

	switch {
	case s.opts.eventTransport != nil:
		s.logger.Info("initializing event bus with custom transport")
		bus, err = event.NewBus(busName, event.WithTransport(s.opts.eventTransport))
	case s.opts.redisClient != nil:
		s.logger.Info("initializing event bus with Redis transport")
		t, transportErr := eventredis.New(s.opts.redisClient)
		if transportErr != nil {
			return fmt.Errorf("create redis transport: %w", transportErr)
		}
		bus, err = event.NewBus(busName, event.WithTransport(t))
	default:
		s.logger.Debug("initializing event bus with noop transport")
		bus, err = event.NewBus(busName, event.WithTransport(noop.New()))
	}

	if err != nil {
		return fmt.Errorf("create event bus: %w", err)
	}
	s.eventBus = bus

	s.events = newServiceEvents(busName)
	if err := registerServiceEvents(ctx, bus, s.events); err != nil {
		bus.Close(ctx)
		return fmt.Errorf("register service events: %w", err)
	}

	return nil
}

// Close closes connections to storage backends.
func (s *service) Close(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.state, stateConnected, stateDisconnected) {
		return nil
	}

	var errs []error

	// Wait for in-flight mutations to complete. After the state flip no
	// new mutations can start, so acquiring every semaphore slot means
	// the existing ones have finished.
	s.logger.Info("waiting for in-flight operations to complete...", "timeout", s.opts.shutdownTimeout)
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, s.opts.shutdownTimeout)
	defer shutdownCancel()
	if err := s.mutSem.Acquire(shutdownCtx, int64(s.opts.maxConcurrentMutations)); err != nil {
		s.logger.Warn("timeout waiting for in-flight operations, proceeding with shutdown",
			"error", err)
		errs = append(errs, fmt.Errorf("graceful shutdown timeout: %w", err))
	} else {
		s.mutSem.Release(int64(s.opts.maxConcurrentMutations))
		s.logger.Info("all in-flight operations completed")
	}

	// Close the event bus only for real transports. The noop bus holds
	// no resources and closing it would break events shared with other
	// services in the same process.
	if s.eventBus != nil && (s.opts.eventTransport != nil || s.opts.redisClient != nil) {
		if err := s.eventBus.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close event bus: %w", err))
		}
	}

	if err := s.store.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	return errors.Join(errs...)
}

// checkConnected returns error if the service is not connected.
func (s *service) checkConnected() error {
	if atomic.LoadInt32(&s.state) != stateConnected {
		return ErrNotConnected
	}
	return nil
}

// beginMutation checks connection state and takes a semaphore slot.
// The returned release function must be called when the mutation ends.
func (s *service) beginMutation(ctx context.Context) (func(), error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if err := s.mutSem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire mutation slot: %w", err)
	}
	// Connection may have been closed between the check and the acquire.
	if err := s.checkConnected(); err != nil {
		s.mutSem.Release(1)
		return nil, err
	}
	return func() { s.mutSem.Release(1) }, nil
}

// publishCreated publishes a MessageCreated event for a committed message.
// The returned error is nil unless eventErrorsFatal is set.
func (s *service) publishCreated(ctx context.Context, m *store.Message) error {
	err := s.events.MessageCreated.Publish(ctx, MessageCreatedEvent{
		MessageID:  m.ID,
		FromAvatar: m.FromAvatar,
		ToAvatar:   m.ToAvatar,
		Subject:    m.Subject,
		CreatedAt:  m.Created,
	})
	if err == nil {
		return nil
	}
	if s.opts.eventErrorsFatal {
		return &EventPublishError{Event: "MessageCreated", MessageID: m.ID, Err: err}
	}
	s.opts.safeEventPublishFailure("MessageCreated", err)
	return nil
}

// publishRemoved publishes a MessageRemoved event for a removed message.
// The returned error is nil unless eventErrorsFatal is set.
func (s *service) publishRemoved(ctx context.Context, m *store.Message) error {
	err := s.events.MessageRemoved.Publish(ctx, MessageRemovedEvent{
		MessageID:  m.ID,
		FromAvatar: m.FromAvatar,
		ToAvatar:   m.ToAvatar,
		RemovedAt:  time.Now().UTC(),
	})
	if err == nil {
		return nil
	}
	if s.opts.eventErrorsFatal {
		return &EventPublishError{Event: "MessageRemoved", MessageID: m.ID, Err: err}
	}
	s.opts.safeEventPublishFailure("MessageRemoved", err)
	return nil
}
