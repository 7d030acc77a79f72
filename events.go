package avatarmail

import (
	"context"
	"fmt"
	"time"

	"github.com/rbaliyan/event/v3"
)

// Event names for message lifecycle events.
const (
	EventNameMessageCreated = "avatarmail.message.created"
	EventNameMessageRemoved = "avatarmail.message.removed"
)

// MessageCreatedEvent is published when a message has been persisted.
// This is the primary event for notifying recipients of new mail.
type MessageCreatedEvent struct {
	MessageID  string    `json:"message_id"`
	FromAvatar string    `json:"from_avatar,omitempty"`
	ToAvatar   string    `json:"to_avatar"`
	Subject    string    `json:"subject"`
	CreatedAt  time.Time `json:"created_at"`
}

// System reports whether the message was created without a sender.
func (e MessageCreatedEvent) System() bool {
	return e.FromAvatar == ""
}

// MessageRemovedEvent is published when a message record has been
// physically removed, either because both sides deleted it or because
// an avatar purge swept it.
type MessageRemovedEvent struct {
	MessageID  string    `json:"message_id"`
	FromAvatar string    `json:"from_avatar,omitempty"`
	ToAvatar   string    `json:"to_avatar"`
	RemovedAt  time.Time `json:"removed_at"`
}

// ServiceEvents provides access to per-service event instances.
// Each service creates its own events bound to its own event bus,
// enabling independent event routing and parallel testing.
//
// Subscribe to events:
//
//	svc.Events().MessageCreated.Subscribe(ctx, handler)
//	svc.Events().MessageRemoved.Subscribe(ctx, handler)
type ServiceEvents struct {
	// MessageCreated is published after a message create commits.
	MessageCreated event.Event[MessageCreatedEvent]

	// MessageRemoved is published after a physical removal commits.
	MessageRemoved event.Event[MessageRemovedEvent]
}

// newServiceEvents creates per-service event instances with a unique name prefix.
func newServiceEvents(namePrefix string) *ServiceEvents {
	return &ServiceEvents{
		MessageCreated: event.New[MessageCreatedEvent](namePrefix + "." + EventNameMessageCreated),
		MessageRemoved: event.New[MessageRemovedEvent](namePrefix + "." + EventNameMessageRemoved),
	}
}

// registerServiceEvents registers per-service events with the given bus.
func registerServiceEvents(ctx context.Context, bus *event.Bus, events *ServiceEvents) error {
	if err := event.Register(ctx, bus, events.MessageCreated); err != nil {
		return fmt.Errorf("register MessageCreated: %w", err)
	}
	if err := event.Register(ctx, bus, events.MessageRemoved); err != nil {
		return fmt.Errorf("register MessageRemoved: %w", err)
	}
	return nil
}
