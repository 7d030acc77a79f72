package avatarmail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/playforge/avatarmail/store"
)

// Queue delivers messages to a connected game client. Implementations
// typically push onto the client's outbound message queue for the next
// response frame.
type Queue interface {
	Push(ctx context.Context, avatarID string, msg *store.Message) error
}

// PollHandler forwards unread mail to polling clients. Attach HandlePoll
// to the platform's client-poll hook with the previous and current poll
// timestamps; the half-open window guarantees each message is delivered
// once across consecutive polls.
type PollHandler struct {
	svc      Service
	queue    Queue
	disabled bool
	logger   *slog.Logger
}

// PollOption configures a PollHandler.
type PollOption func(*PollHandler)

// WithPollDisabled turns fan-out off. HandlePoll becomes a no-op,
// mirroring a deployment-level config switch.
func WithPollDisabled(disabled bool) PollOption {
	return func(h *PollHandler) {
		h.disabled = disabled
	}
}

// WithPollLogger sets a custom logger.
func WithPollLogger(l *slog.Logger) PollOption {
	return func(h *PollHandler) {
		if l != nil {
			h.logger = l
		}
	}
}

// NewPollHandler creates a poll fan-out handler.
func NewPollHandler(svc Service, queue Queue, opts ...PollOption) (*PollHandler, error) {
	if svc == nil {
		return nil, errors.New("avatarmail: service is required")
	}
	if queue == nil {
		return nil, errors.New("avatarmail: queue is required")
	}
	h := &PollHandler{
		svc:    svc,
		queue:  queue,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// HandlePoll queries unread messages created in [from, to) and pushes
// each onto the avatar's queue. Push failures do not stop delivery of
// the remaining messages; all failures are joined into the returned
// error.
func (h *PollHandler) HandlePoll(ctx context.Context, avatarID string, from, to time.Time) error {
	if h.disabled {
		return nil
	}

	msgs, err := h.svc.NewInWindow(ctx, avatarID, from, to)
	if err != nil {
		return fmt.Errorf("poll window query: %w", err)
	}

	var errs []error
	for _, m := range msgs {
		if err := h.queue.Push(ctx, avatarID, m); err != nil {
			h.logger.Warn("failed to push message to client queue",
				"avatar_id", avatarID, "message_id", m.ID, "error", err)
			errs = append(errs, fmt.Errorf("push message %s: %w", m.ID, err))
		}
	}

	if len(msgs) > 0 {
		h.logger.Debug("poll fan-out delivered", "avatar_id", avatarID, "count", len(msgs)-len(errs))
	}
	return errors.Join(errs...)
}

// RemovalHandler purges an avatar's mail when the platform removes the
// avatar. Attach HandleAvatarRemoved to the avatar-removal hook.
type RemovalHandler struct {
	svc    Service
	logger *slog.Logger
}

// NewRemovalHandler creates an avatar-removal handler.
func NewRemovalHandler(svc Service) (*RemovalHandler, error) {
	if svc == nil {
		return nil, errors.New("avatarmail: service is required")
	}
	return &RemovalHandler{svc: svc, logger: slog.Default()}, nil
}

// HandleAvatarRemoved removes every message the avatar was party to.
func (h *RemovalHandler) HandleAvatarRemoved(ctx context.Context, avatarID string) error {
	count, err := h.svc.RemoveByAvatarID(ctx, avatarID)
	if err != nil {
		return fmt.Errorf("purge avatar mail: %w", err)
	}
	h.logger.Info("avatar mail purged", "avatar_id", avatarID, "count", count)
	return nil
}
