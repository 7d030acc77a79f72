package avatarmail

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/playforge/avatarmail/store"
)

// Get returns a single message. The caller must be its sender or
// recipient; anyone else gets ErrUnauthorized.
func (s *service) Get(ctx context.Context, avatarID, messageID string) (msg *store.Message, retErr error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { s.otel.recordRead(ctx, time.Since(start), retErr) }()
	ctx, end := s.otel.startSpan(ctx, "avatarmail.Get",
		attribute.String("message_id", messageID),
	)
	defer func() { end(retErr) }()

	m, err := s.store.Get(ctx, messageID)
	if err != nil {
		return nil, storeErr("get message", err)
	}
	if m.SideOf(avatarID) == store.SideNone {
		return nil, ErrUnauthorized
	}
	return m, nil
}

// Inbox returns received messages the recipient has not deleted, oldest
// first.
func (s *service) Inbox(ctx context.Context, avatarID string) (msgs []*store.Message, retErr error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { s.otel.recordList(ctx, time.Since(start), "inbox", len(msgs), retErr) }()
	ctx, end := s.otel.startSpan(ctx, "avatarmail.Inbox",
		attribute.String("avatar_id", avatarID),
	)
	defer func() { end(retErr) }()

	msgs, err := s.store.FindInbox(ctx, avatarID)
	if err != nil {
		return nil, storeErr("find inbox", err)
	}
	return msgs, nil
}

// Outbox returns sent messages whose sender state is read, oldest first.
// Note the asymmetry with Inbox: no operation ever advances the sender
// state to read (creation sets it to new, deletion sets it to delete),
// so with the current state machine the outbox is empty. This matches
// long-standing observed behavior and is kept as is rather than
// silently widened.
//
// TODO: confirm with the game team whether outbox should list all
// not-deleted sent messages; widening the filter is a one-line change
// here and in each store backend.
func (s *service) Outbox(ctx context.Context, avatarID string) (msgs []*store.Message, retErr error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { s.otel.recordList(ctx, time.Since(start), "outbox", len(msgs), retErr) }()
	ctx, end := s.otel.startSpan(ctx, "avatarmail.Outbox",
		attribute.String("avatar_id", avatarID),
	)
	defer func() { end(retErr) }()

	msgs, err := s.store.FindOutbox(ctx, avatarID)
	if err != nil {
		return nil, storeErr("find outbox", err)
	}
	return msgs, nil
}

// NewInWindow returns the avatar's unread messages created in the
// half-open interval [from, to). Used by poll fan-out to pick up
// messages that arrived since the last poll without double delivery.
func (s *service) NewInWindow(ctx context.Context, avatarID string, from, to time.Time) (msgs []*store.Message, retErr error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { s.otel.recordList(ctx, time.Since(start), "window", len(msgs), retErr) }()
	ctx, end := s.otel.startSpan(ctx, "avatarmail.NewInWindow",
		attribute.String("avatar_id", avatarID),
	)
	defer func() { end(retErr) }()

	msgs, err := s.store.FindNewInWindow(ctx, avatarID, from, to)
	if err != nil {
		return nil, storeErr("find new in window", err)
	}
	return msgs, nil
}
