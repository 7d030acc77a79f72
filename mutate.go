package avatarmail

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/playforge/avatarmail/store"
)

// ReadMessage marks a message as read and returns the updated message.
// Only the recipient may read, and only while the recipient state is new.
// A second read attempt fails with ErrInvalidState; the read receipt is
// one-shot.
func (s *service) ReadMessage(ctx context.Context, avatarID, messageID string) (msg *store.Message, retErr error) {
	release, err := s.beginMutation(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	defer func() { s.otel.recordRead(ctx, time.Since(start), retErr) }()
	ctx, end := s.otel.startSpan(ctx, "avatarmail.ReadMessage",
		attribute.String("avatar_id", avatarID),
		attribute.String("message_id", messageID),
	)
	defer func() { end(retErr) }()

	var updated *store.Message
	err = s.store.Transact(ctx, func(tx store.Tx) error {
		m, err := tx.Get(messageID)
		if err != nil {
			return err
		}

		if m.SideOf(avatarID) != store.SideRecipient {
			return ErrUnauthorized
		}
		if m.ToState != store.StateNew {
			return &StateTransitionError{
				MessageID: m.ID,
				Side:      store.SideRecipient,
				From:      m.ToState,
				To:        store.StateRead,
			}
		}

		m.ToState = store.StateRead
		if err := tx.Update(m); err != nil {
			return err
		}
		updated = m
		return nil
	})
	if err != nil {
		return nil, storeErr("read message", err)
	}

	s.logger.Debug("message read", "message_id", messageID, "avatar_id", avatarID)
	return updated, nil
}

// DeleteMessage marks the caller's side of a message as deleted. When the
// other side is already deleted the record is physically removed and a
// MessageRemoved event is published. Deleting an already deleted side
// fails with ErrInvalidState.
func (s *service) DeleteMessage(ctx context.Context, avatarID, messageID string) (retErr error) {
	release, err := s.beginMutation(ctx)
	if err != nil {
		return err
	}
	defer release()

	start := time.Now()
	removed := false
	defer func() { s.otel.recordDelete(ctx, time.Since(start), removed, retErr) }()
	ctx, end := s.otel.startSpan(ctx, "avatarmail.DeleteMessage",
		attribute.String("avatar_id", avatarID),
		attribute.String("message_id", messageID),
	)
	defer func() { end(retErr) }()

	var gone *store.Message
	err = s.store.Transact(ctx, func(tx store.Tx) error {
		m, err := tx.Get(messageID)
		if err != nil {
			return err
		}

		side := m.SideOf(avatarID)
		if side == store.SideNone {
			return ErrUnauthorized
		}
		if m.StateOf(side) == store.StateDelete {
			return &StateTransitionError{
				MessageID: m.ID,
				Side:      side,
				From:      store.StateDelete,
				To:        store.StateDelete,
			}
		}

		m.SetState(side, store.StateDelete)
		if !m.Live() {
			gone = m
			return tx.Remove(m.ID)
		}
		return tx.Update(m)
	})
	if err != nil {
		return storeErr("delete message", err)
	}

	if gone != nil {
		removed = true
		s.logger.Debug("message removed", "message_id", messageID)
		return s.publishRemoved(ctx, gone)
	}

	s.logger.Debug("message side deleted", "message_id", messageID, "avatar_id", avatarID)
	return nil
}

// RemoveByAvatarID removes every message the avatar sent or received,
// regardless of per-side state, and returns the number of removed
// messages. One MessageRemoved event is published per removed message.
// Intended for avatar teardown.
func (s *service) RemoveByAvatarID(ctx context.Context, avatarID string) (count int, retErr error) {
	release, err := s.beginMutation(ctx)
	if err != nil {
		return 0, err
	}
	defer release()

	start := time.Now()
	defer func() { s.otel.recordRemove(ctx, time.Since(start), count, retErr) }()
	ctx, end := s.otel.startSpan(ctx, "avatarmail.RemoveByAvatarID",
		attribute.String("avatar_id", avatarID),
	)
	defer func() { end(retErr) }()

	msgs, err := s.store.FindByParty(ctx, avatarID)
	if err != nil {
		return 0, storeErr("find by party", err)
	}

	for _, m := range msgs {
		err := s.store.Transact(ctx, func(tx store.Tx) error {
			return tx.Remove(m.ID)
		})
		if err != nil {
			// A concurrent delete may have removed it already.
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return count, storeErr("remove message", err)
		}

		count++
		if err := s.publishRemoved(ctx, m); err != nil {
			return count, err
		}
	}

	s.logger.Info("avatar messages removed", "avatar_id", avatarID, "count", count)
	return count, nil
}
