package avatarmail

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/playforge/avatarmail/store"
)

// CreateAvatarMessage creates a message from one avatar to another.
// Both avatars must resolve in the directory and share a game round.
// The message starts with both sides in the new state.
func (s *service) CreateAvatarMessage(ctx context.Context, fromAvatarID, toAvatarID, subject, content string) (msg *store.Message, retErr error) {
	release, err := s.beginMutation(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	defer func() { s.otel.recordCreate(ctx, time.Since(start), false, retErr) }()
	ctx, end := s.otel.startSpan(ctx, "avatarmail.CreateAvatarMessage",
		attribute.String("from_avatar", fromAvatarID),
		attribute.String("to_avatar", toAvatarID),
	)
	defer func() { end(retErr) }()

	if err := s.validateContent(subject, content); err != nil {
		return nil, err
	}

	from, err := s.directory.Resolve(ctx, fromAvatarID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAvatarNotFound, fromAvatarID)
	}
	to, err := s.directory.Resolve(ctx, toAvatarID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAvatarNotFound, toAvatarID)
	}

	if from.GameRoundID != to.GameRoundID {
		return nil, &RelationshipError{
			FromAvatar:    from.ID,
			ToAvatar:      to.ID,
			FromGameRound: from.GameRoundID,
			ToGameRound:   to.GameRoundID,
		}
	}

	return s.create(ctx, &store.Message{
		FromAvatar: from.ID,
		ToAvatar:   to.ID,
		Subject:    subject,
		Content:    content,
		FromState:  store.StateNew,
		ToState:    store.StateNew,
		Created:    time.Now().UTC(),
	})
}

// CreateSystemMessage creates a message with no sender. The sender side
// starts in the delete state, so the record lives until the recipient
// deletes it.
func (s *service) CreateSystemMessage(ctx context.Context, toAvatarID, subject, content string) (msg *store.Message, retErr error) {
	release, err := s.beginMutation(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	defer func() { s.otel.recordCreate(ctx, time.Since(start), true, retErr) }()
	ctx, end := s.otel.startSpan(ctx, "avatarmail.CreateSystemMessage",
		attribute.String("to_avatar", toAvatarID),
	)
	defer func() { end(retErr) }()

	if err := s.validateContent(subject, content); err != nil {
		return nil, err
	}

	to, err := s.directory.Resolve(ctx, toAvatarID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAvatarNotFound, toAvatarID)
	}

	return s.create(ctx, &store.Message{
		ToAvatar:  to.ID,
		Subject:   subject,
		Content:   content,
		FromState: store.StateDelete,
		ToState:   store.StateNew,
		Created:   time.Now().UTC(),
	})
}

// create persists the message and publishes MessageCreated after commit.
func (s *service) create(ctx context.Context, m *store.Message) (*store.Message, error) {
	var created *store.Message
	err := s.store.Transact(ctx, func(tx store.Tx) error {
		var err error
		created, err = tx.Insert(m)
		return err
	})
	if err != nil {
		return nil, storeErr("create message", err)
	}

	s.logger.Debug("message created",
		"message_id", created.ID,
		"from_avatar", created.FromAvatar,
		"to_avatar", created.ToAvatar,
		"system", created.IsSystem(),
	)

	if err := s.publishCreated(ctx, created); err != nil {
		// The message is committed; the caller gets both it and the error.
		return created, err
	}
	return created, nil
}

// validateContent checks the configured subject and content limits.
func (s *service) validateContent(subject, content string) error {
	if len(subject) > s.opts.maxSubjectLength {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrSubjectTooLong, len(subject), s.opts.maxSubjectLength)
	}
	if len(content) > s.opts.maxContentSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrContentTooLarge, len(content), s.opts.maxContentSize)
	}
	return nil
}

// storeErr maps store-level failures onto service-level sentinels.
func storeErr(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrInvalidID):
		return ErrInvalidID
	case errors.Is(err, store.ErrInvalidMessage):
		return fmt.Errorf("%s: %w", op, ErrInvalidMessage)
	case errors.Is(err, store.ErrTransactionFailed):
		return fmt.Errorf("%s: %w", op, ErrStorageFailure)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
