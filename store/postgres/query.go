package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/playforge/avatarmail/store"
)

// Get retrieves a message by ID.
func (s *Store) Get(ctx context.Context, id string) (*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	if _, err := uuid.Parse(id); err != nil {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, selectColumns, s.opts.table)

	var r row
	if err := s.db.GetContext(ctx, &r, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return r.toMessage(), nil
}

// FindInbox returns messages the recipient has not deleted, in creation order.
func (s *Store) FindInbox(ctx context.Context, avatarID string) ([]*store.Message, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE to_avatar = $1 AND to_state <> 'delete'
		ORDER BY created, id
	`, selectColumns, s.opts.table)
	return s.list(ctx, "find inbox", query, avatarID)
}

// FindOutbox returns sent messages with from_state = read, in creation order.
func (s *Store) FindOutbox(ctx context.Context, avatarID string) ([]*store.Message, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE from_avatar = $1 AND from_state = 'read'
		ORDER BY created, id
	`, selectColumns, s.opts.table)
	return s.list(ctx, "find outbox", query, avatarID)
}

// FindByParty returns every message sent or received by the avatar.
func (s *Store) FindByParty(ctx context.Context, avatarID string) ([]*store.Message, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE to_avatar = $1 OR from_avatar = $1
		ORDER BY created, id
	`, selectColumns, s.opts.table)
	return s.list(ctx, "find by party", query, avatarID)
}

// FindNewInWindow returns unread messages created in [from, to).
func (s *Store) FindNewInWindow(ctx context.Context, avatarID string, from, to time.Time) ([]*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE to_avatar = $1 AND to_state = 'new' AND created >= $2 AND created < $3
		ORDER BY created, id
	`, selectColumns, s.opts.table)

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, avatarID, from, to); err != nil {
		return nil, fmt.Errorf("find new in window: %w", err)
	}
	return toMessages(rows), nil
}

func (s *Store) list(ctx context.Context, op, query, avatarID string) ([]*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, query, avatarID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return toMessages(rows), nil
}
