package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/playforge/avatarmail/store"
)

// Transact runs fn inside a database transaction. Rows read through
// Tx.Get are locked FOR UPDATE until commit or rollback.
func (s *Store) Transact(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	dbtx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", store.ErrTransactionFailed, err)
	}

	t := &tx{ctx: ctx, tx: dbtx, table: s.opts.table}
	if err := fn(t); err != nil {
		if rbErr := dbtx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Warn("rollback failed", "error", rbErr)
		}
		return err
	}

	if err := dbtx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", store.ErrTransactionFailed, err)
	}
	return nil
}

// tx implements store.Tx over an open database transaction.
type tx struct {
	ctx   context.Context
	tx    *sqlx.Tx
	table string
}

func (t *tx) Get(id string) (*store.Message, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, store.ErrInvalidID
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 FOR UPDATE`, selectColumns, t.table)

	var r row
	if err := t.tx.GetContext(t.ctx, &r, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get for update: %w", err)
	}
	return r.toMessage(), nil
}

func (t *tx) Insert(m *store.Message) (*store.Message, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	cp := m.Clone()
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	} else if _, err := uuid.Parse(cp.ID); err != nil {
		return nil, store.ErrInvalidID
	}
	if cp.Created.IsZero() {
		cp.Created = time.Now().UTC()
	}
	cp.Version = 1

	query := fmt.Sprintf(`
		INSERT INTO %s (id, from_avatar, to_avatar, subject, content, from_state, to_state, version, created)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, t.table)

	_, err := t.tx.ExecContext(t.ctx, query,
		cp.ID, fromAvatarArg(cp), cp.ToAvatar, cp.Subject, cp.Content,
		string(cp.FromState), string(cp.ToState), cp.Version, cp.Created,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return cp, nil
}

func (t *tx) Update(m *store.Message) error {
	if _, err := uuid.Parse(m.ID); err != nil {
		return store.ErrInvalidID
	}
	if err := m.Validate(); err != nil {
		return err
	}

	query := fmt.Sprintf(`
		UPDATE %s
		SET from_state = $1, to_state = $2, version = version + 1
		WHERE id = $3
	`, t.table)

	result, err := t.tx.ExecContext(t.ctx, query,
		string(m.FromState), string(m.ToState), m.ID,
	)
	if err != nil {
		return fmt.Errorf("update message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (t *tx) Remove(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return store.ErrInvalidID
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, t.table)
	result, err := t.tx.ExecContext(t.ctx, query, id)
	if err != nil {
		return fmt.Errorf("remove message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}
