package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/playforge/avatarmail/store"
)

// retryBackoff is the pause between optimistic retry attempts.
const retryBackoff = 10 * time.Millisecond

// Transact runs fn and applies its writes with version guards. On a
// write conflict the whole function is retried against fresh state,
// so fn must be side-effect free apart from its Tx calls.
func (s *Store) Transact(ctx context.Context, fn func(tx store.Tx) error) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	for attempt := 0; attempt < s.opts.maxRetries; attempt++ {
		err := s.tryTransact(ctx, fn)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrConflict) {
			return err
		}

		s.logger.Debug("write conflict, retrying", "attempt", attempt+1)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryBackoff):
		}
	}

	return fmt.Errorf("%w: optimistic retries exhausted", store.ErrTransactionFailed)
}

func (s *Store) tryTransact(ctx context.Context, fn func(tx store.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	t := &tx{
		s:      s,
		ctx:    ctx,
		staged: make(map[string]*store.Message),
	}
	if err := fn(t); err != nil {
		return err
	}
	return t.apply()
}

const (
	opInsert = iota
	opUpdate
	opRemove
)

// writeOp is a journaled write. Guard is the version the write is
// conditioned on; a guarded write that matches nothing is a conflict.
type writeOp struct {
	kind  int
	id    string
	guard int64
	msg   *store.Message
}

// tx stages writes in memory and journals them for apply. Reads see
// the staged state; a nil staged entry marks removal.
type tx struct {
	s      *Store
	ctx    context.Context
	staged map[string]*store.Message
	ops    []writeOp
}

func (t *tx) Get(id string) (*store.Message, error) {
	if id == "" {
		return nil, store.ErrInvalidID
	}
	if m, ok := t.staged[id]; ok {
		if m == nil {
			return nil, store.ErrNotFound
		}
		return m.Clone(), nil
	}

	var d doc
	if err := t.s.collection.FindOne(t.ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return d.toMessage(), nil
}

func (t *tx) Insert(m *store.Message) (*store.Message, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	cp := m.Clone()
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.Created.IsZero() {
		cp.Created = time.Now().UTC()
	}
	cp.Version = 1

	t.staged[cp.ID] = cp
	t.ops = append(t.ops, writeOp{kind: opInsert, id: cp.ID, msg: cp})
	return cp.Clone(), nil
}

func (t *tx) Update(m *store.Message) error {
	if m.ID == "" {
		return store.ErrInvalidID
	}
	if err := m.Validate(); err != nil {
		return err
	}
	if _, err := t.Get(m.ID); err != nil {
		return err
	}

	cp := m.Clone()
	guard := cp.Version
	cp.Version++
	t.staged[cp.ID] = cp
	t.ops = append(t.ops, writeOp{kind: opUpdate, id: cp.ID, guard: guard, msg: cp})
	return nil
}

func (t *tx) Remove(id string) error {
	if id == "" {
		return store.ErrInvalidID
	}
	m, err := t.Get(id)
	if err != nil {
		return err
	}
	t.staged[id] = nil
	t.ops = append(t.ops, writeOp{kind: opRemove, id: id, guard: m.Version})
	return nil
}

// apply flushes the journal. Writes after the first are best effort;
// callers keep a transaction to a single message aggregate.
func (t *tx) apply() error {
	for _, op := range t.ops {
		switch op.kind {
		case opInsert:
			if _, err := t.s.collection.InsertOne(t.ctx, toDoc(op.msg)); err != nil {
				if mongo.IsDuplicateKeyError(err) {
					return store.ErrConflict
				}
				return fmt.Errorf("insert message: %w", err)
			}

		case opUpdate:
			filter := bson.M{"_id": op.id, "version": op.guard}
			update := bson.M{"$set": bson.M{
				"from_state": string(op.msg.FromState),
				"to_state":   string(op.msg.ToState),
				"version":    op.msg.Version,
			}}
			res, err := t.s.collection.UpdateOne(t.ctx, filter, update)
			if err != nil {
				return fmt.Errorf("update message: %w", err)
			}
			if res.MatchedCount == 0 {
				return store.ErrConflict
			}

		case opRemove:
			res, err := t.s.collection.DeleteOne(t.ctx, bson.M{"_id": op.id, "version": op.guard})
			if err != nil {
				return fmt.Errorf("remove message: %w", err)
			}
			if res.DeletedCount == 0 {
				return store.ErrConflict
			}
		}
	}
	return nil
}
