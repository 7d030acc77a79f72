// Package memory provides an in-memory Store implementation for testing.
// This store is not suitable for production use - data is not persisted.
package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/playforge/avatarmail/store"
)

// Store implements store.Store with in-memory storage.
// Thread-safe for concurrent use. Not suitable for production.
type Store struct {
	mu        sync.RWMutex
	messages  map[string]*store.Message
	connected int32
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{messages: make(map[string]*store.Message)}
}

// Connect marks the store as connected.
func (s *Store) Connect(_ context.Context) error {
	if !atomic.CompareAndSwapInt32(&s.connected, 0, 1) {
		return store.ErrAlreadyConnected
	}
	return nil
}

// Close marks the store as disconnected.
func (s *Store) Close(_ context.Context) error {
	atomic.StoreInt32(&s.connected, 0)
	return nil
}

func (s *Store) checkConnected() error {
	if atomic.LoadInt32(&s.connected) == 0 {
		return store.ErrNotConnected
	}
	return nil
}

// Get retrieves a message by ID.
func (s *Store) Get(_ context.Context, id string) (*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.messages[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m.Clone(), nil
}

// FindInbox returns messages the recipient has not deleted, in creation order.
func (s *Store) FindInbox(_ context.Context, avatarID string) ([]*store.Message, error) {
	return s.find(func(m *store.Message) bool {
		return m.ToAvatar == avatarID && m.ToState != store.StateDelete
	})
}

// FindOutbox returns sent messages with FromState = read, in creation order.
func (s *Store) FindOutbox(_ context.Context, avatarID string) ([]*store.Message, error) {
	return s.find(func(m *store.Message) bool {
		return !m.IsSystem() && m.FromAvatar == avatarID && m.FromState == store.StateRead
	})
}

// FindByParty returns every message touching the avatar, regardless of state.
func (s *Store) FindByParty(_ context.Context, avatarID string) ([]*store.Message, error) {
	return s.find(func(m *store.Message) bool {
		return m.ToAvatar == avatarID || (!m.IsSystem() && m.FromAvatar == avatarID)
	})
}

// FindNewInWindow returns unread messages created in [from, to).
func (s *Store) FindNewInWindow(_ context.Context, avatarID string, from, to time.Time) ([]*store.Message, error) {
	return s.find(func(m *store.Message) bool {
		return m.ToAvatar == avatarID &&
			m.ToState == store.StateNew &&
			!m.Created.Before(from) &&
			m.Created.Before(to)
	})
}

func (s *Store) find(match func(*store.Message) bool) ([]*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	var out []*store.Message
	for _, m := range s.messages {
		if match(m) {
			out = append(out, m.Clone())
		}
	}
	s.mu.RUnlock()

	sortByCreation(out)
	return out, nil
}

// Transact runs fn under the store-wide mutex with staged writes.
// Changes become visible only after fn returns nil; messages are
// independent aggregates, so a single lock is correct if coarse.
func (s *Store) Transact(_ context.Context, fn func(tx store.Tx) error) error {
	if err := s.checkConnected(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{base: s.messages, staged: make(map[string]*store.Message)}
	if err := fn(t); err != nil {
		return err
	}

	for id, m := range t.staged {
		if m == nil {
			delete(s.messages, id)
		} else {
			s.messages[id] = m
		}
	}
	return nil
}

// tx stages writes against the live map; a nil staged entry marks removal.
type tx struct {
	base   map[string]*store.Message
	staged map[string]*store.Message
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
	m, ok := t.base[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return m.Clone(), nil
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
	cp.Version++
	t.staged[cp.ID] = cp
	return nil
}

func (t *tx) Remove(id string) error {
	if id == "" {
		return store.ErrInvalidID
	}
	if _, err := t.Get(id); err != nil {
		return err
	}
	t.staged[id] = nil
	return nil
}

func sortByCreation(msgs []*store.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Created.Equal(msgs[j].Created) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].Created.Before(msgs[j].Created)
	})
}

// Compile-time check that Store implements store.Store.
var _ store.Store = (*Store)(nil)
