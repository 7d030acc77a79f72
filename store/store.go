// Package store provides interfaces and types for mailbox message storage.
// Implementations are in store/mongo, store/memory, and store/postgres
// subpackages.
//
// # Architectural Principle: Per-Message Atomicity Without Distributed Locks
//
// Every mutating flow in the service layer is a read-modify-write on a
// single message: load the record, check a lifecycle transition, persist
// the new state or remove the record. Two concurrent writers on the same
// message must serialize so that neither overwrites the other's committed
// transition with a stale pre-image. Implementations guarantee this with
// database-native mechanisms, never with external lock services:
//
//  1. Row locking: PostgreSQL uses SELECT ... FOR UPDATE inside a
//     transaction, so a second writer blocks until the first commits.
//
//  2. Optimistic concurrency: MongoDB compares a version field on every
//     update and rejects stale writes; Transact retries on ErrConflict.
//
//  3. Store-wide mutex: the in-memory store serializes transactions under
//     a single lock. Messages are independent aggregates, so coarser
//     serialization is always correct, just less concurrent.
//
// Readers outside a transaction must never observe a partially applied
// transaction: an update followed by a removal in the same Transact call
// is visible either not at all or in its entirety.
package store

import (
	"context"
	"time"
)

// Store is the persistence surface for mailbox messages. It holds no
// business rules; lifecycle legality is enforced by the service layer.
//
// All operations are safe for concurrent use. Query results are
// snapshots; mutating a returned Message has no effect on the store.
type Store interface {
	// Lifecycle
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	Reader

	// Transact runs fn inside an atomic transaction scope. All reads and
	// writes through the Tx observe and produce a consistent state; if fn
	// returns an error, or the commit fails, no change is visible to any
	// reader and Transact reports the failure (commit failures wrapped in
	// ErrTransactionFailed).
	//
	// Tx.Get serializes read-modify-write per message id: two concurrent
	// Transact calls touching the same message never interleave between
	// Get and the subsequent Update/Remove.
	Transact(ctx context.Context, fn func(tx Tx) error) error
}

// Reader provides read operations outside a transaction scope.
type Reader interface {
	// Get retrieves a message by ID.
	// Returns ErrNotFound if the message doesn't exist.
	Get(ctx context.Context, id string) (*Message, error)

	// FindInbox returns messages addressed to the avatar that the
	// recipient has not deleted (ToState in {new, read}), in creation
	// order.
	FindInbox(ctx context.Context, avatarID string) ([]*Message, error)

	// FindOutbox returns messages sent by the avatar with
	// FromState = read, in creation order.
	FindOutbox(ctx context.Context, avatarID string) ([]*Message, error)

	// FindByParty returns every message where the avatar is sender or
	// recipient, regardless of state. Used for bulk removal.
	FindByParty(ctx context.Context, avatarID string) ([]*Message, error)

	// FindNewInWindow returns messages addressed to the avatar with
	// ToState = new and Created in the half-open interval [from, to).
	FindNewInWindow(ctx context.Context, avatarID string, from, to time.Time) ([]*Message, error)
}

// Tx is the mutation surface available inside Store.Transact.
//
// Implementations guarantee that a message returned by Get is stable for
// the duration of the transaction: no concurrent transaction commits a
// change to it between Get and this transaction's commit.
type Tx interface {
	// Get retrieves a message by ID for update.
	// Returns ErrNotFound if the message doesn't exist.
	Get(id string) (*Message, error)

	// Insert persists a new message, assigning a fresh ID when the
	// message has none, and returns the stored record.
	Insert(m *Message) (*Message, error)

	// Update persists state-field changes to an existing message.
	// Returns ErrNotFound if the message doesn't exist.
	Update(m *Message) error

	// Remove physically deletes the record.
	// Returns ErrNotFound if the message doesn't exist.
	Remove(id string) error
}
