package store

import "errors"

// Sentinel errors for the store package.
var (
	// ErrNotFound is returned when a message cannot be found.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalidID is returned when an invalid ID is provided.
	ErrInvalidID = errors.New("store: invalid id")

	// ErrInvalidMessage is returned when a record fails structural validation.
	ErrInvalidMessage = errors.New("store: invalid message")

	// ErrNotConnected is returned when operations are attempted before Connect().
	ErrNotConnected = errors.New("store: not connected")

	// ErrAlreadyConnected is returned when Connect() is called twice.
	ErrAlreadyConnected = errors.New("store: already connected")

	// ErrTransactionFailed is returned when a transaction could not commit.
	// No changes from the transaction are visible to any reader.
	ErrTransactionFailed = errors.New("store: transaction failed")

	// ErrConflict is returned inside a transaction when a concurrent
	// writer invalidated the read set. Backends built on optimistic
	// concurrency surface this so Transact can retry.
	ErrConflict = errors.New("store: write conflict")
)

// Error checking helpers.

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}
