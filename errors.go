package avatarmail

import (
	"errors"
	"fmt"

	"github.com/playforge/avatarmail/store"
)

// Sentinel errors for the avatarmail package.
// Use errors.Is() to check for these errors.
//
// These errors wrap corresponding store-level errors where applicable,
// so errors.Is(err, avatarmail.ErrNotFound) will match both service-level
// and store-level "not found" errors.
var (
	// ErrNotFound is returned when a message cannot be found.
	// Wraps store.ErrNotFound for consistent error checking.
	ErrNotFound = fmt.Errorf("avatarmail: %w", store.ErrNotFound)

	// ErrAvatarNotFound is returned when the directory cannot resolve an avatar.
	ErrAvatarNotFound = errors.New("avatarmail: avatar not found")

	// ErrUnauthorized is returned when an avatar acts on a message it is
	// neither sender nor recipient of.
	ErrUnauthorized = errors.New("avatarmail: unauthorized")

	// ErrInvalidState is returned when a state transition is not allowed,
	// such as reading a message that is already read or deleted.
	ErrInvalidState = errors.New("avatarmail: invalid state")

	// ErrInvalidRelationship is returned when sender and recipient are not
	// in the same game round.
	ErrInvalidRelationship = errors.New("avatarmail: invalid relationship")

	// ErrInvalidMessage is returned for message validation failures.
	// Wraps store.ErrInvalidMessage for consistent error checking.
	ErrInvalidMessage = fmt.Errorf("avatarmail: %w", store.ErrInvalidMessage)

	// ErrSubjectTooLong is returned when subject exceeds the configured maximum.
	ErrSubjectTooLong = errors.New("avatarmail: subject too long")

	// ErrContentTooLarge is returned when content exceeds the configured maximum.
	ErrContentTooLarge = errors.New("avatarmail: content too large")

	// ErrStorageFailure is returned when the store cannot complete a
	// transaction. Wraps store.ErrTransactionFailed.
	ErrStorageFailure = fmt.Errorf("avatarmail: %w", store.ErrTransactionFailed)

	// ErrStoreRequired is returned when no store is configured.
	ErrStoreRequired = errors.New("avatarmail: store is required")

	// ErrDirectoryRequired is returned when no avatar directory is configured.
	ErrDirectoryRequired = errors.New("avatarmail: directory is required")

	// ErrNotConnected is returned when operations are attempted before Connect().
	// Wraps store.ErrNotConnected for consistent error checking.
	ErrNotConnected = fmt.Errorf("avatarmail: %w", store.ErrNotConnected)

	// ErrAlreadyConnected is returned when Connect() is called twice.
	// Wraps store.ErrAlreadyConnected for consistent error checking.
	ErrAlreadyConnected = fmt.Errorf("avatarmail: %w", store.ErrAlreadyConnected)

	// ErrInvalidID is returned when an invalid ID is provided.
	// Wraps store.ErrInvalidID for consistent error checking.
	ErrInvalidID = fmt.Errorf("avatarmail: %w", store.ErrInvalidID)
)

// StateTransitionError reports a disallowed per-side state change.
// Use errors.As() to extract and inspect the details.
type StateTransitionError struct {
	MessageID string
	Side      store.Side
	From      store.State
	To        store.State
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("avatarmail: message %s: %s state %s cannot advance to %s",
		e.MessageID, e.Side, e.From, e.To)
}

func (e *StateTransitionError) Unwrap() error {
	return ErrInvalidState
}

// RelationshipError reports a cross-gameround send attempt with the ids
// involved.
type RelationshipError struct {
	FromAvatar    string
	ToAvatar      string
	FromGameRound string
	ToGameRound   string
}

func (e *RelationshipError) Error() string {
	return fmt.Sprintf("avatarmail: avatar %s (gameround %s) cannot message avatar %s (gameround %s)",
		e.FromAvatar, e.FromGameRound, e.ToAvatar, e.ToGameRound)
}

func (e *RelationshipError) Unwrap() error {
	return ErrInvalidRelationship
}

// EventPublishError is returned when event publishing fails but the operation
// succeeded. The message was created or removed, but the event notification
// failed. Check the MessageID field to identify which message this applies to.
type EventPublishError struct {
	Event     string // The event name (e.g., "MessageCreated", "MessageRemoved")
	MessageID string // The message ID the event was for
	Err       error  // The underlying publish error
}

func (e *EventPublishError) Error() string {
	return fmt.Sprintf("avatarmail: event %s publish failed for message %s: %v", e.Event, e.MessageID, e.Err)
}

func (e *EventPublishError) Unwrap() error {
	return e.Err
}

// IsEventPublishError checks if the error is an event publish error and
// returns details. This is useful when eventErrorsFatal=true but you still
// want to know the operation itself succeeded.
func IsEventPublishError(err error) (*EventPublishError, bool) {
	var epe *EventPublishError
	if errors.As(err, &epe) {
		return epe, true
	}
	return nil, false
}

// IsRetryableError determines if an error is retryable.
// Returns true for temporary/transient errors, false for permanent errors.
// Handles both service-level and store-level errors.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	permanentErrors := []error{
		ErrNotFound,
		ErrAvatarNotFound,
		ErrUnauthorized,
		ErrInvalidState,
		ErrInvalidRelationship,
		ErrInvalidMessage,
		ErrSubjectTooLong,
		ErrContentTooLarge,
		ErrInvalidID,
		store.ErrNotFound,
		store.ErrInvalidID,
		store.ErrInvalidMessage,
	}
	for _, permErr := range permanentErrors {
		if errors.Is(err, permErr) {
			return false
		}
	}

	retryableErrors := []error{
		ErrNotConnected,
		ErrStorageFailure,
		store.ErrNotConnected,
		store.ErrTransactionFailed,
		store.ErrConflict,
	}
	for _, retryErr := range retryableErrors {
		if errors.Is(err, retryErr) {
			return true
		}
	}

	// Unknown errors default to retryable as they might be transient
	// network or timeout issues.
	return true
}
