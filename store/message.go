package store

import (
	"fmt"
	"time"
)

// State is the per-party lifecycle state of a message.
// Each side of a message (sender, recipient) advances independently
// and only forward: new -> read -> delete.
type State string

// Per-party lifecycle states.
const (
	StateNew    State = "new"
	StateRead   State = "read"
	StateDelete State = "delete"
)

// rank orders states for monotonicity checks.
var rank = map[State]int{
	StateNew:    0,
	StateRead:   1,
	StateDelete: 2,
}

// Valid returns true if s is a known lifecycle state.
func (s State) Valid() bool {
	_, ok := rank[s]
	return ok
}

// CanAdvance returns true if a transition from s to next moves strictly
// forward in the lifecycle. Transitions never regress and never repeat.
func (s State) CanAdvance(next State) bool {
	sr, ok := rank[s]
	if !ok {
		return false
	}
	nr, ok := rank[next]
	if !ok {
		return false
	}
	return nr > sr
}

func (s State) String() string { return string(s) }

// Side identifies which party of a message an avatar occupies.
type Side int

// Message sides.
const (
	SideNone Side = iota
	SideSender
	SideRecipient
)

func (s Side) String() string {
	switch s {
	case SideSender:
		return "sender"
	case SideRecipient:
		return "recipient"
	default:
		return "none"
	}
}

// Message is a single mailbox record. The store persists and retrieves
// Messages; all lifecycle rules live in the service layer.
//
// FromAvatar is empty for system messages, which are created with
// FromState = StateDelete because the platform is not a party that
// reads or deletes its own copy.
type Message struct {
	ID         string    `db:"id" bson:"_id"`
	FromAvatar string    `db:"from_avatar" bson:"from_avatar,omitempty"`
	ToAvatar   string    `db:"to_avatar" bson:"to_avatar"`
	Subject    string    `db:"subject" bson:"subject"`
	Content    string    `db:"content" bson:"content"`
	FromState  State     `db:"from_state" bson:"from_state"`
	ToState    State     `db:"to_state" bson:"to_state"`
	Created    time.Time `db:"created" bson:"created"`

	// Version supports optimistic concurrency in backends without
	// row-level locking. Backends that lock rows may ignore it.
	Version int64 `db:"version" bson:"version"`
}

// IsSystem returns true if the message has no sending avatar.
func (m *Message) IsSystem() bool {
	return m.FromAvatar == ""
}

// Live returns true while at least one side has not deleted its copy.
// The moment Live turns false the record must be physically removed;
// there is no soft-deleted retention.
func (m *Message) Live() bool {
	return m.FromState != StateDelete || m.ToState != StateDelete
}

// SideOf returns which party the avatar occupies on this message.
// System messages have no sender side.
func (m *Message) SideOf(avatarID string) Side {
	switch {
	case !m.IsSystem() && m.FromAvatar == avatarID:
		return SideSender
	case m.ToAvatar == avatarID:
		return SideRecipient
	default:
		return SideNone
	}
}

// StateOf returns the lifecycle state of the given side.
func (m *Message) StateOf(side Side) State {
	switch side {
	case SideSender:
		return m.FromState
	case SideRecipient:
		return m.ToState
	default:
		return ""
	}
}

// SetState sets the lifecycle state of the given side.
func (m *Message) SetState(side Side, s State) {
	switch side {
	case SideSender:
		m.FromState = s
	case SideRecipient:
		m.ToState = s
	}
}

// Clone returns a copy. Stores hand out clones so callers can never
// mutate persisted records in place.
func (m *Message) Clone() *Message {
	cp := *m
	return &cp
}

// Validate checks structural invariants that every persisted record
// must satisfy, independent of lifecycle legality.
func (m *Message) Validate() error {
	if m.ToAvatar == "" {
		return fmt.Errorf("%w: to_avatar is required", ErrInvalidMessage)
	}
	if !m.FromState.Valid() {
		return fmt.Errorf("%w: from_state %q", ErrInvalidMessage, m.FromState)
	}
	if !m.ToState.Valid() {
		return fmt.Errorf("%w: to_state %q", ErrInvalidMessage, m.ToState)
	}
	if m.IsSystem() && m.FromState != StateDelete {
		return fmt.Errorf("%w: system message with from_state %q", ErrInvalidMessage, m.FromState)
	}
	return nil
}
