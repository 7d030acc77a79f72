package store

import (
	"errors"
	"testing"
)

func TestStateCanAdvance(t *testing.T) {
	tests := []struct {
		from, to State
		ok       bool
	}{
		{StateNew, StateRead, true},
		{StateNew, StateDelete, true},
		{StateRead, StateDelete, true},
		{StateRead, StateNew, false},
		{StateDelete, StateNew, false},
		{StateDelete, StateRead, false},
		{StateNew, StateNew, false},
		{StateRead, StateRead, false},
		{StateDelete, StateDelete, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanAdvance(tt.to); got != tt.ok {
			t.Errorf("%s -> %s: CanAdvance = %v, want %v", tt.from, tt.to, got, tt.ok)
		}
	}
}

func TestStateValid(t *testing.T) {
	for _, s := range []State{StateNew, StateRead, StateDelete} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if State("archived").Valid() {
		t.Error("unknown state should be invalid")
	}
}

func TestMessageLive(t *testing.T) {
	m := &Message{FromState: StateDelete, ToState: StateRead}
	if !m.Live() {
		t.Error("one live side keeps the record live")
	}
	m.ToState = StateDelete
	if m.Live() {
		t.Error("both sides deleted: record no longer live")
	}
}

func TestMessageSides(t *testing.T) {
	m := &Message{FromAvatar: "a1", ToAvatar: "a2", FromState: StateNew, ToState: StateRead}

	if m.SideOf("a1") != SideSender {
		t.Error("expected sender side for a1")
	}
	if m.SideOf("a2") != SideRecipient {
		t.Error("expected recipient side for a2")
	}
	if m.SideOf("b1") != SideNone {
		t.Error("expected no side for b1")
	}

	if m.StateOf(SideSender) != StateNew || m.StateOf(SideRecipient) != StateRead {
		t.Error("StateOf returned wrong per-side states")
	}

	m.SetState(SideSender, StateDelete)
	if m.FromState != StateDelete {
		t.Error("SetState did not update the sender state")
	}

	t.Run("system message", func(t *testing.T) {
		sys := &Message{ToAvatar: "a2", FromState: StateDelete, ToState: StateNew}
		if !sys.IsSystem() {
			t.Error("expected system message")
		}
		if sys.SideOf("") != SideNone {
			t.Error("empty avatar id must not resolve to the sender side")
		}
	})
}

func TestMessageValidate(t *testing.T) {
	t.Run("valid avatar message", func(t *testing.T) {
		m := &Message{FromAvatar: "a1", ToAvatar: "a2", FromState: StateNew, ToState: StateNew}
		if err := m.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("recipient required", func(t *testing.T) {
		m := &Message{FromAvatar: "a1", FromState: StateNew, ToState: StateNew}
		if err := m.Validate(); !errors.Is(err, ErrInvalidMessage) {
			t.Errorf("expected ErrInvalidMessage, got %v", err)
		}
	})

	t.Run("invalid state rejected", func(t *testing.T) {
		m := &Message{FromAvatar: "a1", ToAvatar: "a2", FromState: State("bogus"), ToState: StateNew}
		if err := m.Validate(); !errors.Is(err, ErrInvalidMessage) {
			t.Errorf("expected ErrInvalidMessage, got %v", err)
		}
	})

	t.Run("system message needs sender side deleted", func(t *testing.T) {
		m := &Message{ToAvatar: "a2", FromState: StateNew, ToState: StateNew}
		if err := m.Validate(); !errors.Is(err, ErrInvalidMessage) {
			t.Errorf("expected ErrInvalidMessage, got %v", err)
		}

		m.FromState = StateDelete
		if err := m.Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestMessageClone(t *testing.T) {
	m := &Message{ID: "m1", FromAvatar: "a1", ToAvatar: "a2", FromState: StateNew, ToState: StateNew}
	c := m.Clone()
	c.ToState = StateDelete
	if m.ToState != StateNew {
		t.Error("clone mutation leaked into the original")
	}
}
