package avatarmail

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/playforge/avatarmail/store"
	"github.com/playforge/avatarmail/store/memory"
)

// testDirectory builds the fixture directory: a1 and a2 share a game
// round, b1 plays in a different one.
func testDirectory() Directory {
	return staticDirectory{
		"a1": {ID: "a1", GameRoundID: "r1", Name: "Aldra"},
		"a2": {ID: "a2", GameRoundID: "r1", Name: "Belric"},
		"b1": {ID: "b1", GameRoundID: "r2", Name: "Corvin"},
	}
}

// staticDirectory avoids importing the directory package from tests to
// keep the root package free of import cycles.
type staticDirectory map[string]*Avatar

func (d staticDirectory) Resolve(_ context.Context, avatarID string) (*Avatar, error) {
	a, ok := d[avatarID]
	if !ok {
		return nil, errors.New("avatar not found: " + avatarID)
	}
	return a, nil
}

func setupTestService(t *testing.T, opts ...Option) Service {
	t.Helper()

	base := []Option{
		WithStore(memory.New()),
		WithDirectory(testDirectory()),
	}
	svc, err := NewService(append(base, opts...)...)
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	ctx := context.Background()
	if err := svc.Connect(ctx); err != nil {
		t.Fatalf("failed to connect: %v", err)
	}

	return svc
}

func TestNewService(t *testing.T) {
	t.Run("requires store", func(t *testing.T) {
		_, err := NewService(WithDirectory(testDirectory()))
		if !errors.Is(err, ErrStoreRequired) {
			t.Errorf("expected ErrStoreRequired, got %v", err)
		}
	})

	t.Run("requires directory", func(t *testing.T) {
		_, err := NewService(WithStore(memory.New()))
		if !errors.Is(err, ErrDirectoryRequired) {
			t.Errorf("expected ErrDirectoryRequired, got %v", err)
		}
	})

	t.Run("creates service", func(t *testing.T) {
		svc, err := NewService(WithStore(memory.New()), WithDirectory(testDirectory()))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if svc == nil {
			t.Fatal("expected non-nil service")
		}
		if svc.IsConnected() {
			t.Error("service should not be connected before Connect")
		}
	})
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("connect and close", func(t *testing.T) {
		svc, err := NewService(WithStore(memory.New()), WithDirectory(testDirectory()))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if err := svc.Connect(ctx); err != nil {
			t.Fatalf("connect failed: %v", err)
		}
		if !svc.IsConnected() {
			t.Error("expected IsConnected after Connect")
		}

		if err := svc.Connect(ctx); !errors.Is(err, ErrAlreadyConnected) {
			t.Errorf("expected ErrAlreadyConnected, got %v", err)
		}

		if err := svc.Close(ctx); err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if svc.IsConnected() {
			t.Error("expected disconnected after Close")
		}

		if err := svc.Close(ctx); err != nil {
			t.Errorf("second close should not error, got %v", err)
		}
	})

	t.Run("operations fail when not connected", func(t *testing.T) {
		svc, _ := NewService(WithStore(memory.New()), WithDirectory(testDirectory()))

		if _, err := svc.CreateAvatarMessage(ctx, "a1", "a2", "s", "c"); !errors.Is(err, ErrNotConnected) {
			t.Errorf("create: expected ErrNotConnected, got %v", err)
		}
		if _, err := svc.Inbox(ctx, "a1"); !errors.Is(err, ErrNotConnected) {
			t.Errorf("inbox: expected ErrNotConnected, got %v", err)
		}
		if _, err := svc.ReadMessage(ctx, "a1", "x"); !errors.Is(err, ErrNotConnected) {
			t.Errorf("read: expected ErrNotConnected, got %v", err)
		}
	})
}

func TestCreateAvatarMessage(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)
	defer svc.Close(ctx)

	t.Run("creates message with both sides new", func(t *testing.T) {
		msg, err := svc.CreateAvatarMessage(ctx, "a1", "a2", "Hello", "See you at the keep")
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if msg.ID == "" {
			t.Error("expected assigned message ID")
		}
		if msg.FromAvatar != "a1" || msg.ToAvatar != "a2" {
			t.Errorf("unexpected parties: from=%q to=%q", msg.FromAvatar, msg.ToAvatar)
		}
		if msg.FromState != store.StateNew || msg.ToState != store.StateNew {
			t.Errorf("expected new/new, got %s/%s", msg.FromState, msg.ToState)
		}
		if msg.Created.IsZero() {
			t.Error("expected created timestamp")
		}
		if msg.IsSystem() {
			t.Error("avatar message should not be a system message")
		}
	})

	t.Run("rejects cross-round send", func(t *testing.T) {
		_, err := svc.CreateAvatarMessage(ctx, "a1", "b1", "Hello", "...")
		if !errors.Is(err, ErrInvalidRelationship) {
			t.Fatalf("expected ErrInvalidRelationship, got %v", err)
		}

		var relErr *RelationshipError
		if !errors.As(err, &relErr) {
			t.Fatalf("expected RelationshipError, got %T", err)
		}
		if relErr.FromGameRound != "r1" || relErr.ToGameRound != "r2" {
			t.Errorf("unexpected rounds: %s vs %s", relErr.FromGameRound, relErr.ToGameRound)
		}

		inbox, err := svc.Inbox(ctx, "b1")
		if err != nil {
			t.Fatalf("inbox failed: %v", err)
		}
		if len(inbox) != 0 {
			t.Errorf("rejected create must not persist a record, inbox has %d", len(inbox))
		}
	})

	t.Run("rejects unknown sender", func(t *testing.T) {
		_, err := svc.CreateAvatarMessage(ctx, "ghost", "a2", "Hello", "...")
		if !errors.Is(err, ErrAvatarNotFound) {
			t.Errorf("expected ErrAvatarNotFound, got %v", err)
		}
	})

	t.Run("rejects unknown recipient", func(t *testing.T) {
		_, err := svc.CreateAvatarMessage(ctx, "a1", "ghost", "Hello", "...")
		if !errors.Is(err, ErrAvatarNotFound) {
			t.Errorf("expected ErrAvatarNotFound, got %v", err)
		}
	})

	t.Run("enforces subject limit", func(t *testing.T) {
		long := make([]byte, DefaultMaxSubjectLength+1)
		_, err := svc.CreateAvatarMessage(ctx, "a1", "a2", string(long), "...")
		if !errors.Is(err, ErrSubjectTooLong) {
			t.Errorf("expected ErrSubjectTooLong, got %v", err)
		}
	})

	t.Run("enforces content limit", func(t *testing.T) {
		long := make([]byte, DefaultMaxContentSize+1)
		_, err := svc.CreateAvatarMessage(ctx, "a1", "a2", "s", string(long))
		if !errors.Is(err, ErrContentTooLarge) {
			t.Errorf("expected ErrContentTooLarge, got %v", err)
		}
	})
}

func TestCreateSystemMessage(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)
	defer svc.Close(ctx)

	msg, err := svc.CreateSystemMessage(ctx, "a2", "Maintenance", "Server restart at midnight")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if !msg.IsSystem() {
		t.Error("expected system message")
	}
	if msg.FromAvatar != "" {
		t.Errorf("expected empty sender, got %q", msg.FromAvatar)
	}
	if msg.FromState != store.StateDelete {
		t.Errorf("expected sender side delete at creation, got %s", msg.FromState)
	}
	if msg.ToState != store.StateNew {
		t.Errorf("expected recipient side new, got %s", msg.ToState)
	}

	t.Run("appears in recipient inbox", func(t *testing.T) {
		inbox, err := svc.Inbox(ctx, "a2")
		if err != nil {
			t.Fatalf("inbox failed: %v", err)
		}
		if len(inbox) != 1 || inbox[0].ID != msg.ID {
			t.Fatalf("expected system message in inbox, got %d messages", len(inbox))
		}
	})

	t.Run("single recipient delete removes the record", func(t *testing.T) {
		if err := svc.DeleteMessage(ctx, "a2", msg.ID); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if _, err := svc.Get(ctx, "a2", msg.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after recipient delete, got %v", err)
		}
	})
}

func TestReadMessage(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)
	defer svc.Close(ctx)

	msg, err := svc.CreateAvatarMessage(ctx, "a1", "a2", "Hello", "...")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	t.Run("sender cannot read", func(t *testing.T) {
		if _, err := svc.ReadMessage(ctx, "a1", msg.ID); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("stranger cannot read", func(t *testing.T) {
		if _, err := svc.ReadMessage(ctx, "b1", msg.ID); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("recipient reads once", func(t *testing.T) {
		updated, err := svc.ReadMessage(ctx, "a2", msg.ID)
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
		if updated.ToState != store.StateRead {
			t.Errorf("expected recipient state read, got %s", updated.ToState)
		}
		if updated.FromState != store.StateNew {
			t.Errorf("sender state should be untouched, got %s", updated.FromState)
		}
	})

	t.Run("second read fails", func(t *testing.T) {
		_, err := svc.ReadMessage(ctx, "a2", msg.ID)
		if !errors.Is(err, ErrInvalidState) {
			t.Fatalf("expected ErrInvalidState, got %v", err)
		}

		var stErr *StateTransitionError
		if !errors.As(err, &stErr) {
			t.Fatalf("expected StateTransitionError, got %T", err)
		}
		if stErr.From != store.StateRead || stErr.To != store.StateRead {
			t.Errorf("unexpected transition %s -> %s", stErr.From, stErr.To)
		}
	})

	t.Run("unknown message", func(t *testing.T) {
		if _, err := svc.ReadMessage(ctx, "a2", "no-such-id"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestDeleteMessage(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)
	defer svc.Close(ctx)

	msg, err := svc.CreateAvatarMessage(ctx, "a1", "a2", "Hello", "...")
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	t.Run("stranger cannot delete", func(t *testing.T) {
		if err := svc.DeleteMessage(ctx, "b1", msg.ID); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("recipient delete keeps record for sender", func(t *testing.T) {
		if err := svc.DeleteMessage(ctx, "a2", msg.ID); err != nil {
			t.Fatalf("delete failed: %v", err)
		}

		// Gone from the recipient's inbox.
		inbox, err := svc.Inbox(ctx, "a2")
		if err != nil {
			t.Fatalf("inbox failed: %v", err)
		}
		if len(inbox) != 0 {
			t.Errorf("expected empty inbox, got %d messages", len(inbox))
		}

		// Record still exists while the sender side is live.
		got, err := svc.Get(ctx, "a1", msg.ID)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if got.ToState != store.StateDelete {
			t.Errorf("expected recipient state delete, got %s", got.ToState)
		}
		if !got.Live() {
			t.Error("record should still be live")
		}
	})

	t.Run("same side cannot delete twice", func(t *testing.T) {
		if err := svc.DeleteMessage(ctx, "a2", msg.ID); !errors.Is(err, ErrInvalidState) {
			t.Errorf("expected ErrInvalidState, got %v", err)
		}
	})

	t.Run("second side delete removes the record", func(t *testing.T) {
		if err := svc.DeleteMessage(ctx, "a1", msg.ID); err != nil {
			t.Fatalf("delete failed: %v", err)
		}
		if _, err := svc.Get(ctx, "a1", msg.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after both-side delete, got %v", err)
		}
	})

	t.Run("delete removed message", func(t *testing.T) {
		if err := svc.DeleteMessage(ctx, "a1", msg.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("delete works from unread state", func(t *testing.T) {
		m, err := svc.CreateAvatarMessage(ctx, "a1", "a2", "unread", "...")
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		if err := svc.DeleteMessage(ctx, "a2", m.ID); err != nil {
			t.Errorf("delete from new should work, got %v", err)
		}
	})
}

func TestRemoveByAvatarID(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)
	defer svc.Close(ctx)

	// Mixed bag: sent, received, read, system.
	m1, _ := svc.CreateAvatarMessage(ctx, "a1", "a2", "one", "...")
	m2, _ := svc.CreateAvatarMessage(ctx, "a2", "a1", "two", "...")
	m3, _ := svc.CreateSystemMessage(ctx, "a1", "three", "...")
	if _, err := svc.ReadMessage(ctx, "a1", m2.ID); err != nil {
		t.Fatalf("read failed: %v", err)
	}

	count, err := svc.RemoveByAvatarID(ctx, "a1")
	if err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 removed, got %d", count)
	}

	for _, id := range []string{m1.ID, m2.ID, m3.ID} {
		if _, err := svc.Get(ctx, "a2", id); !errors.Is(err, ErrNotFound) {
			t.Errorf("message %s: expected ErrNotFound, got %v", id, err)
		}
	}

	t.Run("no messages is not an error", func(t *testing.T) {
		count, err := svc.RemoveByAvatarID(ctx, "a1")
		if err != nil {
			t.Fatalf("remove failed: %v", err)
		}
		if count != 0 {
			t.Errorf("expected 0 removed, got %d", count)
		}
	})
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)
	defer svc.Close(ctx)

	m1, _ := svc.CreateAvatarMessage(ctx, "a1", "a2", "first", "...")
	m2, _ := svc.CreateAvatarMessage(ctx, "a1", "a2", "second", "...")

	t.Run("get requires party", func(t *testing.T) {
		if _, err := svc.Get(ctx, "b1", m1.ID); !errors.Is(err, ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
		if _, err := svc.Get(ctx, "a1", m1.ID); err != nil {
			t.Errorf("sender should read the record, got %v", err)
		}
		if _, err := svc.Get(ctx, "a2", m1.ID); err != nil {
			t.Errorf("recipient should read the record, got %v", err)
		}
	})

	t.Run("inbox keeps read messages and ordering", func(t *testing.T) {
		if _, err := svc.ReadMessage(ctx, "a2", m1.ID); err != nil {
			t.Fatalf("read failed: %v", err)
		}

		inbox, err := svc.Inbox(ctx, "a2")
		if err != nil {
			t.Fatalf("inbox failed: %v", err)
		}
		if len(inbox) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(inbox))
		}
		if inbox[0].ID != m1.ID || inbox[1].ID != m2.ID {
			t.Error("expected creation order, oldest first")
		}
	})

	t.Run("outbox stays empty under current state machine", func(t *testing.T) {
		outbox, err := svc.Outbox(ctx, "a1")
		if err != nil {
			t.Fatalf("outbox failed: %v", err)
		}
		if len(outbox) != 0 {
			t.Errorf("expected empty outbox, got %d messages", len(outbox))
		}
	})

	t.Run("inbox of uninvolved avatar is empty", func(t *testing.T) {
		inbox, err := svc.Inbox(ctx, "b1")
		if err != nil {
			t.Fatalf("inbox failed: %v", err)
		}
		if len(inbox) != 0 {
			t.Errorf("expected empty inbox, got %d", len(inbox))
		}
	})
}

func TestNewInWindow(t *testing.T) {
	ctx := context.Background()
	svc := setupTestService(t)
	defer svc.Close(ctx)

	before := time.Now().UTC().Add(-time.Minute)

	m1, _ := svc.CreateAvatarMessage(ctx, "a1", "a2", "in window", "...")
	m2, _ := svc.CreateAvatarMessage(ctx, "a1", "a2", "read already", "...")
	if _, err := svc.ReadMessage(ctx, "a2", m2.ID); err != nil {
		t.Fatalf("read failed: %v", err)
	}

	after := time.Now().UTC().Add(time.Minute)

	t.Run("returns only unread in window", func(t *testing.T) {
		msgs, err := svc.NewInWindow(ctx, "a2", before, after)
		if err != nil {
			t.Fatalf("window query failed: %v", err)
		}
		if len(msgs) != 1 || msgs[0].ID != m1.ID {
			t.Fatalf("expected only the unread message, got %d", len(msgs))
		}
	})

	t.Run("window start is inclusive", func(t *testing.T) {
		msgs, err := svc.NewInWindow(ctx, "a2", m1.Created, after)
		if err != nil {
			t.Fatalf("window query failed: %v", err)
		}
		if len(msgs) != 1 {
			t.Errorf("expected message at window start, got %d", len(msgs))
		}
	})

	t.Run("window end is exclusive", func(t *testing.T) {
		msgs, err := svc.NewInWindow(ctx, "a2", before, m1.Created)
		if err != nil {
			t.Fatalf("window query failed: %v", err)
		}
		if len(msgs) != 0 {
			t.Errorf("expected message at window end excluded, got %d", len(msgs))
		}
	})

	t.Run("empty window", func(t *testing.T) {
		msgs, err := svc.NewInWindow(ctx, "a2", after, after.Add(time.Minute))
		if err != nil {
			t.Fatalf("window query failed: %v", err)
		}
		if len(msgs) != 0 {
			t.Errorf("expected no messages, got %d", len(msgs))
		}
	})
}
