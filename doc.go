// Package avatarmail provides the mailbox subsystem for a multiplayer
// game backend.
//
// Avatars exchange short messages within a game round. Each message
// tracks an independent lifecycle state per side (sender and recipient):
// new, read, delete, advancing strictly forward. A message record exists
// exactly as long as at least one side has not deleted it; the instant
// both sides reach delete, the record is physically removed. System
// messages have no sender and are created with the sender side already
// in delete, so they vanish as soon as the recipient deletes them.
//
// # Basic Usage
//
//	// Create in-memory store for testing
//	st := memory.New()
//
//	// Avatar directory: resolves IDs and game round membership
//	dir := directory.NewStatic(map[string]*avatarmail.Avatar{
//	    "a1": {ID: "a1", GameRoundID: "round-7"},
//	    "a2": {ID: "a2", GameRoundID: "round-7"},
//	})
//
//	svc, err := avatarmail.NewService(
//	    avatarmail.WithStore(st),
//	    avatarmail.WithDirectory(dir),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Connect initializes indexes/schema
//	if err := svc.Connect(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer svc.Close(ctx)
//
//	msg, err := svc.CreateAvatarMessage(ctx, "a1", "a2", "Hello", "See you at the keep")
//	_, err = svc.ReadMessage(ctx, "a2", msg.ID)
//	err = svc.DeleteMessage(ctx, "a2", msg.ID)
//	err = svc.DeleteMessage(ctx, "a1", msg.ID) // both sides deleted: record removed
//
// # Operations
//
//   - CreateAvatarMessage/CreateSystemMessage: persist new mail
//   - ReadMessage: one-shot new -> read transition, recipient only
//   - DeleteMessage: per-side delete, physical removal when both sides delete
//   - RemoveByAvatarID: unconditional purge for avatar teardown
//   - Get/Inbox/Outbox/NewInWindow: queries
//
// # Storage Backends
//
// The store package provides implementations for:
//   - PostgreSQL (store/postgres) - accepts *sql.DB, row-locked transitions
//   - MongoDB (store/mongo) - accepts *mongo.Client, optimistic transitions
//   - In-memory (store/memory) - for testing
//
// # Events
//
// MessageCreated and MessageRemoved events are published after the
// corresponding commit, via github.com/rbaliyan/event/v3. Pass
// WithRedisClient or WithEventTransport to carry events across
// processes; without a transport events are dropped.
//
// # Client Integration
//
// PollHandler fans unread mail out to polling game clients and
// RemovalHandler purges mail when the platform removes an avatar; both
// are thin adapters over the service meant to be attached to platform
// hooks.
package avatarmail
