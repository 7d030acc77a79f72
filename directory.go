package avatarmail

import "context"

// Avatar identifies a player character and the game round it belongs to.
// Messages can only be exchanged between avatars in the same game round.
type Avatar struct {
	// ID is the avatar identifier.
	ID string
	// GameRoundID is the game round the avatar plays in.
	GameRoundID string
	// Name is the display name, informational only.
	Name string
}

// Directory resolves avatar IDs to avatars. The service uses it at
// message creation time to check the sender/recipient relationship.
//
// Implementations must be safe for concurrent use. See the directory
// package for a map-backed implementation.
type Directory interface {
	// Resolve returns the avatar for the given ID.
	// Returns an error if the avatar does not exist.
	Resolve(ctx context.Context, avatarID string) (*Avatar, error)
}
