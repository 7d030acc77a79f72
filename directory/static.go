// Package directory provides Directory implementations.
package directory

import (
	"context"
	"fmt"

	"github.com/playforge/avatarmail"
)

// Static is a map-based Directory for testing and simple deployments.
// It resolves avatar IDs from an in-memory map. Safe for concurrent use
// (read-only after creation).
type Static struct {
	avatars map[string]*avatarmail.Avatar
}

// NewStatic creates a Static directory from a map of avatar ID to Avatar.
// The map is copied to prevent external mutation.
func NewStatic(avatars map[string]*avatarmail.Avatar) *Static {
	m := make(map[string]*avatarmail.Avatar, len(avatars))
	for k, v := range avatars {
		m[k] = v
	}
	return &Static{avatars: m}
}

// Resolve returns the avatar for a single avatar ID.
func (s *Static) Resolve(_ context.Context, avatarID string) (*avatarmail.Avatar, error) {
	a, ok := s.avatars[avatarID]
	if !ok {
		return nil, fmt.Errorf("avatar not found: %s", avatarID)
	}
	return a, nil
}
