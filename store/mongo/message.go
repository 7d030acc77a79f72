package mongo

import (
	"time"

	"github.com/playforge/avatarmail/store"
)

// doc maps a message to its BSON representation. A missing from_avatar
// field marks a system message.
type doc struct {
	ID         string    `bson:"_id"`
	FromAvatar string    `bson:"from_avatar,omitempty"`
	ToAvatar   string    `bson:"to_avatar"`
	Subject    string    `bson:"subject"`
	Content    string    `bson:"content"`
	FromState  string    `bson:"from_state"`
	ToState    string    `bson:"to_state"`
	Version    int64     `bson:"version"`
	Created    time.Time `bson:"created"`
}

func toDoc(m *store.Message) *doc {
	return &doc{
		ID:         m.ID,
		FromAvatar: m.FromAvatar,
		ToAvatar:   m.ToAvatar,
		Subject:    m.Subject,
		Content:    m.Content,
		FromState:  string(m.FromState),
		ToState:    string(m.ToState),
		Version:    m.Version,
		Created:    m.Created,
	}
}

func (d *doc) toMessage() *store.Message {
	return &store.Message{
		ID:         d.ID,
		FromAvatar: d.FromAvatar,
		ToAvatar:   d.ToAvatar,
		Subject:    d.Subject,
		Content:    d.Content,
		FromState:  store.State(d.FromState),
		ToState:    store.State(d.ToState),
		Version:    d.Version,
		Created:    d.Created.UTC(),
	}
}
