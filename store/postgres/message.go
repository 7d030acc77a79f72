package postgres

import (
	"database/sql"
	"time"

	"github.com/playforge/avatarmail/store"
)

// row maps a table row to Go types. A NULL from_avatar marks a
// system message.
type row struct {
	ID         string         `db:"id"`
	FromAvatar sql.NullString `db:"from_avatar"`
	ToAvatar   string         `db:"to_avatar"`
	Subject    string         `db:"subject"`
	Content    string         `db:"content"`
	FromState  string         `db:"from_state"`
	ToState    string         `db:"to_state"`
	Version    int64          `db:"version"`
	Created    time.Time      `db:"created"`
}

func (r *row) toMessage() *store.Message {
	return &store.Message{
		ID:         r.ID,
		FromAvatar: r.FromAvatar.String,
		ToAvatar:   r.ToAvatar,
		Subject:    r.Subject,
		Content:    r.Content,
		FromState:  store.State(r.FromState),
		ToState:    store.State(r.ToState),
		Version:    r.Version,
		Created:    r.Created.UTC(),
	}
}

func fromAvatarArg(m *store.Message) any {
	if m.IsSystem() {
		return nil
	}
	return m.FromAvatar
}

func toMessages(rows []row) []*store.Message {
	out := make([]*store.Message, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toMessage())
	}
	return out
}

const selectColumns = `id, from_avatar, to_avatar, subject, content, from_state, to_state, version, created`
