package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongoopts "go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/playforge/avatarmail/store"
)

// creationOrder sorts oldest first with the ID as tiebreak.
var creationOrder = bson.D{bson.E{Key: "created", Value: 1}, bson.E{Key: "_id", Value: 1}}

// Get retrieves a message by ID.
func (s *Store) Get(ctx context.Context, id string) (*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.ErrInvalidID
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	var d doc
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return d.toMessage(), nil
}

// FindInbox returns messages the recipient has not deleted, in creation order.
func (s *Store) FindInbox(ctx context.Context, avatarID string) ([]*store.Message, error) {
	return s.list(ctx, "find inbox", bson.M{
		"to_avatar": avatarID,
		"to_state":  bson.M{"$ne": "delete"},
	})
}

// FindOutbox returns sent messages with from_state = read, in creation order.
func (s *Store) FindOutbox(ctx context.Context, avatarID string) ([]*store.Message, error) {
	return s.list(ctx, "find outbox", bson.M{
		"from_avatar": avatarID,
		"from_state":  "read",
	})
}

// FindByParty returns every message sent or received by the avatar.
func (s *Store) FindByParty(ctx context.Context, avatarID string) ([]*store.Message, error) {
	return s.list(ctx, "find by party", bson.M{
		"$or": bson.A{
			bson.M{"to_avatar": avatarID},
			bson.M{"from_avatar": avatarID},
		},
	})
}

// FindNewInWindow returns unread messages created in [from, to).
func (s *Store) FindNewInWindow(ctx context.Context, avatarID string, from, to time.Time) ([]*store.Message, error) {
	return s.list(ctx, "find new in window", bson.M{
		"to_avatar": avatarID,
		"to_state":  "new",
		"created":   bson.M{"$gte": from, "$lt": to},
	})
}

func (s *Store) list(ctx context.Context, op string, filter bson.M) ([]*store.Message, error) {
	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.timeout)
	defer cancel()

	cursor, err := s.collection.Find(ctx, filter, mongoopts.Find().SetSort(creationOrder))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer cursor.Close(ctx)

	var docs []doc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%s: decode: %w", op, err)
	}

	out := make([]*store.Message, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toMessage())
	}
	return out, nil
}
