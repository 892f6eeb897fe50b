package store

import (
	"context"
	"time"

	"github.com/blinkchat/blink-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MessageStore is the Mongo-backed message persistence. It satisfies the chat
// package's MessageStore interface.
type MessageStore struct {
	col *mongo.Collection
}

func NewMessageStore(db *mongo.Database) *MessageStore {
	return &MessageStore{col: db.Collection("messages")}
}

// Insert stores a new message and fills in its generated id.
func (s *MessageStore) Insert(ctx context.Context, m *models.Message) error {
	res, err := s.col.InsertOne(ctx, m)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		m.ID = id
	}
	return nil
}

// FindByID returns the message or (nil, nil) when absent.
func (s *MessageStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	var m models.Message
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Between returns the full history between two users in chronological order,
// soft-deleted records included.
func (s *MessageStore) Between(ctx context.Context, a, b primitive.ObjectID) ([]models.Message, error) {
	cur, err := s.col.Find(ctx, pairFilter(a, b),
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	msgs := []models.Message{}
	for cur.Next(ctx) {
		var m models.Message
		if err := cur.Decode(&m); err != nil {
			continue
		}
		msgs = append(msgs, m)
	}
	return msgs, cur.Err()
}

// MarkConversationSeen flags every unseen sender→receiver message as seen.
func (s *MessageStore) MarkConversationSeen(ctx context.Context, sender, receiver primitive.ObjectID) error {
	_, err := s.col.UpdateMany(ctx,
		bson.M{"senderId": sender, "receiverId": receiver, "seen": false},
		bson.M{"$set": bson.M{"seen": true}},
	)
	return err
}

// SetSeen flags a single message as seen.
func (s *MessageStore) SetSeen(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"seen": true}})
	return err
}

// SetText replaces the message text and records the edit time.
func (s *MessageStore) SetText(ctx context.Context, id primitive.ObjectID, text string, editedAt time.Time) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"text":       text,
		"lastEdited": editedAt,
		"updatedAt":  editedAt,
	}})
	return err
}

// SetReactions replaces the message's reaction list.
func (s *MessageStore) SetReactions(ctx context.Context, id primitive.ObjectID, reactions []models.Reaction) error {
	if reactions == nil {
		reactions = []models.Reaction{}
	}
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"reactions": reactions}})
	return err
}

// SoftDelete clears a message's content and flags it deleted. The record
// itself is never removed.
func (s *MessageStore) SoftDelete(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": id}, softDeleteUpdate())
	return err
}

// SoftDeleteBetween soft-deletes every message between two users and returns
// how many were affected.
func (s *MessageStore) SoftDeleteBetween(ctx context.Context, a, b primitive.ObjectID) (int64, error) {
	res, err := s.col.UpdateMany(ctx, pairFilter(a, b), softDeleteUpdate())
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// CountUnseenBySender groups the receiver's unseen messages by sender.
func (s *MessageStore) CountUnseenBySender(ctx context.Context, receiver primitive.ObjectID) (map[string]int64, error) {
	cur, err := s.col.Aggregate(ctx, mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"receiverId": receiver, "seen": false}}},
		{{Key: "$group", Value: bson.M{"_id": "$senderId", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	counts := make(map[string]int64)
	for cur.Next(ctx) {
		var row struct {
			ID    primitive.ObjectID `bson:"_id"`
			Count int64              `bson:"count"`
		}
		if err := cur.Decode(&row); err != nil {
			continue
		}
		counts[row.ID.Hex()] = row.Count
	}
	return counts, cur.Err()
}

func pairFilter(a, b primitive.ObjectID) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"senderId": a, "receiverId": b},
		bson.M{"senderId": b, "receiverId": a},
	}}
}

func softDeleteUpdate() bson.M {
	return bson.M{"$set": bson.M{
		"isDeleted": true,
		"text":      "",
		"image":     nil,
	}}
}
