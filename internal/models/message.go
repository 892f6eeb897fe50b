package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Reaction is a single emoji reaction on a message. Each user holds at most
// one entry per message; reacting again replaces or removes it.
type Reaction struct {
	UserID primitive.ObjectID `bson:"userId" json:"userId"`
	Emoji  string             `bson:"emoji" json:"emoji"`
}

// Message is one direct message between two users. The sender/receiver pair is
// immutable after creation. Messages are never removed: deletion clears the
// content and flips IsDeleted (soft delete).
type Message struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	SenderID   primitive.ObjectID  `bson:"senderId" json:"senderId"`
	ReceiverID primitive.ObjectID  `bson:"receiverId" json:"receiverId"`
	Text       string              `bson:"text,omitempty" json:"text"`
	Image      string              `bson:"image,omitempty" json:"image,omitempty"`
	ReplyToID  *primitive.ObjectID `bson:"replyTo,omitempty" json:"replyToId,omitempty"`
	Seen       bool                `bson:"seen" json:"seen"`
	IsDeleted  bool                `bson:"isDeleted" json:"isDeleted"`
	Reactions  []Reaction          `bson:"reactions" json:"reactions"`
	LastEdited *time.Time          `bson:"lastEdited,omitempty" json:"lastEdited,omitempty"`
	CreatedAt  time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time           `bson:"updatedAt" json:"updatedAt"`

	// ReplyTo is populated at read time from ReplyToID; never stored.
	ReplyTo *Message `bson:"-" json:"replyTo,omitempty"`
}

// ReactionBy returns the index of the given user's reaction, or -1.
func (m *Message) ReactionBy(userID primitive.ObjectID) int {
	for i, r := range m.Reactions {
		if r.UserID == userID {
			return i
		}
	}
	return -1
}
