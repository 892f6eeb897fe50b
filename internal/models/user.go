package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`

	Email    string `bson:"email" json:"email"`
	Username string `bson:"username" json:"username"`
	FullName string `bson:"fullName" json:"fullName"`
	Password string `bson:"password" json:"-"` // Don't return password in JSON

	ProfilePic       string `bson:"profilePic" json:"profilePic"`
	HideActiveStatus bool   `bson:"hideActiveStatus" json:"hideActiveStatus"`

	// InteractedUserIDs is a denormalized adjacency set over message history:
	// every user this user has exchanged at least one message with. Grows
	// monotonically via $addToSet, never shrinks.
	InteractedUserIDs []primitive.ObjectID `bson:"interactedUserIds" json:"interactedUserIds,omitempty"`
}
