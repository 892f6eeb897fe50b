package store

import (
	"context"
	"regexp"

	"github.com/blinkchat/blink-backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UserStore is the Mongo-backed user persistence. It satisfies the chat
// package's UserStore interface.
type UserStore struct {
	col *mongo.Collection
}

func NewUserStore(db *mongo.Database) *UserStore {
	return &UserStore{col: db.Collection("users")}
}

// Insert stores a new user and fills in its generated id.
func (s *UserStore) Insert(ctx context.Context, u *models.User) error {
	res, err := s.col.InsertOne(ctx, u)
	if err != nil {
		return err
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		u.ID = id
	}
	return nil
}

// FindByID returns the user or (nil, nil) when absent.
func (s *UserStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var u models.User
	err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindByIdentifier looks a user up by email or username (the login
// identifier). Returns (nil, nil) when absent.
func (s *UserStore) FindByIdentifier(ctx context.Context, identifier string) (*models.User, error) {
	var u models.User
	err := s.col.FindOne(ctx, bson.M{
		"$or": bson.A{
			bson.M{"email": identifier},
			bson.M{"username": identifier},
		},
	}).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// EmailExists reports whether a user with the email exists.
func (s *UserStore) EmailExists(ctx context.Context, email string) (bool, error) {
	n, err := s.col.CountDocuments(ctx, bson.M{"email": email})
	return n > 0, err
}

// UsernameExists reports whether a user other than excluding holds the handle.
func (s *UserStore) UsernameExists(ctx context.Context, username string, excluding primitive.ObjectID) (bool, error) {
	n, err := s.col.CountDocuments(ctx, bson.M{
		"username": username,
		"_id":      bson.M{"$ne": excluding},
	})
	return n > 0, err
}

// ByIDs returns the users for the given id set, passwords included (callers
// strip via JSON tags).
func (s *UserStore) ByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	cur, err := s.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	return decodeUsers(ctx, cur)
}

// AllExcept returns every user but the given one.
func (s *UserStore) AllExcept(ctx context.Context, id primitive.ObjectID) ([]models.User, error) {
	cur, err := s.col.Find(ctx, bson.M{"_id": bson.M{"$ne": id}})
	if err != nil {
		return nil, err
	}
	return decodeUsers(ctx, cur)
}

// Search performs a case-insensitive substring match over username and
// fullName, excluding the requester. The query is quoted so regex
// metacharacters match literally.
func (s *UserStore) Search(ctx context.Context, query string, exclude primitive.ObjectID) ([]models.User, error) {
	pattern := primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}
	cur, err := s.col.Find(ctx, bson.M{
		"$and": bson.A{
			bson.M{"_id": bson.M{"$ne": exclude}},
			bson.M{"$or": bson.A{
				bson.M{"username": pattern},
				bson.M{"fullName": pattern},
			}},
		},
	})
	if err != nil {
		return nil, err
	}
	return decodeUsers(ctx, cur)
}

// RecordInteraction adds each user to the other's interactedUserIds set.
// Idempotent: $addToSet never grows the set with duplicates.
func (s *UserStore) RecordInteraction(ctx context.Context, a, b primitive.ObjectID) error {
	if _, err := s.col.UpdateOne(ctx, bson.M{"_id": a}, bson.M{"$addToSet": bson.M{"interactedUserIds": b}}); err != nil {
		return err
	}
	_, err := s.col.UpdateOne(ctx, bson.M{"_id": b}, bson.M{"$addToSet": bson.M{"interactedUserIds": a}})
	return err
}

// HiddenUserIDs returns which of the given hex ids belong to users with
// hideActiveStatus enabled.
func (s *UserStore) HiddenUserIDs(ctx context.Context, userIDs []string) (map[string]bool, error) {
	oids := make([]primitive.ObjectID, 0, len(userIDs))
	for _, id := range userIDs {
		oid, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		oids = append(oids, oid)
	}
	if len(oids) == 0 {
		return map[string]bool{}, nil
	}

	cur, err := s.col.Find(ctx,
		bson.M{"_id": bson.M{"$in": oids}, "hideActiveStatus": true},
		options.Find().SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	hidden := make(map[string]bool)
	for cur.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			continue
		}
		hidden[doc.ID.Hex()] = true
	}
	return hidden, cur.Err()
}

// UpdateProfilePic sets the avatar URL and returns the updated user.
func (s *UserStore) UpdateProfilePic(ctx context.Context, id primitive.ObjectID, url string) (*models.User, error) {
	return s.findOneAndUpdate(ctx, id, bson.M{"$set": bson.M{"profilePic": url}})
}

// UpdateUsername sets the handle and returns the updated user.
func (s *UserStore) UpdateUsername(ctx context.Context, id primitive.ObjectID, username string) (*models.User, error) {
	return s.findOneAndUpdate(ctx, id, bson.M{"$set": bson.M{"username": username}})
}

// UpdatePrivacy sets the hideActiveStatus flag and returns the updated user.
func (s *UserStore) UpdatePrivacy(ctx context.Context, id primitive.ObjectID, hide bool) (*models.User, error) {
	return s.findOneAndUpdate(ctx, id, bson.M{"$set": bson.M{"hideActiveStatus": hide}})
}

func (s *UserStore) findOneAndUpdate(ctx context.Context, id primitive.ObjectID, update bson.M) (*models.User, error) {
	var u models.User
	err := s.col.FindOneAndUpdate(ctx, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&u)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func decodeUsers(ctx context.Context, cur *mongo.Cursor) ([]models.User, error) {
	defer cur.Close(ctx)
	users := []models.User{}
	for cur.Next(ctx) {
		var u models.User
		if err := cur.Decode(&u); err != nil {
			continue
		}
		users = append(users, u)
	}
	return users, cur.Err()
}
