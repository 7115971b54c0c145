package store

import (
	"context"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/models"
)

// Users is the account repository.
type Users struct {
	coll *mongo.Collection
}

func NewUsers(db *mongo.Database) *Users {
	coll := db.Collection("users")
	_, _ = coll.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("email_unique"),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("username_unique"),
		},
	})
	return &Users{coll: coll}
}

func (r *Users) Insert(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	u.CreatedAt = now
	u.UpdatedAt = now
	if _, err := r.coll.InsertOne(ctx, u); err != nil {
		return wrap("user", err)
	}
	return nil
}

func (r *Users) ByID(ctx context.Context, id string) (*models.User, error) {
	return r.one(ctx, bson.M{"_id": id})
}

func (r *Users) ByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.one(ctx, bson.M{"email": email})
}

func (r *Users) ByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.one(ctx, bson.M{"username": username})
}

// ByVerifyToken finds the account holding an unexpired verification token.
func (r *Users) ByVerifyToken(ctx context.Context, token string) (*models.User, error) {
	return r.one(ctx, bson.M{
		"verify_token":   token,
		"verify_expires": bson.M{"$gt": time.Now().UTC()},
	})
}

func (r *Users) one(ctx context.Context, filter bson.M) (*models.User, error) {
	var u models.User
	if err := r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		return nil, wrap("user", err)
	}
	return &u, nil
}

// MarkVerified flips the account live and discards the token fields.
func (r *Users) MarkVerified(ctx context.Context, id string) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{
		"$set":   bson.M{"is_verified": true, "updated_at": time.Now().UTC()},
		"$unset": bson.M{"verify_token": "", "verify_expires": ""},
	})
	return wrap("user verify", err)
}

// SetVerifyToken installs a fresh verification token, replacing any prior one.
func (r *Users) SetVerifyToken(ctx context.Context, id, token string, expires time.Time) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{"verify_token": token, "verify_expires": expires, "updated_at": time.Now().UTC()},
	})
	return wrap("user verify token", err)
}

// UpdateProfile applies the mutable profile fields. Empty values are skipped
// so partial updates never blank a field.
func (r *Users) UpdateProfile(ctx context.Context, id string, fullname, about, profilePic string) (*models.User, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if fullname != "" {
		set["fullname"] = fullname
	}
	if about != "" {
		set["about"] = about
	}
	if profilePic != "" {
		set["profile_pic"] = profilePic
	}
	after := options.After
	var u models.User
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set},
		&options.FindOneAndUpdateOptions{ReturnDocument: &after}).Decode(&u)
	if err != nil {
		return nil, wrap("user", err)
	}
	return &u, nil
}

// Delete removes the account document outright. Account deletion with the
// anonymization cascade lives in Deleter; this is the signup rollback path.
func (r *Users) Delete(ctx context.Context, id string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	return wrap("user", err)
}

// Search matches fullname or username by case-insensitive prefix, excluding
// the searcher and deleted accounts.
func (r *Users) Search(ctx context.Context, query, excludeID string, limit int64) ([]models.User, error) {
	pattern := "^" + regexp.QuoteMeta(query)
	filter := bson.M{
		"_id":        bson.M{"$ne": excludeID},
		"is_deleted": bson.M{"$ne": true},
		"$or": bson.A{
			bson.M{"username": bson.M{"$regex": pattern, "$options": "i"}},
			bson.M{"fullname": bson.M{"$regex": pattern, "$options": "i"}},
		},
	}
	cur, err := r.coll.Find(ctx, filter, &options.FindOptions{
		Sort:  bson.D{{Key: "username", Value: 1}},
		Limit: &limit,
	})
	if err != nil {
		return nil, wrap("user search", err)
	}
	defer cur.Close(ctx)

	var out []models.User
	for cur.Next(ctx) {
		var u models.User
		if err := cur.Decode(&u); err != nil {
			return nil, wrap("user search", err)
		}
		out = append(out, u)
	}
	return out, wrap("user search", cur.Err())
}
