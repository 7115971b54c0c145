package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/models"
)

// DeviceTokens stores push registration tokens. The per-user cap is a
// policy of the notify package; this repo only offers the primitives.
type DeviceTokens struct {
	coll *mongo.Collection
}

func NewDeviceTokens(db *mongo.Database) *DeviceTokens {
	coll := db.Collection("device_tokens")
	_, _ = coll.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "token", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("user_token_unique"),
		},
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("user_age_idx"),
		},
	})
	return &DeviceTokens{coll: coll}
}

// Upsert registers a token. Re-registering an existing token refreshes
// its timestamp.
func (r *DeviceTokens) Upsert(ctx context.Context, userID, token, platform string) error {
	upsert := true
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"user_id": userID, "token": token},
		bson.M{"$set": bson.M{"platform": platform, "created_at": time.Now().UTC()}},
		&options.UpdateOptions{Upsert: &upsert})
	return wrap("device token", err)
}

// ListByAge returns the user's tokens ascending by registration time.
func (r *DeviceTokens) ListByAge(ctx context.Context, userID string) ([]models.DeviceToken, error) {
	cur, err := r.coll.Find(ctx, bson.M{"user_id": userID}, &options.FindOptions{
		Sort: bson.D{{Key: "created_at", Value: 1}},
	})
	if err != nil {
		return nil, wrap("device tokens", err)
	}
	defer cur.Close(ctx)

	var out []models.DeviceToken
	for cur.Next(ctx) {
		var t models.DeviceToken
		if err := cur.Decode(&t); err != nil {
			return nil, wrap("device tokens", err)
		}
		out = append(out, t)
	}
	return out, wrap("device tokens", cur.Err())
}

// DeleteTokens removes the named tokens for the user.
func (r *DeviceTokens) DeleteTokens(ctx context.Context, userID string, tokens []string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}
	res, err := r.coll.DeleteMany(ctx, bson.M{"user_id": userID, "token": bson.M{"$in": tokens}})
	if err != nil {
		return 0, wrap("device tokens", err)
	}
	return res.DeletedCount, nil
}

func (r *DeviceTokens) Remove(ctx context.Context, userID, token string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"user_id": userID, "token": token})
	return wrap("device token", err)
}

// TokensFor returns the raw token strings for push fan-out.
func (r *DeviceTokens) TokensFor(ctx context.Context, userID string) ([]string, error) {
	cur, err := r.coll.Find(ctx, bson.M{"user_id": userID})
	if err != nil {
		return nil, wrap("device tokens", err)
	}
	defer cur.Close(ctx)

	var out []string
	for cur.Next(ctx) {
		var t models.DeviceToken
		if err := cur.Decode(&t); err != nil {
			return nil, wrap("device tokens", err)
		}
		out = append(out, t.Token)
	}
	return out, wrap("device tokens", cur.Err())
}
