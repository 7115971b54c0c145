package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/models"
)

// Inbox persists tier-3 notifications until the user reads or clears them.
type Inbox struct {
	coll *mongo.Collection
}

func NewInbox(db *mongo.Database) *Inbox {
	coll := db.Collection("notifications")
	_, _ = coll.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
		Options: options.Index().SetName("user_time_idx"),
	})
	return &Inbox{coll: coll}
}

func (r *Inbox) Append(ctx context.Context, n models.InboxNotification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := r.coll.InsertOne(ctx, n)
	return wrap("notification", err)
}

// List returns the newest notifications first.
func (r *Inbox) List(ctx context.Context, userID string, limit int64) ([]models.InboxNotification, error) {
	cur, err := r.coll.Find(ctx, bson.M{"user_id": userID}, &options.FindOptions{
		Sort:  bson.D{{Key: "created_at", Value: -1}},
		Limit: &limit,
	})
	if err != nil {
		return nil, wrap("notifications", err)
	}
	defer cur.Close(ctx)

	var out []models.InboxNotification
	for cur.Next(ctx) {
		var n models.InboxNotification
		if err := cur.Decode(&n); err != nil {
			return nil, wrap("notifications", err)
		}
		out = append(out, n)
	}
	return out, wrap("notifications", cur.Err())
}

func (r *Inbox) UnreadCount(ctx context.Context, userID string) (int64, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"user_id": userID, "read": false})
	if err != nil {
		return 0, wrap("notifications", err)
	}
	return n, nil
}

// MarkRead marks one notification, scoped to its owner.
func (r *Inbox) MarkRead(ctx context.Context, userID, id string) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "user_id": userID},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return wrap("notification", err)
	}
	if res.MatchedCount == 0 {
		return wrap("notification", mongo.ErrNoDocuments)
	}
	return nil
}

func (r *Inbox) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"user_id": userID, "read": false},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, wrap("notifications", err)
	}
	return res.ModifiedCount, nil
}

func (r *Inbox) Clear(ctx context.Context, userID string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, wrap("notifications", err)
	}
	return res.DeletedCount, nil
}
