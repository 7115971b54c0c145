package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/apperr"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/models"
)

// FriendEdges stores one document per unordered user pair. The unique
// pair_key index is what actually guarantees a single edge per pair;
// service-level pre-checks only shape the error message.
type FriendEdges struct {
	coll *mongo.Collection
}

func NewFriendEdges(db *mongo.Database) *FriendEdges {
	coll := db.Collection("friend_edges")
	_, _ = coll.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "pair_key", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("pair_key_unique"),
		},
		{
			Keys:    bson.D{{Key: "receiver_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("receiver_status_idx"),
		},
		{
			Keys:    bson.D{{Key: "sender_id", Value: 1}, {Key: "status", Value: 1}},
			Options: options.Index().SetName("sender_status_idx"),
		},
	})
	return &FriendEdges{coll: coll}
}

func (r *FriendEdges) Insert(ctx context.Context, e *models.FriendEdge) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.PairKey = models.PairKey(e.SenderID, e.ReceiverID)
	e.CreatedAt = time.Now().UTC()
	if _, err := r.coll.InsertOne(ctx, e); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperr.Conflict("request already exists")
		}
		return wrap("friend edge", err)
	}
	return nil
}

func (r *FriendEdges) ByID(ctx context.Context, id string) (*models.FriendEdge, error) {
	var e models.FriendEdge
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&e); err != nil {
		return nil, wrap("friend edge", err)
	}
	return &e, nil
}

// EdgeBetween returns the edge for the unordered pair, nil when none exists.
func (r *FriendEdges) EdgeBetween(ctx context.Context, a, b string) (*models.FriendEdge, error) {
	var e models.FriendEdge
	err := r.coll.FindOne(ctx, bson.M{"pair_key": models.PairKey(a, b)}).Decode(&e)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("friend edge", err)
	}
	return &e, nil
}

func (r *FriendEdges) UpdateStatus(ctx context.Context, id, status string) error {
	res, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return wrap("friend edge", err)
	}
	if res.MatchedCount == 0 {
		return apperr.NotFound("friend request")
	}
	return nil
}

func (r *FriendEdges) Delete(ctx context.Context, id string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	return wrap("friend edge", err)
}

func (r *FriendEdges) AcceptedFor(ctx context.Context, userID string) ([]models.FriendEdge, error) {
	return r.list(ctx, bson.M{
		"status": models.FriendStatusAccepted,
		"$or": bson.A{
			bson.M{"sender_id": userID},
			bson.M{"receiver_id": userID},
		},
	})
}

func (r *FriendEdges) PendingTo(ctx context.Context, userID string) ([]models.FriendEdge, error) {
	return r.list(ctx, bson.M{"receiver_id": userID, "status": models.FriendStatusPending})
}

func (r *FriendEdges) PendingFrom(ctx context.Context, userID string) ([]models.FriendEdge, error) {
	return r.list(ctx, bson.M{"sender_id": userID, "status": models.FriendStatusPending})
}

func (r *FriendEdges) list(ctx context.Context, filter bson.M) ([]models.FriendEdge, error) {
	cur, err := r.coll.Find(ctx, filter, &options.FindOptions{
		Sort: bson.D{{Key: "created_at", Value: -1}},
	})
	if err != nil {
		return nil, wrap("friend edges", err)
	}
	defer cur.Close(ctx)

	var out []models.FriendEdge
	for cur.Next(ctx) {
		var e models.FriendEdge
		if err := cur.Decode(&e); err != nil {
			return nil, wrap("friend edges", err)
		}
		out = append(out, e)
	}
	return out, wrap("friend edges", cur.Err())
}

// Blocks stores directed block edges.
type Blocks struct {
	coll *mongo.Collection
}

func NewBlocks(db *mongo.Database) *Blocks {
	coll := db.Collection("blocks")
	_, _ = coll.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "blocker_id", Value: 1}, {Key: "blocked_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("block_pair_unique"),
	})
	return &Blocks{coll: coll}
}

func (r *Blocks) IsBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	err := r.coll.FindOne(ctx, bson.M{"blocker_id": blockerID, "blocked_id": blockedID}).Err()
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, wrap("block", err)
	}
	return true, nil
}

// Insert is idempotent: blocking an already blocked user succeeds.
func (r *Blocks) Insert(ctx context.Context, blockerID, blockedID string) error {
	_, err := r.coll.InsertOne(ctx, models.BlockEdge{
		ID:        uuid.NewString(),
		BlockerID: blockerID,
		BlockedID: blockedID,
		CreatedAt: time.Now().UTC(),
	})
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return wrap("block", err)
}

func (r *Blocks) Delete(ctx context.Context, blockerID, blockedID string) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"blocker_id": blockerID, "blocked_id": blockedID})
	return wrap("block", err)
}
