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

// Messages stores direct-chat messages keyed by conversation.
type Messages struct {
	coll *mongo.Collection
}

func NewMessages(db *mongo.Database) *Messages {
	coll := db.Collection("messages")
	_, _ = coll.Indexes().CreateMany(context.Background(), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}},
			Options: options.Index().SetName("conversation_time_idx"),
		},
		{
			Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "receiver_id", Value: 1}, {Key: "is_read", Value: 1}},
			Options: options.Index().SetName("unread_idx"),
		},
	})
	return &Messages{coll: coll}
}

func (r *Messages) Insert(ctx context.Context, m *models.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if _, err := r.coll.InsertOne(ctx, m); err != nil {
		return wrap("message", err)
	}
	return nil
}

// ListConversation returns up to limit messages ascending by creation time.
// A non-zero before bound pages backwards from that instant.
func (r *Messages) ListConversation(ctx context.Context, conversationID string, limit int64, before time.Time) ([]models.Message, error) {
	filter := bson.M{"conversation_id": conversationID}
	if !before.IsZero() {
		filter["created_at"] = bson.M{"$lt": before}
	}
	// newest page first, then flipped, so the limit trims the oldest end
	cur, err := r.coll.Find(ctx, filter, &options.FindOptions{
		Sort:  bson.D{{Key: "created_at", Value: -1}},
		Limit: &limit,
	})
	if err != nil {
		return nil, wrap("messages", err)
	}
	defer cur.Close(ctx)

	var page []models.Message
	for cur.Next(ctx) {
		var m models.Message
		if err := cur.Decode(&m); err != nil {
			return nil, wrap("messages", err)
		}
		page = append(page, m)
	}
	if err := cur.Err(); err != nil {
		return nil, wrap("messages", err)
	}
	for i, j := 0, len(page)-1; i < j; i, j = i+1, j-1 {
		page[i], page[j] = page[j], page[i]
	}
	return page, nil
}

// MarkConversationRead stamps every unread message addressed to readerID
// and reports how many were affected.
func (r *Messages) MarkConversationRead(ctx context.Context, conversationID, readerID string, at time.Time) (int64, error) {
	res, err := r.coll.UpdateMany(ctx, bson.M{
		"conversation_id": conversationID,
		"receiver_id":     readerID,
		"is_read":         false,
	}, bson.M{
		"$set": bson.M{"is_read": true, "read_at": at},
	})
	if err != nil {
		return 0, wrap("mark read", err)
	}
	return res.ModifiedCount, nil
}

// DeleteConversation purges a conversation wholesale, used when a
// friendship is removed.
func (r *Messages) DeleteConversation(ctx context.Context, conversationID string) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"conversation_id": conversationID})
	if err != nil {
		return 0, wrap("messages", err)
	}
	return res.DeletedCount, nil
}

// ConversationPartners lists the distinct users who share a conversation
// with userID. The deletion cascade uses it to know who to notify.
func (r *Messages) ConversationPartners(ctx context.Context, userID string) ([]string, error) {
	senders, err := r.coll.Distinct(ctx, "sender_id", bson.M{"receiver_id": userID})
	if err != nil {
		return nil, wrap("partners", err)
	}
	receivers, err := r.coll.Distinct(ctx, "receiver_id", bson.M{"sender_id": userID})
	if err != nil {
		return nil, wrap("partners", err)
	}
	seen := map[string]struct{}{}
	var out []string
	for _, raw := range append(senders, receivers...) {
		id, ok := raw.(string)
		if !ok || id == userID {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
