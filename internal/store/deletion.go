package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/models"
)

// Deleter runs the account-deletion cascade inside a single transaction.
// Either everything lands or nothing does; the partially deleted account
// state is never observable.
type Deleter struct {
	client        *mongo.Client
	users         *mongo.Collection
	edges         *mongo.Collection
	blocks        *mongo.Collection
	messages      *mongo.Collection
	notifications *mongo.Collection
	tokens        *mongo.Collection
}

func NewDeleter(client *mongo.Client, db *mongo.Database) *Deleter {
	return &Deleter{
		client:        client,
		users:         db.Collection("users"),
		edges:         db.Collection("friend_edges"),
		blocks:        db.Collection("blocks"),
		messages:      db.Collection("messages"),
		notifications: db.Collection("notifications"),
		tokens:        db.Collection("device_tokens"),
	}
}

// Result reports what the cascade touched, for the follow-up socket
// notifications that run outside the transaction.
type Result struct {
	Partners  []string
	DeletedAt time.Time
}

// DeleteAccount anonymizes the user document, removes friendship and block
// edges, flags the user's authored messages, appends one system message per
// prior conversation, and clears the user's notifications and push tokens.
func (d *Deleter) DeleteAccount(ctx context.Context, userID string) (*Result, error) {
	session, err := d.client.StartSession()
	if err != nil {
		return nil, wrap("delete account", err)
	}
	defer session.EndSession(ctx)

	now := time.Now().UTC()
	res := &Result{DeletedAt: now}

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		partners, err := d.partners(sc, userID)
		if err != nil {
			return nil, err
		}
		res.Partners = partners

		// unique placeholders keep the email/username indexes satisfied
		suffix := uuid.NewString()
		_, err = d.users.UpdateByID(sc, userID, bson.M{
			"$set": bson.M{
				"fullname":    models.DeletedDisplayName,
				"username":    fmt.Sprintf("deleted_%s", suffix),
				"email":       fmt.Sprintf("deleted_%s@deleted.invalid", suffix),
				"password":    "",
				"profile_pic": "",
				"about":       "",
				"is_deleted":  true,
				"deleted_at":  now,
				"updated_at":  now,
			},
			"$unset": bson.M{"verify_token": "", "verify_expires": ""},
		})
		if err != nil {
			return nil, err
		}

		edgeFilter := bson.M{"$or": bson.A{
			bson.M{"sender_id": userID},
			bson.M{"receiver_id": userID},
		}}
		if _, err := d.edges.DeleteMany(sc, edgeFilter); err != nil {
			return nil, err
		}
		blockFilter := bson.M{"$or": bson.A{
			bson.M{"blocker_id": userID},
			bson.M{"blocked_id": userID},
		}}
		if _, err := d.blocks.DeleteMany(sc, blockFilter); err != nil {
			return nil, err
		}

		_, err = d.messages.UpdateMany(sc, bson.M{"sender_id": userID}, bson.M{
			"$set": bson.M{
				"is_deleted":  true,
				"sender_name": models.DeletedDisplayName,
				"sender_pic":  "",
			},
		})
		if err != nil {
			return nil, err
		}

		for _, partnerID := range partners {
			sys := models.Message{
				ID:             uuid.NewString(),
				ConversationID: models.PairKey(userID, partnerID),
				SenderID:       userID,
				ReceiverID:     partnerID,
				Text:           models.DeletedDisplayName + " has deleted their account.",
				SenderName:     models.DeletedDisplayName,
				IsSystem:       true,
				CreatedAt:      now,
			}
			if _, err := d.messages.InsertOne(sc, sys); err != nil {
				return nil, err
			}
		}

		if _, err := d.notifications.DeleteMany(sc, bson.M{"user_id": userID}); err != nil {
			return nil, err
		}
		if _, err := d.tokens.DeleteMany(sc, bson.M{"user_id": userID}); err != nil {
			return nil, err
		}
		return nil, nil
	})
	if err != nil {
		return nil, wrap("delete account", err)
	}
	return res, nil
}

func (d *Deleter) partners(ctx context.Context, userID string) ([]string, error) {
	senders, err := d.messages.Distinct(ctx, "sender_id", bson.M{"receiver_id": userID})
	if err != nil {
		return nil, err
	}
	receivers, err := d.messages.Distinct(ctx, "receiver_id", bson.M{"sender_id": userID})
	if err != nil {
		return nil, err
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
