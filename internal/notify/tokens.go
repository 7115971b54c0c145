package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/apperr"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/models"
)

// TokenWriter is the repository surface the registration policy needs.
type TokenWriter interface {
	Upsert(ctx context.Context, userID, token, platform string) error
	ListByAge(ctx context.Context, userID string) ([]models.DeviceToken, error)
	DeleteTokens(ctx context.Context, userID string, tokens []string) (int64, error)
	Remove(ctx context.Context, userID, token string) error
}

// TokenRegistry caps device registrations per user, evicting the oldest
// tokens once the cap is exceeded. Re-registering an existing token
// refreshes its age instead of counting twice.
type TokenRegistry struct {
	store TokenWriter
	cap   int
	log   *zap.Logger
}

func NewTokenRegistry(store TokenWriter, maxPerUser int, log *zap.Logger) *TokenRegistry {
	return &TokenRegistry{store: store, cap: maxPerUser, log: log}
}

func (r *TokenRegistry) Register(ctx context.Context, userID, token, platform string) error {
	if token == "" {
		return apperr.Validation("token is required")
	}
	if err := r.store.Upsert(ctx, userID, token, platform); err != nil {
		return err
	}
	if r.cap <= 0 {
		return nil
	}
	list, err := r.store.ListByAge(ctx, userID)
	if err != nil {
		return err
	}
	excess := len(list) - r.cap
	if excess <= 0 {
		return nil
	}
	stale := make([]string, 0, excess)
	for _, t := range list[:excess] {
		stale = append(stale, t.Token)
	}
	n, err := r.store.DeleteTokens(ctx, userID, stale)
	if err != nil {
		return err
	}
	r.log.Debug("evicted stale device tokens",
		zap.String("user_id", userID), zap.Int64("evicted", n))
	return nil
}

func (r *TokenRegistry) Unregister(ctx context.Context, userID, token string) error {
	if token == "" {
		return apperr.Validation("token is required")
	}
	return r.store.Remove(ctx, userID, token)
}
