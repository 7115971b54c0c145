// Package store holds the MongoDB repositories behind the service layer.
// Every repository maps driver errors onto apperr kinds at the boundary so
// handlers never see raw driver errors.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/apperr"
	"github.com/MrHussnainAhmad/Talko-Backend-v1.1/internal/config"
)

// Connect dials MongoDB and verifies the connection with a ping.
func Connect(ctx context.Context, cfg config.MongoCfg) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, apperr.Internal("mongo connect", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, apperr.Internal("mongo ping", err)
	}
	return client, nil
}

// wrap converts a driver error into the matching apperr kind. Deadline
// overruns become timeouts so the HTTP layer serves 503 instead of 500.
func wrap(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return apperr.NotFound("%s", op)
	case errors.Is(err, context.DeadlineExceeded), mongo.IsTimeout(err):
		return apperr.Timeout(op, err)
	case mongo.IsDuplicateKeyError(err):
		return apperr.Conflict("%s", op+" already exists")
	default:
		return apperr.Internal(op, err)
	}
}
