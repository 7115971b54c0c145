package presence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps presence records in Redis so any instance can answer
// last-seen queries. Keys: <prefix>:presence:<userID>.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(userID string) string {
	return fmt.Sprintf("%s:presence:%s", s.prefix, userID)
}

func (s *RedisStore) set(ctx context.Context, userID string, st State) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(userID), b, 0).Err()
}

func (s *RedisStore) SetOnline(ctx context.Context, userID string) error {
	return s.set(ctx, userID, State{IsOnline: true, LastSeen: time.Now().UTC()})
}

func (s *RedisStore) SetOffline(ctx context.Context, userID string, lastSeen time.Time) error {
	return s.set(ctx, userID, State{IsOnline: false, LastSeen: lastSeen.UTC()})
}

func (s *RedisStore) Get(ctx context.Context, userID string) (State, error) {
	b, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if err == redis.Nil {
		return State{}, nil
	}
	if err != nil {
		return State{}, err
	}
	var st State
	if err := json.Unmarshal(b, &st); err != nil {
		return State{}, err
	}
	return st, nil
}
