package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"aracitakip/backend/internal/domain"
	"aracitakip/backend/internal/store"
)

type Store struct {
	client *redis.Client
	key    string
}

func New(addr string, password string, db int, namespace string) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &Store{client: client, key: StateKey(namespace)}
}

// StateKey is the Redis key holding the ledger blob for a namespace.
func StateKey(namespace string) string {
	if namespace == "" {
		namespace = "aracitakip"
	}
	return namespace + ":state"
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Load(ctx context.Context) (domain.State, error) {
	val, err := s.client.Get(ctx, s.key).Bytes()
	if err == redis.Nil {
		return domain.State{}, store.ErrNotFound
	}
	if err != nil {
		return domain.State{}, fmt.Errorf("redis get %s: %w", s.key, err)
	}

	var state domain.State
	if err := json.Unmarshal(val, &state); err != nil {
		return domain.State{}, fmt.Errorf("%w: %v", store.ErrCorrupt, err)
	}
	return state, nil
}

func (s *Store) Save(ctx context.Context, state domain.State) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}
