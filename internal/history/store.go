// Package history remembers which grants were already surfaced to the user
// so repeated runs only show new opportunities.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "grant-scout:seen:"

type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to redis at the given address. A zero ttl keeps entries
// forever.
func New(addr string, ttl time.Duration) *Store {
	return &Store{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
		}),
		ttl: ttl,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// MarkSeen records the given grant ids.
func (s *Store) MarkSeen(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if err := s.client.Set(ctx, keyPrefix+id, time.Now().UTC().Format(time.RFC3339), s.ttl).Err(); err != nil {
			return fmt.Errorf("mark grant %s as seen: %w", id, err)
		}
	}
	return nil
}

// SeenIDs returns the subset of the given ids that were already recorded.
func (s *Store) SeenIDs(ctx context.Context, ids []string) ([]string, error) {
	seen := make([]string, 0)
	for _, id := range ids {
		if id == "" {
			continue
		}
		_, err := s.client.Get(ctx, keyPrefix+id).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("check grant %s: %w", id, err)
		}
		seen = append(seen, id)
	}
	return seen, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}
