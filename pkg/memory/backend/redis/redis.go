// Package redis provides a Redis-backed implementation of the memory backend
// for deployments that share memory state across instances.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/somnus/somnus/pkg/memory/backend"
)

const defaultKeyPrefix = "somnus:memory:"

// Config holds configuration for the Redis backend.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	// TTL expires documents server-side; zero keeps them until deleted.
	TTL time.Duration
}

// Store implements backend.Backend using Redis.
type Store struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// New creates a Redis backend and verifies connectivity.
func New(ctx context.Context, cfg *Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, &backend.UnavailableError{Cause: err}
	}
	return NewWithClient(client, cfg), nil
}

// NewWithClient wraps an existing client, useful for tests and clusters.
func NewWithClient(client redis.UniversalClient, cfg *Config) *Store {
	prefix := defaultKeyPrefix
	if cfg != nil && cfg.KeyPrefix != "" {
		prefix = cfg.KeyPrefix
	}
	var ttl time.Duration
	if cfg != nil {
		ttl = cfg.TTL
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store) docKey(userID string, tier backend.Tier) string {
	return fmt.Sprintf("%s%s:%s", s.prefix, userID, tier)
}

// Get retrieves the document for (user, tier).
func (s *Store) Get(ctx context.Context, userID string, tier backend.Tier) ([]byte, error) {
	data, err := s.client.Get(ctx, s.docKey(userID, tier)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, &backend.NotFoundError{UserID: userID, Tier: tier}
		}
		return nil, &backend.UnavailableError{Cause: err}
	}
	return data, nil
}

// Put stores the document for (user, tier).
func (s *Store) Put(ctx context.Context, userID string, tier backend.Tier, data []byte) error {
	if err := s.client.Set(ctx, s.docKey(userID, tier), data, s.ttl).Err(); err != nil {
		return &backend.UnavailableError{Cause: err}
	}
	return nil
}

// Delete removes the document for (user, tier).
func (s *Store) Delete(ctx context.Context, userID string, tier backend.Tier) error {
	if err := s.client.Del(ctx, s.docKey(userID, tier)).Err(); err != nil {
		return &backend.UnavailableError{Cause: err}
	}
	return nil
}

// Users lists distinct user IDs via a SCAN over the key prefix.
func (s *Store) Users(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	iter := s.client.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		// Key form: {prefix}{userID}:{tier}. User IDs may contain colons, so
		// strip the tier from the right.
		rest := strings.TrimPrefix(iter.Val(), s.prefix)
		if i := strings.LastIndex(rest, ":"); i > 0 {
			seen[rest[:i]] = struct{}{}
		}
	}
	if err := iter.Err(); err != nil {
		return nil, &backend.UnavailableError{Cause: err}
	}

	users := make([]string, 0, len(seen))
	for id := range seen {
		users = append(users, id)
	}
	sort.Strings(users)
	return users, nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
