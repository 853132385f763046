// Package badger provides a Badger-backed implementation of the memory
// backend, the default durable store for single-node deployments.
package badger

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/somnus/somnus/pkg/logger"
	"github.com/somnus/somnus/pkg/memory/backend"
)

const keyPrefix = "memory:"

// Config holds configuration for the Badger backend.
type Config struct {
	Path              string
	SyncWrites        bool
	ValueLogFileSize  int64
	NumVersionsToKeep int
}

// Store implements backend.Backend using Badger.
type Store struct {
	db *badger.DB
}

// New opens (or creates) the Badger database at cfg.Path.
func New(cfg *Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	opts.SyncWrites = cfg.SyncWrites
	if cfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	if cfg.NumVersionsToKeep > 0 {
		opts.NumVersionsToKeep = cfg.NumVersionsToKeep
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, &backend.UnavailableError{Cause: err}
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an externally managed Badger database. Close becomes a
// no-op; the caller owns the database lifecycle.
func NewWithDB(db *badger.DB) *Store {
	return &Store{db: db}
}

func docKey(userID string, tier backend.Tier) []byte {
	return []byte(fmt.Sprintf("%s%s:%s", keyPrefix, userID, tier))
}

// Get retrieves the document for (user, tier).
func (s *Store) Get(ctx context.Context, userID string, tier backend.Tier) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(docKey(userID, tier))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return &backend.NotFoundError{UserID: userID, Tier: tier}
			}
			return &backend.UnavailableError{Cause: err}
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Put stores the document for (user, tier).
func (s *Store) Put(ctx context.Context, userID string, tier backend.Tier, data []byte) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(docKey(userID, tier), data)
	})
	if err != nil {
		return &backend.UnavailableError{Cause: err}
	}
	return nil
}

// Delete removes the document for (user, tier).
func (s *Store) Delete(ctx context.Context, userID string, tier backend.Tier) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(docKey(userID, tier))
	})
	if err != nil {
		return &backend.UnavailableError{Cause: err}
	}
	return nil
}

// Users lists distinct user IDs with at least one stored document.
func (s *Store) Users(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefix)
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := string(it.Item().Key())
			// Key form: memory:{userID}:{tier}. User IDs may contain colons,
			// so strip the known tier suffix instead of splitting.
			rest := strings.TrimPrefix(key, keyPrefix)
			if i := strings.LastIndex(rest, ":"); i > 0 {
				seen[rest[:i]] = struct{}{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, &backend.UnavailableError{Cause: err}
	}

	users := make([]string, 0, len(seen))
	for id := range seen {
		users = append(users, id)
	}
	sort.Strings(users)
	return users, nil
}

// Close runs a value log GC pass and closes the database.
func (s *Store) Close() error {
	// GC failure is not fatal for close.
	if err := s.db.RunValueLogGC(0.5); err != nil && err != badger.ErrNoRewrite {
		logger.Global().Warn("badger value log GC failed on close", "error", err)
	}
	return s.db.Close()
}
