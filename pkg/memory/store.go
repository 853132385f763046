// Package memory implements the two-tier per-user memory store: short-term
// memory (raw recent sessions inside a retention window) and long-term memory
// (derived trends, patterns and preferences). All writes for one user are
// serialized by a keyed lock; different users never contend.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/somnus/somnus/pkg/logger"
	"github.com/somnus/somnus/pkg/memory/backend"
	"github.com/somnus/somnus/pkg/sleep"
)

// Config holds memory store configuration.
type Config struct {
	// STMRetention is the short-term window; sessions older than this are
	// evicted on every write.
	STMRetention time.Duration

	// LTMRetention caps the effective sample count used by trend folding.
	LTMRetention time.Duration

	// STMMaxSessions is a hard cap on stored sessions per user; zero
	// disables the cap.
	STMMaxSessions int

	// OpTimeout bounds each backend call.
	OpTimeout time.Duration

	// RetryBackoff is the pause before the single retry of a failed
	// backend call.
	RetryBackoff time.Duration

	// SweepInterval is the period of the background eviction sweep; zero
	// disables sweeping.
	SweepInterval time.Duration
}

// DefaultConfig returns the default memory configuration.
func DefaultConfig() *Config {
	return &Config{
		STMRetention:   7 * 24 * time.Hour,
		LTMRetention:   365 * 24 * time.Hour,
		STMMaxSessions: 64,
		OpTimeout:      2 * time.Second,
		RetryBackoff:   100 * time.Millisecond,
		SweepInterval:  time.Hour,
	}
}

// OpRecorder receives timing for backend operations. Implemented by the
// metrics package; a nil recorder disables recording.
type OpRecorder interface {
	RecordMemoryOp(op string, tier string, duration time.Duration, err error)
}

// Store coordinates STM and LTM documents over a pluggable backend.
type Store struct {
	backend backend.Backend
	cfg     *Config
	log     logger.Logger
	rec     OpRecorder

	// now is injectable for eviction tests.
	now func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRecorder attaches an operation recorder.
func WithRecorder(rec OpRecorder) Option {
	return func(s *Store) { s.rec = rec }
}

// WithLogger overrides the store logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Store) { s.log = log }
}

// New creates a Store over the given backend.
func New(b backend.Backend, cfg *Config, opts ...Option) *Store {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	s := &Store{
		backend: b,
		cfg:     cfg,
		log:     logger.Global(),
		now:     time.Now,
		locks:   make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// STMRetention returns the configured short-term window.
func (s *Store) STMRetention() time.Duration { return s.cfg.STMRetention }

// LTMRetention returns the configured long-term window.
func (s *Store) LTMRetention() time.Duration { return s.cfg.LTMRetention }

// userLock returns the mutex for one user, creating it on first use.
func (s *Store) userLock(userID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// call runs one backend operation under the op timeout, retrying once after
// a backoff. Not-found results are returned immediately.
func (s *Store) call(ctx context.Context, op string, tier backend.Tier, fn func(ctx context.Context) error) error {
	start := s.now()
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		opCtx := ctx
		var cancel context.CancelFunc
		if s.cfg.OpTimeout > 0 {
			opCtx, cancel = context.WithTimeout(ctx, s.cfg.OpTimeout)
		}
		err = fn(opCtx)
		if cancel != nil {
			cancel()
		}

		var notFound *backend.NotFoundError
		if err == nil || errors.As(err, &notFound) {
			break
		}
		if attempt == 0 {
			s.log.WarnContext(ctx, "memory backend call failed, retrying",
				"op", op, "tier", string(tier), "error", err)
			select {
			case <-time.After(s.cfg.RetryBackoff):
			case <-ctx.Done():
				err = &backend.UnavailableError{Cause: ctx.Err()}
				attempt = 1
			}
		}
	}
	if s.rec != nil {
		s.rec.RecordMemoryOp(op, string(tier), time.Since(start), err)
	}
	return err
}

func (s *Store) loadSTM(ctx context.Context, userID string) (*STMRecord, error) {
	var data []byte
	err := s.call(ctx, "get", backend.TierSTM, func(ctx context.Context) error {
		var err error
		data, err = s.backend.Get(ctx, userID, backend.TierSTM)
		return err
	})
	if err != nil {
		return nil, err
	}
	var rec STMRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &SerializationError{UserID: userID, Tier: backend.TierSTM, Cause: err}
	}
	return &rec, nil
}

func (s *Store) saveSTM(ctx context.Context, rec *STMRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return &SerializationError{UserID: rec.UserID, Tier: backend.TierSTM, Cause: err}
	}
	return s.call(ctx, "put", backend.TierSTM, func(ctx context.Context) error {
		return s.backend.Put(ctx, rec.UserID, backend.TierSTM, data)
	})
}

func (s *Store) loadLTM(ctx context.Context, userID string) (*LTMRecord, error) {
	var data []byte
	err := s.call(ctx, "get", backend.TierLTM, func(ctx context.Context) error {
		var err error
		data, err = s.backend.Get(ctx, userID, backend.TierLTM)
		return err
	})
	if err != nil {
		return nil, err
	}
	var rec LTMRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &SerializationError{UserID: userID, Tier: backend.TierLTM, Cause: err}
	}
	return &rec, nil
}

func (s *Store) saveLTM(ctx context.Context, rec *LTMRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return &SerializationError{UserID: rec.UserID, Tier: backend.TierLTM, Cause: err}
	}
	return s.call(ctx, "put", backend.TierLTM, func(ctx context.Context) error {
		return s.backend.Put(ctx, rec.UserID, backend.TierLTM, data)
	})
}

// GetSTM returns the short-term record for the user, or NotFoundError.
func (s *Store) GetSTM(ctx context.Context, userID string) (*STMRecord, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return s.loadSTM(ctx, userID)
}

// PutSTM merges a batch of sessions into short-term memory: expired sessions
// are evicted first, then the batch merges keyed by session date with the
// incoming session replacing any stored one for the same date. Returns the
// resulting record.
func (s *Store) PutSTM(ctx context.Context, userID string, sessions []sleep.Session) (*STMRecord, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return s.mergeSTM(ctx, userID, sessions)
}

// GetLTM returns the long-term record for the user, or NotFoundError.
func (s *Store) GetLTM(ctx context.Context, userID string) (*LTMRecord, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return s.loadLTM(ctx, userID)
}

// PutLTM stores the long-term record for the user.
func (s *Store) PutLTM(ctx context.Context, userID string, rec *LTMRecord) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	rec.UserID = userID
	rec.LastUpdated = s.now().UTC()
	return s.saveLTM(ctx, rec)
}

// UpdateMemory applies the STM merge and the LTM write under a single lock
// acquisition, so readers observe either both tiers updated or neither. When
// the LTM save fails after the STM document was already replaced, the prior
// STM document is restored before the error is returned.
func (s *Store) UpdateMemory(ctx context.Context, userID string, sessions []sleep.Session, ltm *LTMRecord) (*STMRecord, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	prior, hadPrior, err := s.rawSTM(ctx, userID)
	if err != nil {
		return nil, err
	}

	rec := &STMRecord{UserID: userID}
	if hadPrior {
		if err := json.Unmarshal(prior, rec); err != nil {
			return nil, &SerializationError{UserID: userID, Tier: backend.TierSTM, Cause: err}
		}
	}
	s.foldBatch(rec, sessions)
	if err := s.saveSTM(ctx, rec); err != nil {
		return nil, err
	}

	ltm.UserID = userID
	ltm.LastUpdated = s.now().UTC()
	if err := s.saveLTM(ctx, ltm); err != nil {
		s.restoreSTM(userID, prior, hadPrior)
		return nil, err
	}
	return rec, nil
}

// rawSTM reads the raw short-term document; an absent document is not an
// error here.
func (s *Store) rawSTM(ctx context.Context, userID string) ([]byte, bool, error) {
	var data []byte
	err := s.call(ctx, "get", backend.TierSTM, func(ctx context.Context) error {
		var err error
		data, err = s.backend.Get(ctx, userID, backend.TierSTM)
		return err
	})
	if err != nil {
		var notFound *backend.NotFoundError
		if errors.As(err, &notFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// restoreSTM puts back the pre-merge short-term document after a failed LTM
// save. Runs on a fresh context because the caller's may already be
// cancelled. A failed restore leaves the tiers inconsistent and is logged.
func (s *Store) restoreSTM(userID string, prior []byte, hadPrior bool) {
	ctx := context.Background()
	var err error
	if hadPrior {
		err = s.call(ctx, "put", backend.TierSTM, func(ctx context.Context) error {
			return s.backend.Put(ctx, userID, backend.TierSTM, prior)
		})
	} else {
		err = s.call(ctx, "delete", backend.TierSTM, func(ctx context.Context) error {
			return s.backend.Delete(ctx, userID, backend.TierSTM)
		})
	}
	if err != nil {
		s.log.Error("failed to restore short-term memory after long-term write failure",
			"user_id", userID, "error", err)
	}
}

// FetchMemory reads both tiers under one lock acquisition, so the returned
// pair is always consistent with respect to UpdateMemory. An absent tier
// comes back nil; backend unavailability on either tier fails the fetch.
func (s *Store) FetchMemory(ctx context.Context, userID string) (*STMRecord, *LTMRecord, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	stm, err := s.loadSTM(ctx, userID)
	if err != nil {
		var notFound *backend.NotFoundError
		if !errors.As(err, &notFound) {
			return nil, nil, err
		}
		stm = nil
	}
	ltm, err := s.loadLTM(ctx, userID)
	if err != nil {
		var notFound *backend.NotFoundError
		if !errors.As(err, &notFound) {
			return nil, nil, err
		}
		ltm = nil
	}
	return stm, ltm, nil
}

// DeleteSTM removes the user's short-term record.
func (s *Store) DeleteSTM(ctx context.Context, userID string) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return s.call(ctx, "delete", backend.TierSTM, func(ctx context.Context) error {
		return s.backend.Delete(ctx, userID, backend.TierSTM)
	})
}

// DeleteLTM removes the user's long-term record.
func (s *Store) DeleteLTM(ctx context.Context, userID string) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return s.call(ctx, "delete", backend.TierLTM, func(ctx context.Context) error {
		return s.backend.Delete(ctx, userID, backend.TierLTM)
	})
}

// Users lists user IDs with stored memory.
func (s *Store) Users(ctx context.Context) ([]string, error) {
	var users []string
	err := s.call(ctx, "users", "", func(ctx context.Context) error {
		var err error
		users, err = s.backend.Users(ctx)
		return err
	})
	return users, err
}

// Close closes the underlying backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// mergeSTM loads, evicts, merges and saves; callers hold the user lock.
func (s *Store) mergeSTM(ctx context.Context, userID string, sessions []sleep.Session) (*STMRecord, error) {
	rec, err := s.loadSTM(ctx, userID)
	if err != nil {
		var notFound *backend.NotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		rec = &STMRecord{UserID: userID}
	}
	s.foldBatch(rec, sessions)
	if err := s.saveSTM(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// foldBatch evicts expired sessions and merges the batch into the record,
// keyed by session date with the incoming session replacing any stored one
// for the same date.
func (s *Store) foldBatch(rec *STMRecord, sessions []sleep.Session) {
	now := s.now().UTC()
	byDate := make(map[string]StoredSession, len(rec.Sessions)+len(sessions))
	for _, ss := range rec.Sessions {
		if s.expired(ss.Session, now) {
			continue
		}
		byDate[ss.Date] = ss
	}
	for _, sess := range sessions {
		if s.expired(sess, now) {
			continue
		}
		byDate[sess.Date] = StoredSession{Session: sess, InsertedAt: now}
	}

	merged := make([]StoredSession, 0, len(byDate))
	for _, ss := range byDate {
		merged = append(merged, ss)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Date < merged[j].Date })

	if s.cfg.STMMaxSessions > 0 && len(merged) > s.cfg.STMMaxSessions {
		merged = merged[len(merged)-s.cfg.STMMaxSessions:]
	}

	rec.Sessions = merged
	rec.UpdatedAt = now
}

// expired reports whether a session's date falls outside the short-term
// window. Unparseable dates count as expired; validation upstream should
// have rejected them.
func (s *Store) expired(sess sleep.Session, now time.Time) bool {
	day, err := sess.DateTime()
	if err != nil {
		return true
	}
	return now.Sub(day) > s.cfg.STMRetention
}
