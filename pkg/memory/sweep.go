package memory

import (
	"context"
	"errors"
	"time"

	"github.com/somnus/somnus/pkg/memory/backend"
)

// StartSweeper launches the background eviction sweep. It evicts expired
// short-term sessions for users who have had no recent writes, so retention
// holds even for idle users. Returns a stop function; a no-op stop is
// returned when sweeping is disabled.
func (s *Store) StartSweeper(ctx context.Context) (stop func()) {
	if s.cfg.SweepInterval <= 0 {
		return func() {}
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sweepCtx.Done():
				return
			case <-ticker.C:
				s.Sweep(sweepCtx)
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// Sweep runs one eviction pass over all users. Per-user failures are logged
// and do not stop the pass.
func (s *Store) Sweep(ctx context.Context) {
	users, err := s.Users(ctx)
	if err != nil {
		s.log.WarnContext(ctx, "memory sweep: listing users failed", "error", err)
		return
	}

	swept := 0
	for _, userID := range users {
		if ctx.Err() != nil {
			return
		}
		if err := s.sweepUser(ctx, userID); err != nil {
			s.log.WarnContext(ctx, "memory sweep: user failed",
				"user_id", userID, "error", err)
			continue
		}
		swept++
	}
	s.log.DebugContext(ctx, "memory sweep complete", "users", swept)
}

// sweepUser re-merges an empty batch, which evicts expired sessions. Users
// without short-term memory are skipped; an empty record left behind after
// eviction is deleted.
func (s *Store) sweepUser(ctx context.Context, userID string) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.loadSTM(ctx, userID)
	if err != nil {
		var notFound *backend.NotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}

	now := s.now().UTC()
	kept := rec.Sessions[:0]
	for _, ss := range rec.Sessions {
		if !s.expired(ss.Session, now) {
			kept = append(kept, ss)
		}
	}
	if len(kept) == len(rec.Sessions) {
		return nil
	}
	if len(kept) == 0 {
		return s.call(ctx, "delete", backend.TierSTM, func(ctx context.Context) error {
			return s.backend.Delete(ctx, userID, backend.TierSTM)
		})
	}
	rec.Sessions = kept
	rec.UpdatedAt = now
	return s.saveSTM(ctx, rec)
}
