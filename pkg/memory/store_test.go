package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/somnus/somnus/pkg/memory/backend"
	"github.com/somnus/somnus/pkg/memory/backend/inmem"
	"github.com/somnus/somnus/pkg/sleep"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.RetryBackoff = time.Millisecond
	cfg.OpTimeout = time.Second
	return cfg
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func session(date string, hours float64) sleep.Session {
	return sleep.Session{
		Date:          date,
		Bedtime:       "23:00",
		Waketime:      "07:00",
		DurationHours: hours,
	}
}

func TestPutSTMEvictsExpiredSessions(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := New(inmem.New(), testConfig(), WithClock(fixedClock(now)))

	old := session("2026-03-01", 7.5) // 9 days back, outside the 7d window
	recent := session("2026-03-08", 8.0)

	rec, err := store.PutSTM(context.Background(), "user-1", []sleep.Session{old, recent})
	if err != nil {
		t.Fatalf("PutSTM: %v", err)
	}
	if len(rec.Sessions) != 1 {
		t.Fatalf("expected 1 session after eviction, got %d", len(rec.Sessions))
	}
	if rec.Sessions[0].Date != "2026-03-08" {
		t.Errorf("kept wrong session: %s", rec.Sessions[0].Date)
	}
}

func TestPutSTMReplacesByDate(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := New(inmem.New(), testConfig(), WithClock(fixedClock(now)))
	ctx := context.Background()

	if _, err := store.PutSTM(ctx, "user-1", []sleep.Session{session("2026-03-09", 6.0)}); err != nil {
		t.Fatalf("first PutSTM: %v", err)
	}
	rec, err := store.PutSTM(ctx, "user-1", []sleep.Session{session("2026-03-09", 8.5)})
	if err != nil {
		t.Fatalf("second PutSTM: %v", err)
	}
	if len(rec.Sessions) != 1 {
		t.Fatalf("expected replace, got %d sessions", len(rec.Sessions))
	}
	if got := rec.Sessions[0].DurationHours; got != 8.5 {
		t.Errorf("expected replacing session to win, got duration %v", got)
	}
}

func TestPutSTMOrdersByDate(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := New(inmem.New(), testConfig(), WithClock(fixedClock(now)))

	rec, err := store.PutSTM(context.Background(), "user-1", []sleep.Session{
		session("2026-03-09", 8),
		session("2026-03-05", 7),
		session("2026-03-07", 6),
	})
	if err != nil {
		t.Fatalf("PutSTM: %v", err)
	}
	want := []string{"2026-03-05", "2026-03-07", "2026-03-09"}
	for i, d := range want {
		if rec.Sessions[i].Date != d {
			t.Errorf("position %d: got %s, want %s", i, rec.Sessions[i].Date, d)
		}
	}
}

func TestPutSTMHonorsMaxSessions(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cfg := testConfig()
	cfg.STMMaxSessions = 2
	store := New(inmem.New(), cfg, WithClock(fixedClock(now)))

	rec, err := store.PutSTM(context.Background(), "user-1", []sleep.Session{
		session("2026-03-05", 7),
		session("2026-03-07", 6),
		session("2026-03-09", 8),
	})
	if err != nil {
		t.Fatalf("PutSTM: %v", err)
	}
	if len(rec.Sessions) != 2 {
		t.Fatalf("expected cap at 2, got %d", len(rec.Sessions))
	}
	// The most recent sessions survive the cap.
	if rec.Sessions[0].Date != "2026-03-07" || rec.Sessions[1].Date != "2026-03-09" {
		t.Errorf("cap kept wrong sessions: %s, %s", rec.Sessions[0].Date, rec.Sessions[1].Date)
	}
}

func TestGetSTMNotFound(t *testing.T) {
	store := New(inmem.New(), testConfig())
	_, err := store.GetSTM(context.Background(), "nobody")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestUpdateMemoryWritesBothTiers(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := New(inmem.New(), testConfig(), WithClock(fixedClock(now)))
	ctx := context.Background()

	ltm := &LTMRecord{
		Trends:                Trends{AvgDuration: 7.5, DurationCount: 3},
		SleepScore:            82,
		Confidence:            0.6,
		TotalSessionsAnalyzed: 3,
	}
	stm, err := store.UpdateMemory(ctx, "user-1", []sleep.Session{session("2026-03-09", 7.5)}, ltm)
	if err != nil {
		t.Fatalf("UpdateMemory: %v", err)
	}
	if len(stm.Sessions) != 1 {
		t.Fatalf("expected 1 stored session, got %d", len(stm.Sessions))
	}

	got, err := store.GetLTM(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetLTM: %v", err)
	}
	if got.SleepScore != 82 {
		t.Errorf("LTM score = %d, want 82", got.SleepScore)
	}
	if got.UserID != "user-1" {
		t.Errorf("LTM user = %q", got.UserID)
	}
	if !got.LastUpdated.Equal(now) {
		t.Errorf("LastUpdated = %v, want %v", got.LastUpdated, now)
	}
}

// ltmFailBackend serves everything except long-term puts.
type ltmFailBackend struct {
	backend.Backend
}

func (b *ltmFailBackend) Put(ctx context.Context, userID string, tier backend.Tier, data []byte) error {
	if tier == backend.TierLTM {
		return &backend.UnavailableError{Cause: errors.New("connection reset")}
	}
	return b.Backend.Put(ctx, userID, tier, data)
}

func TestUpdateMemoryRollsBackSTMOnLTMFailure(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := New(&ltmFailBackend{Backend: inmem.New()}, testConfig(), WithClock(fixedClock(now)))
	ctx := context.Background()

	_, err := store.UpdateMemory(ctx, "user-1", []sleep.Session{session("2026-03-09", 8)}, &LTMRecord{})
	var unavail *UnavailableError
	if !errors.As(err, &unavail) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}

	// The STM merge was rolled back along with the failed LTM write.
	if _, err := store.GetSTM(ctx, "user-1"); err == nil {
		t.Fatal("expected no STM record after the rolled-back write")
	}
}

func TestUpdateMemoryRestoresPriorSTMOnLTMFailure(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	inner := inmem.New()
	ctx := context.Background()

	seed := New(inner, testConfig(), WithClock(fixedClock(now)))
	if _, err := seed.UpdateMemory(ctx, "user-1", []sleep.Session{session("2026-03-08", 7)},
		&LTMRecord{TotalSessionsAnalyzed: 1}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store := New(&ltmFailBackend{Backend: inner}, testConfig(), WithClock(fixedClock(now)))
	if _, err := store.UpdateMemory(ctx, "user-1", []sleep.Session{session("2026-03-09", 8)},
		&LTMRecord{TotalSessionsAnalyzed: 2}); err == nil {
		t.Fatal("expected UpdateMemory to fail")
	}

	rec, err := store.GetSTM(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetSTM: %v", err)
	}
	if len(rec.Sessions) != 1 || rec.Sessions[0].Date != "2026-03-08" {
		t.Errorf("expected prior STM restored, got %+v", rec.Sessions)
	}
	ltm, err := store.GetLTM(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetLTM: %v", err)
	}
	if ltm.TotalSessionsAnalyzed != 1 {
		t.Errorf("LTM changed by the failed write: %d sessions analyzed", ltm.TotalSessionsAnalyzed)
	}
}

func TestFetchMemoryReturnsNilForAbsentTiers(t *testing.T) {
	store := New(inmem.New(), testConfig())

	stm, ltm, err := store.FetchMemory(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("FetchMemory: %v", err)
	}
	if stm != nil || ltm != nil {
		t.Errorf("expected both tiers nil, got stm=%v ltm=%v", stm, ltm)
	}
}

// hookBackend runs a one-shot hook before a short-term get.
type hookBackend struct {
	backend.Backend
	mu   sync.Mutex
	hook func()
}

func (b *hookBackend) Get(ctx context.Context, userID string, tier backend.Tier) ([]byte, error) {
	if tier == backend.TierSTM {
		b.mu.Lock()
		h := b.hook
		b.hook = nil
		b.mu.Unlock()
		if h != nil {
			h()
		}
	}
	return b.Backend.Get(ctx, userID, tier)
}

func TestFetchMemoryDoesNotStraddleConcurrentWrite(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	hb := &hookBackend{Backend: inmem.New()}
	store := New(hb, testConfig(), WithClock(fixedClock(now)))
	ctx := context.Background()

	if _, err := store.UpdateMemory(ctx, "user-1", []sleep.Session{session("2026-03-08", 7)},
		&LTMRecord{TotalSessionsAnalyzed: 1}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	// While the fetch holds the user lock, start a write for the same user
	// and give it time to slip between the two tier reads if it could.
	done := make(chan struct{})
	hb.mu.Lock()
	hb.hook = func() {
		go func() {
			defer close(done)
			if _, err := store.UpdateMemory(ctx, "user-1",
				[]sleep.Session{session("2026-03-09", 8)},
				&LTMRecord{TotalSessionsAnalyzed: 2}); err != nil {
				t.Errorf("concurrent UpdateMemory: %v", err)
			}
		}()
		time.Sleep(20 * time.Millisecond)
	}
	hb.mu.Unlock()

	stm, ltm, err := store.FetchMemory(ctx, "user-1")
	if err != nil {
		t.Fatalf("FetchMemory: %v", err)
	}
	<-done

	// The fetch observes the pre-write pair; the write lands after it.
	if len(stm.Sessions) != 1 || ltm.TotalSessionsAnalyzed != 1 {
		t.Errorf("fetch straddled the write: %d sessions, %d analyzed",
			len(stm.Sessions), ltm.TotalSessionsAnalyzed)
	}
}

// failingBackend fails every call a fixed number of times, then delegates.
type failingBackend struct {
	backend.Backend
	failures int
	calls    int
}

func (f *failingBackend) Get(ctx context.Context, userID string, tier backend.Tier) ([]byte, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, &backend.UnavailableError{Cause: errors.New("connection refused")}
	}
	return f.Backend.Get(ctx, userID, tier)
}

func TestCallRetriesOnceThenSucceeds(t *testing.T) {
	inner := inmem.New()
	if err := inner.Put(context.Background(), "user-1", backend.TierSTM, []byte(`{"user_id":"user-1"}`)); err != nil {
		t.Fatalf("seed: %v", err)
	}
	fb := &failingBackend{Backend: inner, failures: 1}
	store := New(fb, testConfig())

	if _, err := store.GetSTM(context.Background(), "user-1"); err != nil {
		t.Fatalf("expected success after one retry, got %v", err)
	}
	if fb.calls != 2 {
		t.Errorf("expected 2 backend calls, got %d", fb.calls)
	}
}

func TestCallSurfacesUnavailableAfterRetry(t *testing.T) {
	fb := &failingBackend{Backend: inmem.New(), failures: 10}
	store := New(fb, testConfig())

	_, err := store.GetSTM(context.Background(), "user-1")
	var unavail *UnavailableError
	if !errors.As(err, &unavail) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	if fb.calls != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", fb.calls)
	}
}

func TestSweepEvictsIdleUser(t *testing.T) {
	clock := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	now := &clock
	store := New(inmem.New(), testConfig(), WithClock(func() time.Time { return *now }))
	ctx := context.Background()

	if _, err := store.PutSTM(ctx, "user-1", []sleep.Session{session("2026-03-09", 8)}); err != nil {
		t.Fatalf("PutSTM: %v", err)
	}

	// Advance past the retention window without further writes.
	clock = clock.Add(10 * 24 * time.Hour)
	store.Sweep(ctx)

	_, err := store.GetSTM(ctx, "user-1")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected record deleted after sweep, got %v", err)
	}
}

func TestSweepKeepsFreshSessions(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := New(inmem.New(), testConfig(), WithClock(fixedClock(now)))
	ctx := context.Background()

	if _, err := store.PutSTM(ctx, "user-1", []sleep.Session{session("2026-03-09", 8)}); err != nil {
		t.Fatalf("PutSTM: %v", err)
	}
	store.Sweep(ctx)

	rec, err := store.GetSTM(ctx, "user-1")
	if err != nil {
		t.Fatalf("GetSTM: %v", err)
	}
	if len(rec.Sessions) != 1 {
		t.Errorf("expected session kept, got %d", len(rec.Sessions))
	}
}
