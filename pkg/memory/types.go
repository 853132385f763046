package memory

import (
	"fmt"
	"time"

	"github.com/somnus/somnus/pkg/memory/backend"
	"github.com/somnus/somnus/pkg/sleep"
)

// StoredSession is a raw session plus the time it entered short-term memory.
type StoredSession struct {
	sleep.Session
	InsertedAt time.Time `json:"inserted_at"`
}

// STMRecord is the short-term memory document for one user: the raw sessions
// of the recent window, ordered by date ascending.
type STMRecord struct {
	UserID    string          `json:"user_id"`
	Sessions  []StoredSession `json:"sessions"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Trends holds decaying running averages over the user's analysis history.
// Each average carries its own effective sample count because optional fields
// are absent from some sessions.
type Trends struct {
	AvgDuration     float64 `json:"avg_duration"`
	DurationCount   int     `json:"duration_count"`
	AvgEfficiency   float64 `json:"avg_efficiency"`
	EfficiencyCount int     `json:"efficiency_count"`
	AvgMorningMood  float64 `json:"avg_morning_mood"`
	MoodCount       int     `json:"mood_count"`
	AvgSleepScore   float64 `json:"avg_sleep_score"`
	ScoreCount      int     `json:"score_count"`
	Confidence      float64 `json:"confidence"`
}

// Pattern is a durable behavioral observation derived across batches.
type Pattern struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Confidence  float64   `json:"confidence"`
	DetectedAt  time.Time `json:"detected_at"`
}

// LTMRecord is the long-term memory document for one user: derived state
// only, no raw sessions.
type LTMRecord struct {
	UserID                string                 `json:"user_id"`
	Trends                Trends                 `json:"trends"`
	Patterns              map[string]Pattern     `json:"patterns,omitempty"`
	Preferences           sleep.Preferences      `json:"preferences"`
	Recommendations       *sleep.Recommendations `json:"recommendations,omitempty"`
	SleepScore            int                    `json:"sleep_score"`
	Confidence            float64                `json:"confidence"`
	PersonalizedTips      []string               `json:"personalized_tips,omitempty"`
	Issues                []string               `json:"issues,omitempty"`
	TotalSessionsAnalyzed int                    `json:"total_sessions_analyzed"`
	LastUpdated           time.Time              `json:"last_updated"`
}

// NotFoundError re-exports the backend type so callers can match on the
// memory package alone.
type NotFoundError = backend.NotFoundError

// UnavailableError re-exports the backend type.
type UnavailableError = backend.UnavailableError

// SerializationError indicates a stored document could not be encoded or
// decoded.
type SerializationError struct {
	UserID string
	Tier   backend.Tier
	Cause  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("memory %s for user %s: serialization failed: %v", e.Tier, e.UserID, e.Cause)
}

func (e *SerializationError) Unwrap() error { return e.Cause }
