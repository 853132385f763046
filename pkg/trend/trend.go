// Package trend folds fresh analysis results into long-term memory: running
// trend averages, detected behavioral patterns and derived preferences.
// Fold is a pure transform of (previous record, new inputs); the caller
// supplies "now", which only gates window eligibility and pattern timestamps.
package trend

import (
	"fmt"
	"time"

	"github.com/somnus/somnus/pkg/analyzer"
	"github.com/somnus/somnus/pkg/memory"
	"github.com/somnus/somnus/pkg/sleep"
)

// Pattern types emitted by detection. Patterns are keyed by type so
// re-detection updates in place instead of duplicating.
const (
	PatternConsistentBedtime = "consistent_bedtime"
	PatternStableDuration    = "stable_duration"
)

const (
	// BedtimePatternThreshold is the minimum bedtime concentration for the
	// consistent_bedtime pattern.
	BedtimePatternThreshold = 0.85

	// DurationSpreadThreshold is the maximum relative duration spread
	// ((max-min)/max) for the stable_duration pattern.
	DurationSpreadThreshold = 0.15

	// PatternMinSessions is the smallest batch that can detect or retire a
	// pattern.
	PatternMinSessions = 3
)

// Fold returns the long-term record updated with one analysis result and its
// session batch. A nil previous record starts fresh. The window caps how
// many days of history the running averages effectively remember; batch
// sessions dated outside the window are skipped.
func Fold(prev *memory.LTMRecord, result *sleep.AnalysisResult, batch []sleep.Session,
	profile *sleep.Profile, now time.Time, window time.Duration) *memory.LTMRecord {

	rec := &memory.LTMRecord{}
	if prev != nil {
		*rec = *prev
		rec.Patterns = clonePatterns(prev.Patterns)
	}

	maxN := effectiveCap(window)
	eligible := make([]sleep.Session, 0, len(batch))
	for _, s := range batch {
		if day, err := s.DateTime(); err == nil && now.Sub(day) > window {
			continue
		}
		eligible = append(eligible, s)
	}

	for _, s := range eligible {
		foldValue(&rec.Trends.AvgDuration, &rec.Trends.DurationCount, s.DurationHours, maxN)
		if s.EfficiencyScore != nil {
			foldValue(&rec.Trends.AvgEfficiency, &rec.Trends.EfficiencyCount, *s.EfficiencyScore, maxN)
		}
		if s.MorningMood != nil {
			foldValue(&rec.Trends.AvgMorningMood, &rec.Trends.MoodCount, float64(*s.MorningMood), maxN)
		}
	}
	foldValue(&rec.Trends.AvgSleepScore, &rec.Trends.ScoreCount, float64(result.SleepScore), maxN)
	rec.Trends.Confidence = result.Confidence

	rec.Patterns = detectPatterns(rec.Patterns, eligible, now)
	rec.Preferences = derivePreferences(rec, profile)
	if bt, ok := PreferredBedtimeFromBatch(eligible); ok {
		rec.Preferences.PreferredBedtime = bt
	}

	rec.Recommendations = result.Recommendations
	rec.SleepScore = result.SleepScore
	rec.Confidence = result.Confidence
	rec.PersonalizedTips = result.PersonalizedTips
	rec.Issues = result.Issues
	rec.TotalSessionsAnalyzed += len(eligible)
	return rec
}

// foldValue applies one running-average step: avg' = avg + (x - avg)/n'.
// The effective sample count saturates at the window cap, which turns the
// running average into a decaying one once the cap is reached.
func foldValue(avg *float64, count *int, x float64, maxN int) {
	n := *count + 1
	if maxN > 0 && n > maxN {
		n = maxN
	}
	*avg += (x - *avg) / float64(n)
	*count = n
}

// effectiveCap converts the retention window into a maximum effective sample
// count, one per day.
func effectiveCap(window time.Duration) int {
	if window <= 0 {
		return 0
	}
	return int(window / (24 * time.Hour))
}

func clonePatterns(src map[string]memory.Pattern) map[string]memory.Pattern {
	if src == nil {
		return nil
	}
	out := make(map[string]memory.Pattern, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func detectPatterns(prev map[string]memory.Pattern, batch []sleep.Session, now time.Time) map[string]memory.Pattern {
	if len(batch) < PatternMinSessions {
		return prev
	}
	patterns := prev
	if patterns == nil {
		patterns = make(map[string]memory.Pattern)
	}

	bedtimes := analyzer.BedtimeMinutes(batch)
	concentration := sleep.ClockConcentration(bedtimes)
	upsertOrRetire(patterns, concentration >= BedtimePatternThreshold, memory.Pattern{
		Type:        PatternConsistentBedtime,
		Description: "Bedtime stays within a narrow nightly window",
		Confidence:  concentration,
		DetectedAt:  now,
	})

	min, max := batch[0].DurationHours, batch[0].DurationHours
	for _, s := range batch[1:] {
		if s.DurationHours < min {
			min = s.DurationHours
		}
		if s.DurationHours > max {
			max = s.DurationHours
		}
	}
	spread := 0.0
	if max > 0 {
		spread = (max - min) / max
	}
	stableConfidence := 1 - spread/DurationSpreadThreshold
	if stableConfidence < 0 {
		stableConfidence = 0
	}
	upsertOrRetire(patterns, spread <= DurationSpreadThreshold, memory.Pattern{
		Type:        PatternStableDuration,
		Description: "Sleep duration varies little from night to night",
		Confidence:  stableConfidence,
		DetectedAt:  now,
	})

	return patterns
}

// upsertOrRetire applies the idempotent pattern rule: a detection updates the
// existing entry in place, a contradiction removes it.
func upsertOrRetire(patterns map[string]memory.Pattern, detected bool, p memory.Pattern) {
	if !detected {
		delete(patterns, p.Type)
		return
	}
	if existing, ok := patterns[p.Type]; ok {
		existing.Confidence = p.Confidence
		existing.Description = p.Description
		patterns[p.Type] = existing
		return
	}
	patterns[p.Type] = p
}

func derivePreferences(rec *memory.LTMRecord, profile *sleep.Profile) sleep.Preferences {
	prefs := rec.Preferences
	if profile != nil {
		snapshot := *profile
		prefs.Profile = &snapshot
	}
	if rec.Trends.DurationCount > 0 {
		prefs.PreferredDuration = rec.Trends.AvgDuration
	}
	return prefs
}

// PreferredBedtimeFromBatch derives the preferred bedtime string from a
// batch's median observed bedtime.
func PreferredBedtimeFromBatch(batch []sleep.Session) (string, bool) {
	med, ok := sleep.MedianClock(analyzer.BedtimeMinutes(batch))
	if !ok {
		return "", false
	}
	return sleep.FormatClock(med), true
}

// Describe renders a short human summary of the stored trends, used by the
// memory inspection API.
func Describe(t memory.Trends) string {
	if t.DurationCount == 0 {
		return "No trend history yet."
	}
	return fmt.Sprintf("Average duration %.1fh over %d sessions, last score %.0f.",
		t.AvgDuration, t.DurationCount, t.AvgSleepScore)
}
