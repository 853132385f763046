package trend

import (
	"math"
	"testing"
	"time"

	"github.com/somnus/somnus/pkg/memory"
	"github.com/somnus/somnus/pkg/sleep"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

const window = 365 * 24 * time.Hour

func fp(v float64) *float64 { return &v }

func batch(durations []float64, bedtime string) []sleep.Session {
	out := make([]sleep.Session, len(durations))
	for i, d := range durations {
		out[i] = sleep.Session{
			Date:          testNow.AddDate(0, 0, -(len(durations) - i)).Format(sleep.DateLayout),
			Bedtime:       bedtime,
			Waketime:      "07:00",
			DurationHours: d,
		}
	}
	return out
}

func result(score int, conf float64) *sleep.AnalysisResult {
	return &sleep.AnalysisResult{SleepScore: score, Confidence: conf}
}

func TestFoldFreshRecord(t *testing.T) {
	rec := Fold(nil, result(80, 0.7), batch([]float64{7, 8, 9}, "23:00"), nil, testNow, window)
	if got := rec.Trends.AvgDuration; math.Abs(got-8.0) > 1e-9 {
		t.Errorf("AvgDuration = %v, want 8", got)
	}
	if rec.Trends.DurationCount != 3 {
		t.Errorf("DurationCount = %d", rec.Trends.DurationCount)
	}
	if rec.Trends.AvgSleepScore != 80 {
		t.Errorf("AvgSleepScore = %v", rec.Trends.AvgSleepScore)
	}
	if rec.TotalSessionsAnalyzed != 3 {
		t.Errorf("TotalSessionsAnalyzed = %d", rec.TotalSessionsAnalyzed)
	}
	if rec.SleepScore != 80 || rec.Confidence != 0.7 {
		t.Errorf("last score/confidence = %d/%v", rec.SleepScore, rec.Confidence)
	}
}

func TestFoldIncrementalEqualsBatch(t *testing.T) {
	sessions := batch([]float64{6.5, 7.25, 8.0, 8.75, 7.1}, "23:00")
	res := result(75, 0.6)

	whole := Fold(nil, res, sessions, nil, testNow, window)

	var oneAtATime *memory.LTMRecord
	for _, s := range sessions {
		// Score folds once per call; keep the duration averages comparable
		// by folding sessions only.
		oneAtATime = Fold(oneAtATime, &sleep.AnalysisResult{}, []sleep.Session{s}, nil, testNow, window)
	}

	if math.Abs(whole.Trends.AvgDuration-oneAtATime.Trends.AvgDuration) > 1e-9 {
		t.Errorf("incremental avg %v != batch avg %v",
			oneAtATime.Trends.AvgDuration, whole.Trends.AvgDuration)
	}
	if whole.Trends.DurationCount != oneAtATime.Trends.DurationCount {
		t.Errorf("counts differ: %d vs %d",
			whole.Trends.DurationCount, oneAtATime.Trends.DurationCount)
	}
}

func TestFoldSkipsSessionsOutsideWindow(t *testing.T) {
	old := sleep.Session{
		Date:          testNow.AddDate(-2, 0, 0).Format(sleep.DateLayout),
		Bedtime:       "23:00",
		Waketime:      "07:00",
		DurationHours: 4,
	}
	fresh := batch([]float64{8}, "23:00")
	rec := Fold(nil, result(80, 0.7), append([]sleep.Session{old}, fresh...), nil, testNow, window)
	if rec.Trends.DurationCount != 1 {
		t.Errorf("expected aged-out session skipped, count = %d", rec.Trends.DurationCount)
	}
	if rec.Trends.AvgDuration != 8 {
		t.Errorf("AvgDuration = %v", rec.Trends.AvgDuration)
	}
}

func TestFoldCapsEffectiveSamples(t *testing.T) {
	shortWindow := 3 * 24 * time.Hour
	sessions := batch([]float64{8, 8, 8}, "23:00")
	rec := Fold(nil, result(80, 0.7), sessions, nil, testNow, shortWindow)

	// The cap is reached; further folds decay rather than accumulate.
	rec = Fold(rec, result(80, 0.7), batch([]float64{4}, "23:00"), nil, testNow, shortWindow)
	if rec.Trends.DurationCount != 3 {
		t.Errorf("count should saturate at 3, got %d", rec.Trends.DurationCount)
	}
	want := 8 + (4.0-8.0)/3
	if math.Abs(rec.Trends.AvgDuration-want) > 1e-9 {
		t.Errorf("AvgDuration = %v, want %v", rec.Trends.AvgDuration, want)
	}
}

func TestPatternDetectionAndIdempotence(t *testing.T) {
	sessions := batch([]float64{8, 8.1, 7.9}, "23:00")
	rec := Fold(nil, result(85, 0.8), sessions, nil, testNow, window)

	if _, ok := rec.Patterns[PatternConsistentBedtime]; !ok {
		t.Fatalf("expected consistent_bedtime pattern, got %v", rec.Patterns)
	}
	if _, ok := rec.Patterns[PatternStableDuration]; !ok {
		t.Fatalf("expected stable_duration pattern, got %v", rec.Patterns)
	}
	firstDetected := rec.Patterns[PatternConsistentBedtime].DetectedAt

	// Re-detection updates in place; no duplicates, original DetectedAt kept.
	rec = Fold(rec, result(85, 0.8), sessions, nil, testNow.Add(24*time.Hour), window)
	if len(rec.Patterns) != 2 {
		t.Errorf("expected 2 patterns after re-detection, got %d", len(rec.Patterns))
	}
	if !rec.Patterns[PatternConsistentBedtime].DetectedAt.Equal(firstDetected) {
		t.Error("re-detection should keep the original detection time")
	}
}

func TestPatternRetiredWhenContradicted(t *testing.T) {
	consistent := batch([]float64{8, 8, 8}, "23:00")
	rec := Fold(nil, result(85, 0.8), consistent, nil, testNow, window)
	if _, ok := rec.Patterns[PatternConsistentBedtime]; !ok {
		t.Fatal("expected pattern before contradiction")
	}

	scattered := []sleep.Session{
		{Date: "2026-03-07", Bedtime: "21:00", Waketime: "05:00", DurationHours: 8},
		{Date: "2026-03-08", Bedtime: "01:30", Waketime: "09:30", DurationHours: 4},
		{Date: "2026-03-09", Bedtime: "05:00", Waketime: "13:00", DurationHours: 12},
	}
	rec = Fold(rec, result(60, 0.5), scattered, nil, testNow, window)
	if _, ok := rec.Patterns[PatternConsistentBedtime]; ok {
		t.Error("contradicted bedtime pattern should be retired")
	}
	if _, ok := rec.Patterns[PatternStableDuration]; ok {
		t.Error("contradicted duration pattern should be retired")
	}
}

func TestSmallBatchLeavesPatternsAlone(t *testing.T) {
	rec := Fold(nil, result(85, 0.8), batch([]float64{8, 8, 8}, "23:00"), nil, testNow, window)
	before := len(rec.Patterns)

	rec = Fold(rec, result(40, 0.2), batch([]float64{4}, "03:00"), nil, testNow, window)
	if len(rec.Patterns) != before {
		t.Errorf("a sub-threshold batch must not change patterns: %d -> %d",
			before, len(rec.Patterns))
	}
}

func TestPreferencesSnapshot(t *testing.T) {
	profile := &sleep.Profile{Age: 35, CaffeineIntake: sleep.CaffeineLow}
	rec := Fold(nil, result(80, 0.7), batch([]float64{7.5, 7.5, 7.5}, "22:40"), profile, testNow, window)

	if rec.Preferences.Profile == nil || rec.Preferences.Profile.Age != 35 {
		t.Errorf("expected profile snapshot, got %+v", rec.Preferences.Profile)
	}
	if rec.Preferences.PreferredDuration != 7.5 {
		t.Errorf("PreferredDuration = %v", rec.Preferences.PreferredDuration)
	}
	if rec.Preferences.PreferredBedtime != "22:40" {
		t.Errorf("PreferredBedtime = %v", rec.Preferences.PreferredBedtime)
	}

	// Fold does not alias the caller's profile.
	profile.Age = 99
	if rec.Preferences.Profile.Age != 35 {
		t.Error("preferences must snapshot, not alias, the profile")
	}
}

func TestFoldDoesNotMutatePrevious(t *testing.T) {
	first := Fold(nil, result(80, 0.7), batch([]float64{8, 8, 8}, "23:00"), nil, testNow, window)
	beforeCount := first.Trends.DurationCount
	beforePatterns := len(first.Patterns)

	_ = Fold(first, result(40, 0.3), batch([]float64{4, 4, 4}, "02:00"), nil, testNow, window)
	if first.Trends.DurationCount != beforeCount {
		t.Error("Fold mutated the previous record's trends")
	}
	if len(first.Patterns) != beforePatterns {
		t.Error("Fold mutated the previous record's patterns")
	}
}
