package scorer

import (
	"testing"

	"github.com/somnus/somnus/pkg/analyzer"
	"github.com/somnus/somnus/pkg/sleep"
)

func fp(v float64) *float64 { return &v }

func metricsFor(t *testing.T, sessions []sleep.Session) *analyzer.Metrics {
	t.Helper()
	m, err := analyzer.Analyze(sessions, nil)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	return m
}

func week(duration float64, bedtime string, efficiency *float64) []sleep.Session {
	out := make([]sleep.Session, 7)
	for i := range out {
		out[i] = sleep.Session{
			Bedtime:         bedtime,
			Waketime:        "07:00",
			DurationHours:   duration,
			EfficiencyScore: efficiency,
		}
	}
	return out
}

func TestScoreConsistentWeekIsHigh(t *testing.T) {
	m := metricsFor(t, week(8.0, "23:00", fp(85)))
	score, conf := Score(m)
	if score < 85 || score > 100 {
		t.Errorf("score = %d, want high 80s-90s", score)
	}
	if conf <= 0.8 {
		t.Errorf("confidence = %v, want > 0.8 at seven samples", conf)
	}
}

func TestScoreSingleBadNightIsLow(t *testing.T) {
	m := metricsFor(t, []sleep.Session{{
		Bedtime:         "02:30",
		Waketime:        "06:30",
		DurationHours:   4.0,
		EfficiencyScore: fp(40),
	}})
	score, conf := Score(m)
	if score >= 50 {
		t.Errorf("score = %d, want < 50 for a short inefficient night", score)
	}
	if conf >= 0.3 {
		t.Errorf("confidence = %v, want low for a single sample", conf)
	}
}

func TestScoreClampInvariant(t *testing.T) {
	// Sweep the metric domain corners; score and confidence must stay in
	// range regardless of input.
	cases := []*analyzer.Metrics{
		{SampleCount: 1, AvgDuration: 3.0, ScheduleConsistency: 0, InterruptionRate: 12},
		{SampleCount: 1, AvgDuration: 16.0, ScheduleConsistency: 0, InterruptionRate: 0},
		{SampleCount: 30, AvgDuration: 8.0, AvgEfficiency: fp(100), ScheduleConsistency: 1, InterruptionRate: 0,
			EfficiencyCompleteness: 1, MoodCompleteness: 1},
		{SampleCount: 2, AvgDuration: 5.5, AvgEfficiency: fp(0), ScheduleConsistency: 0.3, InterruptionRate: 2.5},
	}
	for i, m := range cases {
		score, conf := Score(m)
		if score < 0 || score > 100 {
			t.Errorf("case %d: score %d out of range", i, score)
		}
		if conf < 0 || conf > 1 {
			t.Errorf("case %d: confidence %v out of range", i, conf)
		}
	}
}

func TestDurationAdequacyShape(t *testing.T) {
	cases := []struct {
		hours float64
		want  float64
	}{
		{3.0, 0},
		{4.0, 0.25},
		{7.0, 1},
		{8.0, 1},
		{9.0, 1},
		{16.0, 0},
	}
	for _, tc := range cases {
		if got := durationAdequacy(tc.hours); got != tc.want {
			t.Errorf("durationAdequacy(%v) = %v, want %v", tc.hours, got, tc.want)
		}
	}
}

func TestInterruptionPenaltySteps(t *testing.T) {
	cases := []struct {
		rate float64
		want float64
	}{
		{0, 1.0},
		{0.5, 0.8},
		{1, 0.8},
		{1.5, 0.6},
		{2.5, 0.4},
		{4, 0.2},
		{10, 0},
	}
	for _, tc := range cases {
		if got := interruptionPenalty(tc.rate); got != tc.want {
			t.Errorf("interruptionPenalty(%v) = %v, want %v", tc.rate, got, tc.want)
		}
	}
}

func TestMissingEfficiencyIsNeutral(t *testing.T) {
	withEff := metricsFor(t, week(8.0, "23:00", fp(40)))
	without := metricsFor(t, week(8.0, "23:00", nil))

	scoreWith, _ := Score(withEff)
	scoreWithout, _ := Score(without)
	if scoreWithout <= scoreWith {
		t.Errorf("missing efficiency (neutral 0.5) should beat a 40%% average: %d vs %d",
			scoreWithout, scoreWith)
	}

	_, confWith := Score(withEff)
	_, confWithout := Score(without)
	if confWithout >= confWith {
		t.Errorf("missing efficiency must lower confidence: %v vs %v", confWithout, confWith)
	}
}

func TestScoreDeterministic(t *testing.T) {
	m := metricsFor(t, week(6.5, "00:30", fp(78)))
	s1, c1 := Score(m)
	s2, c2 := Score(m)
	if s1 != s2 || c1 != c2 {
		t.Error("identical metrics produced different outputs")
	}
}
