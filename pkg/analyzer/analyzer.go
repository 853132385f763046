// Package analyzer computes descriptive metrics and issue flags from a batch
// of sleep sessions. The output is deterministic: same sessions and profile,
// same metrics, same issues in the same order.
package analyzer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/somnus/somnus/pkg/sleep"
)

// ErrNoSessions is returned when there is nothing to analyze.
var ErrNoSessions = errors.New("analyzer: no sessions to analyze")

// Threshold constants for issue detection.
const (
	OptimalDurationMin = 7.0
	OptimalDurationMax = 9.0

	// ConsistencyThreshold flags an irregular schedule; only applied with at
	// least two bedtime samples.
	ConsistencyThreshold = 0.7

	// InterruptionRateThreshold flags frequent awakenings, in interruptions
	// per session.
	InterruptionRateThreshold = 1.0

	// EfficiencyThreshold flags poor sleep quality, in percent.
	EfficiencyThreshold = 70.0

	// ScreenTimeWarningHours flags excessive pre-sleep screen exposure.
	ScreenTimeWarningHours = 1.0

	// CaffeineImpactEfficiency is the efficiency below which a medium or
	// high caffeine intake is considered a likely contributor.
	CaffeineImpactEfficiency = 75.0
)

// Metrics is the full descriptive output of one analysis.
type Metrics struct {
	SampleCount int

	AvgDuration float64
	MinDuration float64
	MaxDuration float64

	// AvgEfficiency is nil when no session carried an efficiency score;
	// sessions lacking the field are excluded from the average, not zeroed.
	AvgEfficiency *float64

	// ScheduleConsistency is the circular concentration of bedtimes in
	// [0,1]; 0.5 is the neutral value below two samples.
	ScheduleConsistency float64

	// InterruptionRate is the mean number of interruptions per session.
	InterruptionRate float64

	AvgMorningMood *float64

	// Bedtimes holds the parseable bedtime samples in minutes after
	// midnight, in batch order. Downstream consumers derive the median
	// recommended bedtime from them.
	Bedtimes []int

	// EfficiencyCompleteness and MoodCompleteness are the fractions of
	// sessions carrying each optional field, feeding confidence scoring.
	EfficiencyCompleteness float64
	MoodCompleteness       float64

	Issues  []string
	Summary string
}

// BedtimeMinutes returns the parseable bedtimes of a batch as minutes after
// midnight, preserving order.
func BedtimeMinutes(sessions []sleep.Session) []int {
	out := make([]int, 0, len(sessions))
	for _, s := range sessions {
		if m, err := sleep.ParseClock(s.Bedtime); err == nil {
			out = append(out, m)
		}
	}
	return out
}

// Analyze computes metrics and issue flags for a session batch. The profile
// may be nil; profile-gated issues then fall back to the documented defaults.
func Analyze(sessions []sleep.Session, profile *sleep.Profile) (*Metrics, error) {
	if len(sessions) == 0 {
		return nil, ErrNoSessions
	}

	m := &Metrics{SampleCount: len(sessions)}

	var durationSum float64
	m.MinDuration = sessions[0].DurationHours
	m.MaxDuration = sessions[0].DurationHours
	for _, s := range sessions {
		durationSum += s.DurationHours
		if s.DurationHours < m.MinDuration {
			m.MinDuration = s.DurationHours
		}
		if s.DurationHours > m.MaxDuration {
			m.MaxDuration = s.DurationHours
		}
	}
	m.AvgDuration = durationSum / float64(len(sessions))

	var effSum float64
	effCount := 0
	for _, s := range sessions {
		if s.EfficiencyScore != nil {
			effSum += *s.EfficiencyScore
			effCount++
		}
	}
	if effCount > 0 {
		avg := effSum / float64(effCount)
		m.AvgEfficiency = &avg
	}
	m.EfficiencyCompleteness = float64(effCount) / float64(len(sessions))

	var moodSum float64
	moodCount := 0
	for _, s := range sessions {
		if s.MorningMood != nil {
			moodSum += float64(*s.MorningMood)
			moodCount++
		}
	}
	if moodCount > 0 {
		avg := moodSum / float64(moodCount)
		m.AvgMorningMood = &avg
	}
	m.MoodCompleteness = float64(moodCount) / float64(len(sessions))

	m.Bedtimes = BedtimeMinutes(sessions)
	m.ScheduleConsistency = sleep.ClockConcentration(m.Bedtimes)

	total := 0
	for _, s := range sessions {
		total += len(s.Interruptions)
	}
	m.InterruptionRate = float64(total) / float64(len(sessions))

	m.Issues = identifyIssues(m, profile, len(m.Bedtimes))
	m.Summary = summarize(m)
	return m, nil
}

// identifyIssues derives the ordered issue list. Order is fixed: duration,
// consistency, efficiency, interruptions, screen time, caffeine.
func identifyIssues(m *Metrics, profile *sleep.Profile, bedtimeSamples int) []string {
	issues := make([]string, 0, 4)

	if m.AvgDuration < OptimalDurationMin {
		issues = append(issues, fmt.Sprintf(
			"Average sleep duration is too short (%.1f hours). Aim for 7-9 hours.", m.AvgDuration))
	} else if m.AvgDuration > OptimalDurationMax {
		issues = append(issues, fmt.Sprintf(
			"Average sleep duration is too long (%.1f hours). Consider if you need this much sleep.", m.AvgDuration))
	}

	if bedtimeSamples >= 2 && m.ScheduleConsistency < ConsistencyThreshold {
		issues = append(issues,
			"Sleep schedule is inconsistent. Try maintaining the same bedtime and wake time.")
	}

	if m.AvgEfficiency != nil && *m.AvgEfficiency < EfficiencyThreshold {
		issues = append(issues, fmt.Sprintf(
			"Sleep efficiency is low (%.0f%%). Focus on improving sleep quality.", *m.AvgEfficiency))
	}

	if m.InterruptionRate > InterruptionRateThreshold {
		issues = append(issues,
			"Frequent sleep interruptions detected. Consider optimizing your sleep environment.")
	}

	if profile.EffectiveScreenTime() > ScreenTimeWarningHours {
		issues = append(issues, fmt.Sprintf(
			"Reduce screen time before bed (currently %.1f hours).", profile.EffectiveScreenTime()))
	}

	switch profile.EffectiveCaffeine() {
	case sleep.CaffeineMedium, sleep.CaffeineHigh:
		if m.AvgEfficiency != nil && *m.AvgEfficiency < CaffeineImpactEfficiency {
			issues = append(issues,
				"Caffeine intake may be affecting sleep quality. Avoid caffeine after 8 PM.")
		}
	}

	return issues
}

func summarize(m *Metrics) string {
	parts := []string{
		fmt.Sprintf("Average sleep duration: %.1f hours", m.AvgDuration),
	}
	if m.AvgEfficiency != nil {
		parts = append(parts, fmt.Sprintf("Average efficiency: %.0f%%", *m.AvgEfficiency))
	}
	parts = append(parts, fmt.Sprintf("Schedule consistency: %.0f%%", m.ScheduleConsistency*100))
	return strings.Join(parts, ". ") + "."
}
