// Package scorer maps analysis metrics to a 0-100 sleep score and a 0-1
// confidence. Both outputs are deterministic and clamped by construction.
package scorer

import (
	"math"

	"github.com/somnus/somnus/pkg/analyzer"
)

// Component weights; they sum to 1.0 so the weighted sum cannot leave [0,1].
const (
	WeightDuration     = 0.30
	WeightEfficiency   = 0.30
	WeightConsistency  = 0.25
	WeightInterruption = 0.15
)

// ConfidenceSaturation is the sample count at which the size factor reaches
// its maximum. A single night scores with markedly lower confidence.
const ConfidenceSaturation = 7

// Breakdown exposes the normalized components behind a score.
type Breakdown struct {
	DurationAdequacy    float64
	Efficiency          float64
	ScheduleConsistency float64
	InterruptionPenalty float64
}

// Score computes the sleep score and its confidence from metrics.
func Score(m *analyzer.Metrics) (int, float64) {
	b := Explain(m)
	weighted := WeightDuration*b.DurationAdequacy +
		WeightEfficiency*b.Efficiency +
		WeightConsistency*b.ScheduleConsistency +
		WeightInterruption*b.InterruptionPenalty

	score := int(math.Round(clamp01(weighted) * 100))
	return score, confidence(m)
}

// Explain computes the four normalized components, each clamped to [0,1].
func Explain(m *analyzer.Metrics) Breakdown {
	return Breakdown{
		DurationAdequacy:    durationAdequacy(m.AvgDuration),
		Efficiency:          efficiencyComponent(m.AvgEfficiency),
		ScheduleConsistency: clamp01(m.ScheduleConsistency),
		InterruptionPenalty: interruptionPenalty(m.InterruptionRate),
	}
}

// durationAdequacy is 1 inside the optimal 7-9h band and falls off linearly
// outside it: (d-3)/4 below, 1-(d-9)/7 above. The slopes pin the domain
// bounds (3h and 16h) to zero.
func durationAdequacy(hours float64) float64 {
	switch {
	case hours >= analyzer.OptimalDurationMin && hours <= analyzer.OptimalDurationMax:
		return 1
	case hours < analyzer.OptimalDurationMin:
		return clamp01((hours - 3) / 4)
	default:
		return clamp01(1 - (hours-analyzer.OptimalDurationMax)/7)
	}
}

// efficiencyComponent maps average efficiency to [0,1]; the neutral 0.5 is
// used when no session reported efficiency.
func efficiencyComponent(avg *float64) float64 {
	if avg == nil {
		return 0.5
	}
	return clamp01(*avg / 100)
}

// interruptionPenalty steps down with the mean interruptions per session.
func interruptionPenalty(rate float64) float64 {
	switch {
	case rate == 0:
		return 1.0
	case rate <= 1:
		return 0.8
	case rate <= 2:
		return 0.6
	case rate <= 3:
		return 0.4
	default:
		return clamp01(1 - 0.2*rate)
	}
}

// confidence combines sample size with metric completeness. Core fields are
// always present after validation, so completeness only discounts the
// optional signals.
func confidence(m *analyzer.Metrics) float64 {
	base := math.Min(1, float64(m.SampleCount)/ConfidenceSaturation)
	completeness := 0.6 +
		0.25*clamp01(m.EfficiencyCompleteness) +
		0.15*clamp01(m.MoodCompleteness)
	return clamp01(base * completeness)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
