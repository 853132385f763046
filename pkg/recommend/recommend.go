// Package recommend turns analysis metrics, a profile and long-term
// preferences into the structured guidance bundle. Build is a pure function:
// identical inputs produce byte-identical output, and missing profile fields
// never raise; each rule substitutes its documented default.
package recommend

import (
	"fmt"

	"github.com/somnus/somnus/pkg/analyzer"
	"github.com/somnus/somnus/pkg/sleep"
)

const (
	// DefaultBedtime is used when neither observed bedtimes nor a stored
	// preference are available.
	DefaultBedtime = "22:30"

	// BedtimeSnapMinutes snaps the recommended bedtime to a coarse grid to
	// avoid over-fitting night-to-night noise.
	BedtimeSnapMinutes = 30

	// Caffeine cutoffs relative to the recommended bedtime, in minutes.
	caffeineCutoffHeavy = 8*60 + 30
	caffeineCutoffLight = 6 * 60

	// AdultDurationFloor is raised for minors.
	minorDurationFloor = 8.0
)

// Build computes the full recommendations bundle.
func Build(m *analyzer.Metrics, profile *sleep.Profile, prefs *sleep.Preferences) *sleep.Recommendations {
	window := idealWindow(m, profile, prefs)
	return &sleep.Recommendations{
		IdealSleepWindow:   window,
		CaffeineCutoff:     caffeineCutoff(window, profile),
		LightManagement:    lightManagement(profile),
		BedroomEnvironment: bedroomEnvironment(m),
		WindDownRoutine:    windDownRoutine(m, profile),
		WeeklyPlan:         weeklyPlan(m, window),
	}
}

// idealWindow centers the window on the user's median observed bedtime,
// snapped to the nearest half hour. The target duration is the observed
// average clamped to the 7-9h band, floored at 8h for minors.
func idealWindow(m *analyzer.Metrics, profile *sleep.Profile, prefs *sleep.Preferences) sleep.IdealSleepWindow {
	target := m.AvgDuration
	if target < analyzer.OptimalDurationMin {
		target = analyzer.OptimalDurationMin
	}
	if target > analyzer.OptimalDurationMax {
		target = analyzer.OptimalDurationMax
	}
	if profile.EffectiveAge() < 18 && target < minorDurationFloor {
		target = minorDurationFloor
	}

	bedMinutes := recommendedBedtime(m, prefs)
	wakeMinutes := bedMinutes + int(target*60)

	return sleep.IdealSleepWindow{
		RecommendedBedtime:  sleep.FormatClock(bedMinutes),
		RecommendedWaketime: sleep.FormatClock(wakeMinutes),
		TargetDurationHours: target,
		Rationale: fmt.Sprintf("Centered on your typical bedtime with a %.1f hour target.",
			target),
	}
}

func recommendedBedtime(m *analyzer.Metrics, prefs *sleep.Preferences) int {
	if med, ok := sleep.MedianClock(m.Bedtimes); ok {
		return sleep.SnapClock(med, BedtimeSnapMinutes)
	}
	if prefs != nil && prefs.PreferredBedtime != "" {
		if min, err := sleep.ParseClock(prefs.PreferredBedtime); err == nil {
			return sleep.SnapClock(min, BedtimeSnapMinutes)
		}
	}
	fallback, _ := sleep.ParseClock(DefaultBedtime)
	return fallback
}

func caffeineCutoff(window sleep.IdealSleepWindow, profile *sleep.Profile) sleep.CaffeineCutoff {
	intake := profile.EffectiveCaffeine()
	bedMinutes, _ := sleep.ParseClock(window.RecommendedBedtime)

	offset := caffeineCutoffLight
	if intake == sleep.CaffeineMedium || intake == sleep.CaffeineHigh {
		offset = caffeineCutoffHeavy
	}
	cutoff := sleep.FormatClock(bedMinutes - offset)

	var recommendation string
	switch intake {
	case sleep.CaffeineNone:
		recommendation = "Great job avoiding caffeine! Continue this habit."
	case sleep.CaffeineLow:
		recommendation = fmt.Sprintf("Avoid caffeine after %s to improve sleep quality.", cutoff)
	case sleep.CaffeineMedium:
		recommendation = fmt.Sprintf("Limit caffeine intake and avoid after %s. Consider reducing to 1-2 cups per day.", cutoff)
	default:
		recommendation = fmt.Sprintf("Reduce caffeine intake significantly. Stop consuming caffeine after %s.", cutoff)
	}

	return sleep.CaffeineCutoff{
		CutoffTime:     cutoff,
		Recommendation: recommendation,
		CurrentIntake:  intake,
	}
}

func lightManagement(profile *sleep.Profile) []string {
	var out []string
	if st := profile.EffectiveScreenTime(); st > analyzer.ScreenTimeWarningHours {
		out = append(out,
			fmt.Sprintf("Reduce screen time before bed (currently %.1f hours). Use blue light filters or reading mode.", st),
			"Dim lights 1-2 hours before bedtime to signal your body for sleep.")
	} else {
		out = append(out, "Maintain low light exposure before bed. Consider using dimmable lights.")
	}
	out = append(out,
		"Get natural sunlight exposure in the morning to regulate circadian rhythm.",
		"Use blackout curtains or eye mask if your bedroom is not dark enough.")
	return out
}

func bedroomEnvironment(m *analyzer.Metrics) []string {
	var out []string
	if m.InterruptionRate > analyzer.InterruptionRateThreshold {
		out = append(out,
			"Keep bedroom temperature between 65-68F (18-20C) for optimal sleep.",
			"Use white noise machine or earplugs to block disruptive sounds.",
			"Remove electronic devices from bedroom or use airplane mode.")
	} else {
		out = append(out, "Your sleep environment seems good. Maintain current conditions.")
	}
	out = append(out,
		"Keep bedroom dark, quiet, and cool.",
		"Reserve bedroom only for sleep (no work or screens).")
	return out
}

func windDownRoutine(m *analyzer.Metrics, profile *sleep.Profile) []string {
	out := []string{"Start wind-down routine 1 hour before bedtime."}
	if profile.EffectiveStress() >= 4 {
		out = append(out,
			"Practice relaxation techniques: meditation or deep breathing before bed.",
			"Try journaling to clear your mind before bed.")
	} else {
		out = append(out,
			"Maintain a consistent pre-sleep routine (reading, light stretching, or calming music).")
	}
	out = append(out,
		"Take a warm bath or shower 1-2 hours before bed.",
		"Avoid stimulating activities, work, or intense exercise close to bedtime.")
	if len(m.Bedtimes) >= 2 && m.ScheduleConsistency < analyzer.ConsistencyThreshold {
		out = append(out,
			"Establish a fixed bedtime routine to signal your body it's time to sleep.")
	}
	return out
}

// weeklyPlan restates the window as a daily target plus a goal keyed by the
// dominant issue: duration beats consistency beats interruptions.
func weeklyPlan(m *analyzer.Metrics, window sleep.IdealSleepWindow) sleep.WeeklyPlan {
	plan := sleep.WeeklyPlan{
		DailyBedtime:  window.RecommendedBedtime,
		DailyWaketime: window.RecommendedWaketime,
	}

	durationIssue := m.AvgDuration < analyzer.OptimalDurationMin || m.AvgDuration > analyzer.OptimalDurationMax
	consistencyIssue := len(m.Bedtimes) >= 2 && m.ScheduleConsistency < analyzer.ConsistencyThreshold
	interruptionIssue := m.InterruptionRate > analyzer.InterruptionRateThreshold

	switch {
	case durationIssue:
		plan.WeekGoal = "Reach a consistent 7-9 hours of sleep per night"
		plan.WeeklyTasks = append(plan.WeeklyTasks,
			"Gradually adjust sleep duration to reach 7-9 hours")
	case consistencyIssue:
		plan.WeekGoal = "Establish a consistent sleep schedule"
	case interruptionIssue:
		plan.WeekGoal = "Reduce nighttime interruptions"
		plan.WeeklyTasks = append(plan.WeeklyTasks,
			"Identify and remove sources of nighttime disturbance")
	default:
		plan.WeekGoal = "Maintain current sleep habits"
	}

	if consistencyIssue {
		plan.WeeklyTasks = append(plan.WeeklyTasks,
			"Maintain same bedtime and wake time every day, including weekends")
	}
	if len(plan.WeeklyTasks) == 0 {
		plan.WeeklyTasks = append(plan.WeeklyTasks,
			"Maintain current sleep habits and track improvements")
	}
	return plan
}

// Tips assembles the personalized tip list: top issues first, then profile
// and trend derived additions, padded from a general list to at least three
// and capped at six.
func Tips(m *analyzer.Metrics, profile *sleep.Profile, trendAvgDuration float64) []string {
	var tips []string
	for i, issue := range m.Issues {
		if i == 3 {
			break
		}
		tips = append(tips, issue)
	}

	switch profile.EffectiveExercise() {
	case sleep.ExerciseRarely:
		tips = append(tips, "Incorporate regular exercise into your routine (3-4 times per week) for better sleep.")
	case sleep.ExerciseDaily:
		tips = append(tips, "Great job with daily exercise! Avoid intense workouts within 3 hours of bedtime.")
	}

	if trendAvgDuration > 0 && trendAvgDuration < analyzer.OptimalDurationMin {
		tips = append(tips, fmt.Sprintf(
			"Your average sleep duration is %.1f hours. Gradually increase to 7-9 hours for optimal rest.",
			trendAvgDuration))
	}

	if len(tips) < 3 {
		tips = append(tips,
			"Maintain a consistent sleep schedule, even on weekends.",
			"Create a relaxing bedtime routine to signal your body for sleep.",
			"Avoid large meals and alcohol close to bedtime.")
	}
	if len(tips) > 6 {
		tips = tips[:6]
	}
	return tips
}
