// Package sleep defines the domain model shared by the analysis pipeline:
// sessions, profiles, recommendations and the public analysis result.
package sleep

import "time"

// Work schedule values accepted in a profile.
const (
	ScheduleFixedDay   = "fixed-day"
	ScheduleFlexible   = "flexible"
	ScheduleNightShift = "night-shift"
	ScheduleRotating   = "rotating"
)

// Caffeine intake levels accepted in a profile.
const (
	CaffeineNone   = "none"
	CaffeineLow    = "low"
	CaffeineMedium = "medium"
	CaffeineHigh   = "high"
)

// Exercise frequency values accepted in a profile.
const (
	ExerciseDaily     = "daily"
	ExerciseOften     = "3-4-times"
	ExerciseSometimes = "1-2-times"
	ExerciseRarely    = "rarely"
)

// Profile defaults, substituted wherever a field is absent.
const (
	DefaultAge            = 30
	DefaultWorkSchedule   = ScheduleFixedDay
	DefaultCaffeineIntake = CaffeineNone
	DefaultExercise       = ExerciseRarely
	DefaultStressLevel    = 3
)

// Interruption is a single awakening during a session.
type Interruption struct {
	Timestamp string `json:"timestamp,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Session is one night of sleep. A session is immutable once stored and is
// identified by (user, Date); a later write for the same date replaces the
// earlier one.
type Session struct {
	// Date is the calendar date of the session in ISO form (2006-01-02).
	// Required for ordering, replace semantics and trend bucketing.
	Date string `json:"session_date,omitempty"`

	// Bedtime and Waketime are times of day in HH:MM form.
	Bedtime  string `json:"bedtime" validate:"required"`
	Waketime string `json:"waketime" validate:"required"`

	DurationHours float64 `json:"duration_hours" validate:"gte=3,lte=16"`

	// EfficiencyScore and MorningMood are optional self-reported signals.
	EfficiencyScore *float64 `json:"efficiency_score,omitempty" validate:"omitempty,gte=0,lte=100"`
	MorningMood     *int     `json:"morning_mood,omitempty" validate:"omitempty,gte=1,lte=10"`

	Interruptions []Interruption `json:"interruptions,omitempty"`
}

// DateTime parses the session date. The zero time and an error are returned
// when the date is absent or malformed.
func (s *Session) DateTime() (time.Time, error) {
	return time.Parse(DateLayout, s.Date)
}

// Profile is the user's self-reported lifestyle profile. Every field is
// optional; consumers substitute the package defaults above.
type Profile struct {
	Age            int     `json:"age,omitempty" validate:"omitempty,gte=1,lte=120"`
	WorkSchedule   string  `json:"work_schedule,omitempty" validate:"omitempty,oneof=fixed-day flexible night-shift rotating"`
	CaffeineIntake string  `json:"caffeine_intake,omitempty" validate:"omitempty,oneof=none low medium high"`
	ScreenTime     float64 `json:"screen_time,omitempty" validate:"omitempty,gte=0,lte=24"`
	Exercise       string  `json:"exercise,omitempty" validate:"omitempty,oneof=daily 3-4-times 1-2-times rarely"`
	StressLevel    int     `json:"stress_level,omitempty" validate:"omitempty,gte=1,lte=5"`
}

// EffectiveAge returns the profile age or the default. Safe on a nil profile.
func (p *Profile) EffectiveAge() int {
	if p == nil || p.Age == 0 {
		return DefaultAge
	}
	return p.Age
}

// EffectiveCaffeine returns the caffeine intake level or the default.
func (p *Profile) EffectiveCaffeine() string {
	if p == nil || p.CaffeineIntake == "" {
		return DefaultCaffeineIntake
	}
	return p.CaffeineIntake
}

// EffectiveExercise returns the exercise frequency or the default.
func (p *Profile) EffectiveExercise() string {
	if p == nil || p.Exercise == "" {
		return DefaultExercise
	}
	return p.Exercise
}

// EffectiveStress returns the stress level or the default.
func (p *Profile) EffectiveStress() int {
	if p == nil || p.StressLevel == 0 {
		return DefaultStressLevel
	}
	return p.StressLevel
}

// EffectiveScreenTime returns the nightly screen time in hours, zero when the
// profile is absent.
func (p *Profile) EffectiveScreenTime() float64 {
	if p == nil {
		return 0
	}
	return p.ScreenTime
}

// IdealSleepWindow is the recommended nightly window.
type IdealSleepWindow struct {
	RecommendedBedtime  string  `json:"recommended_bedtime"`
	RecommendedWaketime string  `json:"recommended_waketime"`
	TargetDurationHours float64 `json:"target_duration_hours"`
	Rationale           string  `json:"rationale,omitempty"`
}

// CaffeineCutoff is the recommended last time of day for caffeine.
type CaffeineCutoff struct {
	CutoffTime     string `json:"cutoff_time"`
	Recommendation string `json:"recommendation"`
	CurrentIntake  string `json:"current_intake"`
}

// WeeklyPlan restates the window as a daily target plus a weekly goal.
type WeeklyPlan struct {
	WeekGoal      string   `json:"week_goal"`
	DailyBedtime  string   `json:"daily_bedtime"`
	DailyWaketime string   `json:"daily_waketime"`
	WeeklyTasks   []string `json:"weekly_tasks"`
}

// Recommendations is the structured guidance bundle produced per analysis.
// All sub-outputs are independent and order-stable.
type Recommendations struct {
	IdealSleepWindow   IdealSleepWindow `json:"ideal_sleep_window"`
	CaffeineCutoff     CaffeineCutoff   `json:"caffeine_cutoff"`
	LightManagement    []string         `json:"light_exposure_management,omitempty"`
	BedroomEnvironment []string         `json:"bedroom_environment,omitempty"`
	WindDownRoutine    []string         `json:"wind_down_routine,omitempty"`
	WeeklyPlan         WeeklyPlan       `json:"weekly_sleep_plan"`
}

// Preferences is the LTM snapshot of what the user seems to want: the latest
// profile plus averages derived from their own history.
type Preferences struct {
	Profile           *Profile `json:"profile,omitempty"`
	PreferredDuration float64  `json:"preferred_duration,omitempty"`
	PreferredBedtime  string   `json:"preferred_bedtime,omitempty"`
}

// AnalysisResult is the public output of one pipeline run.
type AnalysisResult struct {
	TaskID     string  `json:"task_id,omitempty"`
	UserID     string  `json:"user_id"`
	SleepScore int     `json:"sleep_score"`
	Confidence float64 `json:"confidence"`

	Issues           []string         `json:"issues"`
	Recommendations  *Recommendations `json:"recommendations,omitempty"`
	PersonalizedTips []string         `json:"personalized_tips,omitempty"`
	Summary          string           `json:"summary"`

	AnalyzedSessions int       `json:"analyzed_sessions"`
	GeneratedAt      time.Time `json:"generated_at"`

	// Persisted is false when the memory write failed; Warnings then carries
	// the surfaced store error. The result itself is still valid.
	Persisted bool     `json:"persisted"`
	Warnings  []string `json:"warnings,omitempty"`
}
