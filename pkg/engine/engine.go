// Package engine sequences the analysis pipeline: validate, memory fetch,
// analyze, recommend and score in parallel, memory write, format. Stages are
// strictly ordered and fail fast; a memory write failure still returns the
// computed result with persistence flagged off.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/somnus/somnus/pkg/analyzer"
	"github.com/somnus/somnus/pkg/events"
	"github.com/somnus/somnus/pkg/logger"
	"github.com/somnus/somnus/pkg/memory"
	"github.com/somnus/somnus/pkg/recommend"
	"github.com/somnus/somnus/pkg/scorer"
	"github.com/somnus/somnus/pkg/sleep"
	"github.com/somnus/somnus/pkg/trend"
)

// DefaultMaxBatchSize caps the inline session batch of one task.
const DefaultMaxBatchSize = 64

// Stage names, as published on the events bus and used in span names.
const (
	StageValidate  = "validate"
	StageFetch     = "memory_fetch"
	StageAnalyze   = "analyze"
	StageRecommend = "recommend"
	StageScore     = "score"
	StageWrite     = "memory_write"
	StageFormat    = "format"
)

// Task is one analysis request.
type Task struct {
	TaskID   string          `json:"task_id,omitempty"`
	UserID   string          `json:"user_id"`
	Sessions []sleep.Session `json:"sessions,omitempty"`
	Profile  *sleep.Profile  `json:"profile,omitempty"`
}

// TaskRecorder receives task and stage timings. Implemented by the metrics
// package.
type TaskRecorder interface {
	RecordTask(code string, duration time.Duration)
	RecordStage(stage string, duration time.Duration)
}

// Engine runs the pipeline against one memory store.
type Engine struct {
	store           *memory.Store
	log             logger.Logger
	annotator       Annotator
	annotatorBudget time.Duration
	metrics         TaskRecorder
	bus             *events.Bus
	tracer          trace.Tracer
	maxBatch        int
	now             func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithAnnotator installs the advisory annotator.
func WithAnnotator(a Annotator, budget time.Duration) Option {
	return func(e *Engine) {
		e.annotator = a
		e.annotatorBudget = budget
	}
}

// WithMetrics attaches a task recorder.
func WithMetrics(rec TaskRecorder) Option {
	return func(e *Engine) { e.metrics = rec }
}

// WithEvents attaches the stage-transition bus.
func WithEvents(bus *events.Bus) Option {
	return func(e *Engine) { e.bus = bus }
}

// WithLogger overrides the engine logger.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithMaxBatchSize overrides the inline batch cap.
func WithMaxBatchSize(n int) Option {
	return func(e *Engine) { e.maxBatch = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an Engine over the given store.
func New(store *memory.Store, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		log:       logger.Global(),
		annotator: NoopAnnotator{},
		tracer:    otel.Tracer("somnus/engine"),
		maxBatch:  DefaultMaxBatchSize,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the pipeline for one task.
func (e *Engine) Run(ctx context.Context, task *Task) (result *sleep.AnalysisResult, err error) {
	start := e.now()
	if task.TaskID == "" {
		task.TaskID = uuid.New().String()
	}
	ctx, span := e.tracer.Start(ctx, "pipeline.run")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			err = &InternalError{Stage: "pipeline", Cause: fmt.Errorf("panic: %v", r)}
			result = nil
		}
		code := "OK"
		if err != nil {
			code = Code(err)
			e.log.ErrorContext(ctx, "pipeline failed",
				"task_id", task.TaskID, "user_id", task.UserID, "code", code, "error", err)
		}
		if e.metrics != nil {
			e.metrics.RecordTask(code, time.Since(start))
		}
	}()

	// Stage 1: validate, before any memory access.
	if err := e.runStage(ctx, task, StageValidate, func(context.Context) error {
		return e.validate(task)
	}); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, &InternalError{Stage: StageValidate, Cause: err}
	}

	// Stage 2: memory fetch. Unavailability degrades to empty memory.
	var (
		stm      *memory.STMRecord
		ltm      *memory.LTMRecord
		warnings []string
	)
	_ = e.runStage(ctx, task, StageFetch, func(ctx context.Context) error {
		stm, ltm, warnings = e.fetchMemory(ctx, task.UserID)
		return nil
	})
	if err := ctx.Err(); err != nil {
		return nil, &InternalError{Stage: StageFetch, Cause: err}
	}

	// Stage 3: analyze the merged session set.
	merged := mergeSessions(task.Sessions, stm)
	var metrics *analyzer.Metrics
	if err := e.runStage(ctx, task, StageAnalyze, func(ctx context.Context) error {
		m, err := analyzer.Analyze(merged, task.Profile)
		if err != nil {
			if errors.Is(err, analyzer.ErrNoSessions) {
				return &MissingDataError{UserID: task.UserID}
			}
			return &InternalError{Stage: StageAnalyze, Cause: err}
		}
		if addendum := e.annotate(ctx, m, merged); len(addendum) > 0 {
			m.Issues = append(m.Issues, addendum...)
		}
		metrics = m
		return nil
	}); err != nil {
		return nil, err
	}

	// Stages 4 and 5: recommend and score run concurrently; both are pure
	// consumers of the metrics value.
	var (
		recs       *sleep.Recommendations
		tips       []string
		score      int
		confidence float64
		wg         sync.WaitGroup
		stageErrs  [2]error
	)
	var prefs *sleep.Preferences
	trendDuration := 0.0
	if ltm != nil {
		prefs = &ltm.Preferences
		if ltm.Trends.DurationCount > 0 {
			trendDuration = ltm.Trends.AvgDuration
		}
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		stageErrs[0] = e.runStage(ctx, task, StageRecommend, func(context.Context) (err error) {
			defer recoverAs(StageRecommend, &err)
			recs = recommend.Build(metrics, task.Profile, prefs)
			tips = recommend.Tips(metrics, task.Profile, trendDuration)
			return nil
		})
	}()
	go func() {
		defer wg.Done()
		stageErrs[1] = e.runStage(ctx, task, StageScore, func(context.Context) (err error) {
			defer recoverAs(StageScore, &err)
			score, confidence = scorer.Score(metrics)
			return nil
		})
	}()
	wg.Wait()
	for _, serr := range stageErrs {
		if serr != nil {
			return nil, serr
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, &InternalError{Stage: StageScore, Cause: err}
	}

	result = &sleep.AnalysisResult{
		TaskID:           task.TaskID,
		UserID:           task.UserID,
		SleepScore:       score,
		Confidence:       confidence,
		Issues:           metrics.Issues,
		Recommendations:  recs,
		PersonalizedTips: tips,
		Summary:          metrics.Summary,
		AnalyzedSessions: metrics.SampleCount,
		GeneratedAt:      e.now().UTC(),
		Persisted:        true,
		Warnings:         warnings,
	}

	// Stage 6: memory write, atomic per user. Failure keeps the result.
	if err := e.runStage(ctx, task, StageWrite, func(ctx context.Context) error {
		folded := trend.Fold(ltm, result, task.Sessions, task.Profile,
			e.now().UTC(), e.store.LTMRetention())
		_, err := e.store.UpdateMemory(ctx, task.UserID, datedSessions(task.Sessions), folded)
		return err
	}); err != nil {
		storeErr := &StoreUnavailableError{Op: "write", Cause: err}
		result.Persisted = false
		result.Warnings = append(result.Warnings, storeErr.Error())
		e.log.WarnContext(ctx, "memory write failed, returning unpersisted result",
			"task_id", task.TaskID, "user_id", task.UserID, "error", err)
	}

	// Stage 7: format. The result is already assembled; this stage only
	// marks the boundary for observers.
	_ = e.runStage(ctx, task, StageFormat, func(context.Context) error { return nil })
	return result, nil
}

// runStage wraps one stage with a span, an event pair and a timing record.
func (e *Engine) runStage(ctx context.Context, task *Task, stage string, fn func(ctx context.Context) error) error {
	ctx, span := e.tracer.Start(ctx, "pipeline."+stage)
	defer span.End()

	start := e.now()
	e.publish(task, stage, events.StatusStarted, "")
	err := fn(ctx)
	if e.metrics != nil {
		e.metrics.RecordStage(stage, time.Since(start))
	}
	if err != nil {
		e.publish(task, stage, events.StatusFailed, err.Error())
		return err
	}
	e.publish(task, stage, events.StatusCompleted, "")
	return nil
}

func (e *Engine) publish(task *Task, stage, status, message string) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.Event{
		TaskID:  task.TaskID,
		UserID:  task.UserID,
		Stage:   stage,
		Status:  status,
		Message: message,
		At:      e.now().UTC(),
	})
}

func (e *Engine) validate(task *Task) error {
	if err := sleep.ValidateUserID(task.UserID); err != nil {
		return &ValidationError{Field: "user_id", Cause: err}
	}
	if len(task.Sessions) > e.maxBatch {
		return &ValidationError{Field: "sessions",
			Cause: fmt.Errorf("batch of %d exceeds the %d session limit", len(task.Sessions), e.maxBatch)}
	}
	for i := range task.Sessions {
		if err := sleep.ValidateSession(&task.Sessions[i]); err != nil {
			return &ValidationError{Field: fmt.Sprintf("sessions[%d]", i), Cause: err}
		}
	}
	if err := sleep.ValidateProfile(task.Profile); err != nil {
		return &ValidationError{Field: "profile", Cause: err}
	}
	return nil
}

// fetchMemory reads both tiers in one store acquisition so the pair cannot
// straddle a concurrent write. Absence is normal; unavailability degrades to
// empty memory with a warning rather than failing the task.
func (e *Engine) fetchMemory(ctx context.Context, userID string) (*memory.STMRecord, *memory.LTMRecord, []string) {
	stm, ltm, err := e.store.FetchMemory(ctx, userID)
	if err != nil {
		e.log.WarnContext(ctx, "memory fetch degraded to empty",
			"user_id", userID, "error", err)
		return nil, nil, []string{
			(&StoreUnavailableError{Op: "fetch memory", Cause: err}).Error()}
	}
	return stm, ltm, nil
}

// mergeSessions unions the inline batch with short-term memory, de-duplicated
// by session date with the inline session winning. Undated inline sessions
// are analyzed but cannot collide. Output is ordered by date, undated last
// in batch order.
func mergeSessions(inline []sleep.Session, stm *memory.STMRecord) []sleep.Session {
	inlineDates := make(map[string]struct{}, len(inline))
	for _, s := range inline {
		if s.Date != "" {
			inlineDates[s.Date] = struct{}{}
		}
	}

	var dated []sleep.Session
	var undated []sleep.Session
	if stm != nil {
		for _, ss := range stm.Sessions {
			if _, shadowed := inlineDates[ss.Date]; shadowed {
				continue
			}
			dated = append(dated, ss.Session)
		}
	}
	for _, s := range inline {
		if s.Date != "" {
			dated = append(dated, s)
		} else {
			undated = append(undated, s)
		}
	}

	sort.SliceStable(dated, func(i, j int) bool { return dated[i].Date < dated[j].Date })
	return append(dated, undated...)
}

// datedSessions filters the batch to sessions eligible for storage: only a
// dated session has an identity to replace.
func datedSessions(sessions []sleep.Session) []sleep.Session {
	out := make([]sleep.Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Date != "" {
			out = append(out, s)
		}
	}
	return out
}

// recoverAs converts a stage panic into an InternalError.
func recoverAs(stage string, err *error) {
	if r := recover(); r != nil {
		*err = &InternalError{Stage: stage, Cause: fmt.Errorf("panic: %v", r)}
	}
}
