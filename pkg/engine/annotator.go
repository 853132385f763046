package engine

import (
	"context"
	"time"

	"github.com/somnus/somnus/pkg/analyzer"
	"github.com/somnus/somnus/pkg/sleep"
)

// Annotator is the optional advisory enhancement port. An implementation may
// inspect the metrics and sessions and return extra issue strings; it can
// never alter numeric metrics, and its failure never fails the task.
type Annotator interface {
	Annotate(ctx context.Context, metrics *analyzer.Metrics, sessions []sleep.Session) ([]string, error)
}

// DefaultAnnotatorBudget bounds a single Annotate call.
const DefaultAnnotatorBudget = 2 * time.Second

// NoopAnnotator is the default: no additional issues, never fails.
type NoopAnnotator struct{}

func (NoopAnnotator) Annotate(ctx context.Context, _ *analyzer.Metrics, _ []sleep.Session) ([]string, error) {
	return nil, nil
}

// annotate invokes the annotator under its time budget and swallows any
// failure, returning only what it produced.
func (e *Engine) annotate(ctx context.Context, m *analyzer.Metrics, sessions []sleep.Session) []string {
	if e.annotator == nil {
		return nil
	}
	budget := e.annotatorBudget
	if budget <= 0 {
		budget = DefaultAnnotatorBudget
	}
	annCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	addendum, err := e.annotator.Annotate(annCtx, m, sessions)
	if err != nil {
		e.log.WarnContext(ctx, "advisory annotator failed, proceeding without addendum",
			"error", err)
		return nil
	}
	return addendum
}
