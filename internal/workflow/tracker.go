// Package workflow records pipeline invocations and flags same-day
// re-runs. Bookkeeping only, never a gate: duplicate runs warn, they do
// not block.
package workflow

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sector-pulse/pulse-cli/internal/model"
	"github.com/sector-pulse/pulse-cli/internal/store"
)

// Tracker appends WorkflowRun rows around pipeline invocations.
type Tracker struct {
	store         store.Store
	expectedDaily int
	now           func() time.Time
}

// NewTracker builds a tracker. expectedDaily is how many same-day runs
// of a workflow are scheduled before further ones count as duplicates;
// values below one fall back to one. nowFn overrides the clock in
// tests; nil uses the system clock.
func NewTracker(st store.Store, expectedDaily int, nowFn func() time.Time) *Tracker {
	if expectedDaily < 1 {
		expectedDaily = 1
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Tracker{store: st, expectedDaily: expectedDaily, now: nowFn}
}

// Start records a new invocation of the named workflow. The same-day run
// count is existing rows + 1; any count above the expected daily runs
// marks the run as a duplicate and logs a warning, since accuracy
// reporting has to tolerate re-run noise.
func (t *Tracker) Start(ctx context.Context, name string) (*model.WorkflowRun, error) {
	now := t.now().UTC()
	runDate := now.Format("2006-01-02")

	existing, err := t.store.CountWorkflowRuns(ctx, name, runDate)
	if err != nil {
		return nil, eris.Wrapf(err, "workflow: count runs for %s", name)
	}

	run := &model.WorkflowRun{
		WorkflowName:   name,
		RunDate:        runDate,
		StartedAt:      now,
		Status:         model.RunStatusStarted,
		RunCountToday:  existing + 1,
		IsDuplicateRun: existing+1 > t.expectedDaily,
	}
	if err := t.store.InsertWorkflowRun(ctx, run); err != nil {
		return nil, eris.Wrapf(err, "workflow: record run for %s", name)
	}

	if run.IsDuplicateRun {
		zap.L().Warn("duplicate workflow run detected",
			zap.String("workflow", name),
			zap.String("run_date", runDate),
			zap.Int("run_count_today", run.RunCountToday),
			zap.Int("expected_daily_runs", t.expectedDaily),
		)
	} else {
		zap.L().Info("workflow run started",
			zap.String("workflow", name),
			zap.String("run_id", run.ID),
		)
	}
	return run, nil
}

// Complete closes a run with the given status and optional notes.
func (t *Tracker) Complete(ctx context.Context, run *model.WorkflowRun, status model.RunStatus, notes string) error {
	if err := t.store.CompleteWorkflowRun(ctx, run.ID, status, notes); err != nil {
		return eris.Wrapf(err, "workflow: complete run %s", run.ID)
	}
	zap.L().Info("workflow run finished",
		zap.String("workflow", run.WorkflowName),
		zap.String("run_id", run.ID),
		zap.String("status", string(status)),
	)
	return nil
}
