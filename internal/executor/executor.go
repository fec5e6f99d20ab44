// Package executor runs a deployment plan against a target store, strictly
// in plan order, with per-artifact failure isolation.
//
// Failed dependencies do not cascade: in ContinueOnError mode a dependent of
// a failed artifact is still attempted. The target platform accepts a form
// that references a missing subform (the reference renders broken instead of
// rejecting the definition), so attempting the dependent preserves more of
// the batch and keeps the outcome table an honest record of what each
// artifact did.
package executor

import (
	"context"
	"time"

	"github.com/aarelaponin/joget-deployment-toolkit/internal/artifact"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/ctxlog"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/plan"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/target"
)

// Mode selects failure handling for a run.
type Mode string

const (
	// StopOnError aborts the run at the first failure; everything not yet
	// executed is marked skipped.
	StopOnError Mode = "stop"
	// ContinueOnError attempts every remaining artifact and reports the
	// failures at the end.
	ContinueOnError Mode = "continue"
)

// ParseMode converts the CLI flag value into a Mode.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case StopOnError, ContinueOnError:
		return Mode(s), true
	}
	return "", false
}

// Status is the per-artifact outcome.
type Status string

const (
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
	// StatusSkippedUpstream marks artifacts never attempted because the run
	// stopped (failure in stop mode, or cancellation).
	StatusSkippedUpstream Status = "SKIPPED_DUE_TO_UPSTREAM_FAILURE"
)

// State is the run-level state machine:
// Pending -> Running -> {Completed, CompletedWithFailures, Aborted}.
type State string

const (
	StatePending               State = "PENDING"
	StateRunning               State = "RUNNING"
	StateCompleted             State = "COMPLETED"
	StateCompletedWithFailures State = "COMPLETED_WITH_FAILURES"
	StateAborted               State = "ABORTED"
)

// Outcome records what happened to one artifact. Immutable once appended.
type Outcome struct {
	ID       string
	Action   plan.Action
	Status   Status
	Duration time.Duration
	Err      error
}

// Result is the full, per-artifact account of one run.
type Result struct {
	State    State
	Mode     Mode
	Outcomes []Outcome

	// PlannedSkips lists plan entries with action SKIP; they were never
	// candidates for execution and carry no outcome.
	PlannedSkips []string

	// Cancelled is set when the run stopped on an external cancellation
	// signal rather than an artifact failure.
	Cancelled bool
}

// Failed reports whether any artifact failed.
func (r *Result) Failed() bool {
	for _, o := range r.Outcomes {
		if o.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Run executes the plan in order. Cancellation is checked between steps
// only, never mid-artifact: a create/update call that has started is allowed
// to finish, and its outcome is preserved.
func Run(ctx context.Context, p *plan.Plan, batch *artifact.Batch, store target.Store, mode Mode) *Result {
	logger := ctxlog.FromContext(ctx)
	result := &Result{State: StatePending, Mode: mode}

	var pending []string
	for _, id := range p.Order {
		if p.Entries[id] == plan.ActionSkip {
			result.PlannedSkips = append(result.PlannedSkips, id)
			continue
		}
		pending = append(pending, id)
	}

	result.State = StateRunning
	logger.Info("deployment started", "entries", len(pending), "mode", string(mode))

	for i, id := range pending {
		if ctx.Err() != nil {
			logger.Warn("run cancelled, skipping remaining artifacts", "remaining", len(pending)-i)
			skipRemaining(result, p, pending[i:])
			result.Cancelled = true
			result.State = StateAborted
			return result
		}

		action := p.Entries[id]
		a, _ := batch.ByID(id)

		started := time.Now()
		var err error
		switch action {
		case plan.ActionCreate:
			err = store.Create(ctx, a)
		case plan.ActionUpdate:
			err = store.Update(ctx, a)
		}
		elapsed := time.Since(started)

		if err != nil {
			logger.Error("artifact deployment failed", "id", id, "action", string(action), "error", err)
			result.Outcomes = append(result.Outcomes, Outcome{
				ID: id, Action: action, Status: StatusFailed, Duration: elapsed, Err: err,
			})
			if mode == StopOnError {
				skipRemaining(result, p, pending[i+1:])
				result.State = StateAborted
				logger.Warn("run aborted on first failure", "failed", id)
				return result
			}
			continue
		}

		logger.Info("artifact deployed", "id", id, "action", string(action), "duration_ms", elapsed.Milliseconds())
		result.Outcomes = append(result.Outcomes, Outcome{
			ID: id, Action: action, Status: StatusSucceeded, Duration: elapsed,
		})
	}

	if result.Failed() {
		result.State = StateCompletedWithFailures
	} else {
		result.State = StateCompleted
	}
	logger.Info("deployment finished", "state", string(result.State))
	return result
}

func skipRemaining(result *Result, p *plan.Plan, rest []string) {
	for _, id := range rest {
		result.Outcomes = append(result.Outcomes, Outcome{
			ID: id, Action: p.Entries[id], Status: StatusSkippedUpstream,
		})
	}
}
