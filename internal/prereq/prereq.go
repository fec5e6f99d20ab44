// Package prereq runs environment-level gating checks before any mutation.
// Every check runs even after one fails: the operator gets the complete
// blocker list in one round-trip instead of fixing issues one at a time.
package prereq

import (
	"context"
	"fmt"

	"github.com/aarelaponin/joget-deployment-toolkit/internal/ctxlog"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/plan"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/target"
)

// Result is the combined outcome of all prerequisite checks plus the plan's
// own blockers and warnings.
type Result struct {
	Passed   bool
	Blockers []string
	Warnings []string
}

// Check verifies the target is reachable, the application container exists
// and the credentials are valid, then re-surfaces the plan's blocking errors
// and warnings. Passed is false if anything blocking was found; no mutation
// has happened either way.
func Check(ctx context.Context, p *plan.Plan, store target.Store) *Result {
	logger := ctxlog.FromContext(ctx)
	result := &Result{}

	if err := store.Ping(ctx); err != nil {
		result.Blockers = append(result.Blockers, fmt.Sprintf("target unreachable: %v", err))
	}

	exists, err := store.AppExists(ctx)
	switch {
	case err != nil:
		result.Blockers = append(result.Blockers, fmt.Sprintf("application check failed: %v", err))
	case !exists:
		result.Blockers = append(result.Blockers, "target application does not exist")
	}

	if err := store.ValidateCredentials(ctx); err != nil {
		result.Blockers = append(result.Blockers, fmt.Sprintf("credential check failed: %v", err))
	}

	result.Blockers = append(result.Blockers, p.BlockingErrors...)
	result.Warnings = append(result.Warnings, p.Warnings...)

	result.Passed = len(result.Blockers) == 0
	logger.Debug("prerequisite checks complete",
		"passed", result.Passed, "blockers", len(result.Blockers), "warnings", len(result.Warnings))
	return result
}
