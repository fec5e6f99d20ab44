// Package audit appends one structured record per deployment run to a
// newline-delimited JSON log. The log is append-only: records are never
// rewritten or deleted, and a failed append never masks the run's in-memory
// result.
package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/aarelaponin/joget-deployment-toolkit/internal/ctxlog"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/executor"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/plan"
)

// OutcomeRecord is the serialized form of one artifact outcome.
type OutcomeRecord struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	DurationMs int64  `json:"durationMs"`
	Error      string `json:"error,omitempty"`
}

// Summary carries the run's outcome counts.
type Summary struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
}

// Record is one audit log line.
type Record struct {
	RunID     string          `json:"runId"`
	Timestamp string          `json:"timestamp"`
	Target    string          `json:"target"`
	PlanOrder []string        `json:"planOrder"`
	Outcomes  []OutcomeRecord `json:"outcomes"`
	Summary   Summary         `json:"summary"`
}

// NewRecord assembles a record from a finished (or aborted) run. The run ID
// is a fresh UUID; the timestamp is UTC ISO-8601.
func NewRecord(targetName string, p *plan.Plan, result *executor.Result) Record {
	rec := Record{
		RunID:     uuid.NewString(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Target:    targetName,
		PlanOrder: append([]string(nil), p.Order...),
		Outcomes:  make([]OutcomeRecord, 0, len(result.Outcomes)),
	}
	if rec.PlanOrder == nil {
		rec.PlanOrder = []string{}
	}

	for _, o := range result.Outcomes {
		out := OutcomeRecord{
			ID:         o.ID,
			Status:     string(o.Status),
			DurationMs: o.Duration.Milliseconds(),
		}
		if o.Err != nil {
			out.Error = o.Err.Error()
		}
		rec.Outcomes = append(rec.Outcomes, out)

		switch o.Status {
		case executor.StatusSucceeded:
			if o.Action == plan.ActionCreate {
				rec.Summary.Created++
			} else {
				rec.Summary.Updated++
			}
		case executor.StatusFailed:
			rec.Summary.Failed++
		case executor.StatusSkippedUpstream:
			rec.Summary.Skipped++
		}
	}
	rec.Summary.Skipped += len(result.PlannedSkips)
	return rec
}

// Recorder appends records to one log file.
type Recorder struct {
	path string
}

// NewRecorder returns a recorder for the given log path. The file is created
// on first append.
func NewRecorder(path string) *Recorder {
	return &Recorder{path: path}
}

// Append writes the record as a single JSON line. Prior lines are never
// touched; the file is opened in append mode for every call so two processes
// auditing to the same file interleave whole lines at worst.
func (r *Recorder) Append(ctx context.Context, rec Record) error {
	logger := ctxlog.FromContext(ctx)

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshaling audit record: %w", err)
	}

	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log %s: %w", r.path, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending audit record: %w", err)
	}
	logger.Debug("audit record written", "run_id", rec.RunID, "path", r.path)
	return nil
}

// ReadAll parses every record in a log file, oldest first. Used by the
// status command and by round-trip verification.
func ReadAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("parsing audit log %s: %w", path, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
