// Package app is the composition root. It wires the pipeline the rest of
// the repository implements in pieces:
//
//	load package -> scan references -> build graph -> validate ->
//	plan -> prerequisite checks -> execute -> audit
//
// Everything up to and including planning is read-only, so the same pipeline
// backs both a real deployment and a dry-run or check-only invocation.
package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/aarelaponin/joget-deployment-toolkit/internal/artifact"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/audit"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/ctxlog"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/depgraph"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/executor"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/plan"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/prereq"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/profile"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/refscan"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/target"
)

// Options configures one invocation.
type Options struct {
	SourceDir    string
	ProfilePath  string
	TargetName   string
	Mode         executor.Mode
	DryRun       bool
	UpdateOnly   bool
	Exclude      []string
	AuditLogPath string
}

// Report is everything one invocation produced. Exec and Record are nil when
// nothing was executed (dry-run, or prerequisite failure).
type Report struct {
	Plan     *plan.Plan
	Prereq   *prereq.Result
	Exec     *executor.Result
	Record   *audit.Record
	AuditErr error
}

// App owns the logger and the store factory. The factory is injectable so
// tests can run the full pipeline against a fake target.
type App struct {
	logger   *slog.Logger
	newStore func(target.Config) target.Store
}

// New builds an App writing logs to outW.
func New(outW io.Writer, logLevel, logFormat string) *App {
	return &App{
		logger: newLogger(logLevel, logFormat, outW),
		newStore: func(cfg target.Config) target.Store {
			return target.NewJogetStore(cfg)
		},
	}
}

// Logger returns the app's logger for embedding into a context.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// analysis is the read-only front half of the pipeline.
type analysis struct {
	batch *artifact.Batch
	plan  *plan.Plan
}

// analyze loads the source package, scans references, builds and validates
// the graph, and computes the plan against the given snapshot.
func (a *App) analyze(ctx context.Context, opts Options, snap *target.Snapshot) (*analysis, error) {
	loaded, err := artifact.Load(ctx, opts.SourceDir)
	if err != nil {
		return nil, err
	}

	refs := make(map[string][]refscan.Reference, len(loaded.Batch.Artifacts))
	for _, art := range loaded.Batch.Artifacts {
		refs[art.ID] = refscan.Scan(art.ID, art.Definition)
	}

	g, err := depgraph.Build(ctx, loaded.Batch, refs)
	if err != nil {
		return nil, err
	}

	validation := depgraph.Validate(ctx, g, snap)
	p := plan.Compute(ctx, g, snap, validation, plan.Options{
		UpdateOnly:    opts.UpdateOnly,
		Exclude:       opts.Exclude,
		ExtraWarnings: loaded.Warnings,
	})

	return &analysis{batch: loaded.Batch, plan: p}, nil
}

// Check runs the read-only half of the pipeline. With a target profile the
// snapshot is fetched for external-reference resolution and CREATE/UPDATE
// classification; without one, an empty snapshot is used and every artifact
// classifies as CREATE.
func (a *App) Check(ctx context.Context, opts Options) (*plan.Plan, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	snap := target.NewSnapshot("", nil)
	if opts.TargetName != "" {
		prof, err := profile.Load(ctx, opts.ProfilePath, opts.TargetName)
		if err != nil {
			return nil, err
		}
		store := a.newStore(prof.Target)
		defer closeStore(store)
		snap, err = store.Snapshot(ctx)
		if err != nil {
			return nil, err
		}
	}

	an, err := a.analyze(ctx, opts, snap)
	if err != nil {
		return nil, err
	}
	return an.plan, nil
}

// Deploy runs the whole pipeline. The returned report is non-nil whenever
// planning succeeded, even if prerequisites failed or execution aborted; the
// caller decides the exit code from its contents.
func (a *App) Deploy(ctx context.Context, opts Options) (*Report, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	logger := a.logger

	prof, err := profile.Load(ctx, opts.ProfilePath, opts.TargetName)
	if err != nil {
		return nil, err
	}
	store := a.newStore(prof.Target)
	defer closeStore(store)

	snap, err := store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	an, err := a.analyze(ctx, opts, snap)
	if err != nil {
		return nil, err
	}
	report := &Report{Plan: an.plan}

	report.Prereq = prereq.Check(ctx, an.plan, store)
	if !report.Prereq.Passed {
		logger.Warn("prerequisite checks failed, nothing deployed", "blockers", len(report.Prereq.Blockers))
		return report, nil
	}

	if opts.DryRun {
		logger.Info("dry run, nothing deployed")
		return report, nil
	}

	report.Exec = executor.Run(ctx, an.plan, an.batch, store, opts.Mode)

	rec := audit.NewRecord(opts.TargetName, an.plan, report.Exec)
	report.Record = &rec
	if opts.AuditLogPath != "" {
		recorder := audit.NewRecorder(opts.AuditLogPath)
		if err := recorder.Append(ctx, rec); err != nil {
			// Audit failure must not mask the deployment outcome.
			logger.Error("audit record write failed", "error", err)
			report.AuditErr = err
		}
	}

	return report, nil
}

func closeStore(s target.Store) {
	if c, ok := s.(io.Closer); ok {
		_ = c.Close()
	}
}
