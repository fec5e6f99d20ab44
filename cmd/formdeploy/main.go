// Command formdeploy deploys a package of form definitions to a Joget
// instance in dependency order.
//
// Exit codes: 0 success, 1 one or more artifacts failed, 2 validation or
// prerequisite failure (nothing executed), 3 cancelled by the user.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aarelaponin/joget-deployment-toolkit/internal/app"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/audit"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/executor"
	"github.com/aarelaponin/joget-deployment-toolkit/internal/plan"
)

// ExitError carries a specific process exit code up to main.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCommand().ExecuteContext(ctx)
	if err == nil {
		return
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Message != "" {
			fmt.Fprintf(os.Stderr, "error: %s\n", exitErr.Message)
		}
		os.Exit(exitErr.Code)
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(2)
}

// exitErrorFor maps a pipeline error to an exit code. Cancellation anywhere
// in the invocation (profile load, snapshot fetch, execution) is the
// user-cancelled code, not a generic failure.
func exitErrorFor(err error) *ExitError {
	if errors.Is(err, context.Canceled) {
		return &ExitError{Code: 3, Message: "cancelled"}
	}
	return &ExitError{Code: 2, Message: err.Error()}
}

type globalFlags struct {
	profilesPath string
	auditLogPath string
	logLevel     string
	logFormat    string
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "formdeploy",
		Short:         "Dependency-ordered form deployment for Joget instances",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flags.profilesPath, "profiles", "profiles.hcl", "Path to the HCL instance profiles file")
	cmd.PersistentFlags().StringVar(&flags.auditLogPath, "audit-log", "formdeploy-audit.log", "Path to the append-only audit log")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&flags.logFormat, "log-format", "text", "Log format: text or json")

	cmd.AddCommand(newDeployCommand(flags))
	cmd.AddCommand(newCheckCommand(flags))
	cmd.AddCommand(newStatusCommand(flags))
	return cmd
}

func newDeployCommand(flags *globalFlags) *cobra.Command {
	var (
		targetName string
		modeStr    string
		dryRun     bool
		updateOnly bool
		exclude    []string
	)

	cmd := &cobra.Command{
		Use:   "deploy <source-dir>",
		Short: "Deploy a form package to a target instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, ok := executor.ParseMode(modeStr)
			if !ok {
				return &ExitError{Code: 2, Message: fmt.Sprintf("invalid --mode %q: must be 'stop' or 'continue'", modeStr)}
			}

			a := app.New(os.Stderr, flags.logLevel, flags.logFormat)
			report, err := a.Deploy(cmd.Context(), app.Options{
				SourceDir:    args[0],
				ProfilePath:  flags.profilesPath,
				TargetName:   targetName,
				Mode:         mode,
				DryRun:       dryRun,
				UpdateOnly:   updateOnly,
				Exclude:      exclude,
				AuditLogPath: flags.auditLogPath,
			})
			if err != nil {
				return exitErrorFor(err)
			}

			printFindings(cmd, report.Prereq.Blockers, report.Prereq.Warnings)
			if !report.Prereq.Passed {
				return &ExitError{Code: 2, Message: "prerequisite checks failed, nothing deployed"}
			}

			if dryRun {
				out, err := report.Plan.Preview()
				if err != nil {
					return &ExitError{Code: 2, Message: err.Error()}
				}
				cmd.Println(string(out))
				return nil
			}

			printOutcomes(cmd, report.Exec, report.Record)
			if report.Exec.Cancelled {
				return &ExitError{Code: 3, Message: "deployment cancelled"}
			}
			if report.Exec.Failed() {
				return &ExitError{Code: 1, Message: ""}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&targetName, "target", "", "Target instance profile name")
	cmd.Flags().StringVar(&modeStr, "mode", "stop", "Failure handling: 'stop' or 'continue'")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan and check only, deploy nothing")
	cmd.Flags().BoolVar(&updateOnly, "update-only", false, "Skip artifacts that do not already exist on the target")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Artifact IDs to skip")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func newCheckCommand(flags *globalFlags) *cobra.Command {
	var targetName string

	cmd := &cobra.Command{
		Use:   "check <source-dir>",
		Short: "Validate a form package without deploying",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app.New(os.Stderr, flags.logLevel, flags.logFormat)
			p, err := a.Check(cmd.Context(), app.Options{
				SourceDir:   args[0],
				ProfilePath: flags.profilesPath,
				TargetName:  targetName,
			})
			if err != nil {
				return exitErrorFor(err)
			}

			out, err := p.Preview()
			if err != nil {
				return &ExitError{Code: 2, Message: err.Error()}
			}
			cmd.Println(string(out))

			if !p.Valid() {
				return &ExitError{Code: 2, Message: "package validation failed"}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&targetName, "target", "", "Optional target profile for external-reference resolution")
	return cmd
}

func newStatusCommand(flags *globalFlags) *cobra.Command {
	var last int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent deployment runs from the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := audit.ReadAll(flags.auditLogPath)
			if err != nil {
				if os.IsNotExist(err) {
					cmd.Println("no audit log yet")
					return nil
				}
				return &ExitError{Code: 2, Message: err.Error()}
			}
			if last > 0 && len(records) > last {
				records = records[len(records)-last:]
			}
			for _, rec := range records {
				cmd.Printf("%s  %s  target=%s  created=%d updated=%d failed=%d skipped=%d\n",
					rec.Timestamp, rec.RunID, rec.Target,
					rec.Summary.Created, rec.Summary.Updated, rec.Summary.Failed, rec.Summary.Skipped)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&last, "last", "n", 10, "Number of most recent runs to show")
	return cmd
}

// printFindings lists every blocker and warning before anything mutates.
func printFindings(cmd *cobra.Command, blockers, warnings []string) {
	for _, b := range blockers {
		cmd.Printf("BLOCKER  %s\n", b)
	}
	for _, w := range warnings {
		cmd.Printf("WARNING  %s\n", w)
	}
}

// printOutcomes renders the per-artifact outcome table and the run summary.
func printOutcomes(cmd *cobra.Command, res *executor.Result, rec *audit.Record) {
	if res == nil {
		return
	}
	for _, o := range res.Outcomes {
		switch o.Status {
		case executor.StatusSucceeded:
			cmd.Printf("%-8s %-20s %s (%dms)\n", string(o.Action), o.ID, o.Status, o.Duration.Milliseconds())
		case executor.StatusFailed:
			cmd.Printf("%-8s %-20s %s: %v\n", string(o.Action), o.ID, o.Status, o.Err)
		default:
			cmd.Printf("%-8s %-20s %s\n", string(o.Action), o.ID, o.Status)
		}
	}
	skips := append([]string(nil), res.PlannedSkips...)
	sort.Strings(skips)
	for _, id := range skips {
		cmd.Printf("%-8s %-20s not attempted\n", string(plan.ActionSkip), id)
	}
	if rec != nil {
		cmd.Printf("run %s: %s  created=%d updated=%d failed=%d skipped=%d\n",
			rec.RunID, string(res.State),
			rec.Summary.Created, rec.Summary.Updated, rec.Summary.Failed, rec.Summary.Skipped)
	}
}
