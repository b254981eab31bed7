package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quenchlabs/quench/internal/report"
	"github.com/quenchlabs/quench/internal/runner"
	"github.com/quenchlabs/quench/internal/store"
	"github.com/quenchlabs/quench/internal/suitefile"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Title          string
	Filter         string
	Module         string
	TestNumber     int
	Timeout        time.Duration
	Database       string
	HidePassed     bool
	Reverse        bool
	RequireExpects bool

	// Tokens allows overriding the run token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	Tokens runner.TokenGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <suite-glob>...",
		Short: "Run suite files",
		Long: `Run YAML suite files and report per-assertion results.

Each argument is a glob pattern (doublestar syntax, so ** crosses
directories). Matched suites are registered in order and executed by a
single cooperative scheduler.

Exit codes:
  0 - All tests passed
  1 - One or more tests failed (or the run was aborted)
  2 - Command error (no matching files, invalid suite, etc.)

Examples:
  quench run ./suites/math.yaml
  quench run "suites/**/*.yaml" --filter addition
  quench run suites/*.yaml --module arithmetic --timeout 30s
  quench run suites/*.yaml --db ./artifact.db --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuites(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Title, "title", "", "report title (defaults to the first suite's title)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "run only tests whose full name contains this substring (prefix with ! to invert)")
	cmd.Flags().StringVar(&opts.Module, "module", "", "run only tests in the named module")
	cmd.Flags().IntVar(&opts.TestNumber, "test-number", 0, "run only the test with this 1-based registration number")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "per-test resume timeout for suspended tests (0 = no timeout)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "write the run report to a SQLite artifact at this path")
	cmd.Flags().BoolVar(&opts.HidePassed, "hide-passed", false, "omit passing tests from the report")
	cmd.Flags().BoolVar(&opts.Reverse, "reverse", false, "list tests in reverse completion order")
	cmd.Flags().BoolVar(&opts.RequireExpects, "require-expects", false, "fail tests that do not declare an expected assertion count")

	return cmd
}

func runSuites(opts *RunOptions, patterns []string, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	})
	logger := slog.New(handler)

	logger.Debug("loading suites", "patterns", patterns)
	suites, err := suitefile.LoadGlob(patterns...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load suites", err)
	}
	if len(suites) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no suite files matched %v", patterns))
	}
	logger.Info("suites loaded", "count", len(suites))

	title := opts.Title
	if title == "" {
		for _, s := range suites {
			if s.Title != "" {
				title = s.Title
				break
			}
		}
	}

	tokens := opts.Tokens
	if tokens == nil {
		tokens = runner.UUIDv7Generator{}
	}

	r := runner.New(runner.Config{
		Title:          title,
		RequireExpects: opts.RequireExpects,
		HidePassed:     opts.HidePassed,
		Reverse:        opts.Reverse,
		Filter:         opts.Filter,
		Module:         opts.Module,
		TestNumber:     opts.TestNumber,
		Timeout:        opts.Timeout,
		Logger:         logger,
		Tokens:         tokens,
	})
	suitefile.Register(r, suites...)

	// Setup signal handling so Ctrl-C aborts suspended tests cleanly.
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, aborting run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	rep, err := r.Run(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "run aborted", err)
	}

	if opts.Database != "" {
		// The artifact always carries the full execution-order report,
		// regardless of presentational flags.
		full := r.Snapshot()
		if err := writeArtifact(ctx, opts.Database, &full, logger); err != nil {
			return WrapExitError(ExitCommandError, "failed to write artifact", err)
		}
	}

	if opts.Format == "json" {
		if err := outputRunJSON(cmd, *rep); err != nil {
			return err
		}
	} else {
		outputRunText(cmd, *rep)
	}

	if rep.Stats.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d assertions failed", rep.Stats.Failed, rep.Stats.Total))
	}
	return nil
}

// writeArtifact persists the report to a SQLite database at path.
func writeArtifact(ctx context.Context, path string, rep *report.Report, logger *slog.Logger) error {
	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()

	if err := st.WriteReport(ctx, rep); err != nil {
		return err
	}
	logger.Info("artifact written", "path", path, "run_id", rep.RunID)
	return nil
}

func outputRunJSON(cmd *cobra.Command, rep report.Report) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(CLIResponse{
		Status: "ok",
		Data:   rep,
	})
}

func outputRunText(cmd *cobra.Command, rep report.Report) {
	w := cmd.OutOrStdout()

	if rep.Title != "" {
		fmt.Fprintf(w, "%s\n\n", rep.Title)
	}

	for _, tr := range rep.Tests {
		name := tr.Name
		if tr.Module != "" {
			name = tr.Module + ": " + tr.Name
		}

		switch {
		case tr.Skipped:
			fmt.Fprintf(w, "- %s (skipped)\n", name)
		case tr.Failed == 0:
			fmt.Fprintf(w, "✓ %s (%d assertions, %s)\n", name, tr.Total, tr.Duration.Duration())
		default:
			fmt.Fprintf(w, "✗ %s (%d/%d failed, %s)\n", name, tr.Failed, tr.Total, tr.Duration.Duration())
			for _, a := range tr.Assertions {
				if a.Result {
					continue
				}
				fmt.Fprintf(w, "  #%d %s\n", a.Seq, a.Message)
				if a.Expected != nil || a.Actual != nil {
					fmt.Fprintf(w, "     expected: %v\n", a.Expected)
					fmt.Fprintf(w, "     actual:   %v\n", a.Actual)
				}
			}
		}
	}

	fmt.Fprintf(w, "\n%d assertions: %d passed, %d failed (%s)\n",
		rep.Stats.Total, rep.Stats.Passed, rep.Stats.Failed, rep.Stats.Runtime.Duration())
}
