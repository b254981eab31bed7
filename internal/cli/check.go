package cli

import (
	"fmt"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/quenchlabs/quench/internal/suitefile"
)

// CheckResult holds validation results for suite files.
type CheckResult struct {
	Valid  bool         `json:"valid"`
	Files  int          `json:"files"`
	Errors []CheckError `json:"errors,omitempty"`
}

// CheckError is one invalid suite file.
type CheckError struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <suite-glob>...",
		Short: "Validate suite files without running them",
		Long: `Validate YAML suite files without executing any tests.

Performs strict decoding (unknown fields rejected) and structural
validation of every matched file. Faster than a run for editing feedback.

Exit codes:
  0 - All files valid
  2 - One or more files invalid, or no files matched`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runCheck(opts *RootOptions, patterns []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	var files []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("invalid pattern %q", pattern), err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	if len(files) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no suite files matched %v", patterns))
	}

	result := CheckResult{Valid: true, Files: len(files)}
	for _, file := range files {
		formatter.VerboseLog("Checking %s", file)
		if _, err := suitefile.Load(file); err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, CheckError{
				File:    file,
				Message: err.Error(),
			})
		}
	}

	if opts.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		for _, e := range result.Errors {
			fmt.Fprintf(cmd.OutOrStdout(), "✗ %s\n  %s\n", e.File, e.Message)
		}
		if result.Valid {
			fmt.Fprintf(cmd.OutOrStdout(), "%d suite file(s) valid\n", result.Files)
		}
	}

	if !result.Valid {
		return NewExitError(ExitCommandError, fmt.Sprintf("%d suite file(s) invalid", len(result.Errors)))
	}
	return nil
}
