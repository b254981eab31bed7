package cli

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Version is the release version, overridden at build time via
// -ldflags "-X github.com/quenchlabs/quench/internal/cli.Version=v1.2.3".
var Version = "dev"

// VersionInfo is the version payload for JSON output.
type VersionInfo struct {
	Version  string `json:"version"`
	Revision string `json:"revision,omitempty"`
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info := VersionInfo{Version: Version, Revision: vcsRevision()}

			if rootOpts.Format == "json" {
				formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
				return formatter.Success(info)
			}

			if info.Revision != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "quench %s (%s)\n", info.Version, info.Revision)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "quench %s\n", info.Version)
			}
			return nil
		},
	}
}

// vcsRevision reports the short VCS revision baked into the binary, if any.
func vcsRevision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 8 {
			return s.Value[:8]
		}
	}
	return ""
}
