package cli

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/turtacn/molregistry/pkg/client"
)

// BuildInfo holds version information injected at build time.
type BuildInfo struct {
	Version    string `json:"version" yaml:"version"`
	Commit     string `json:"commit" yaml:"commit"`
	BuildDate  string `json:"build_date" yaml:"build_date"`
	GoVersion  string `json:"go_version" yaml:"go_version"`
	SDKVersion string `json:"sdk_version" yaml:"sdk_version"`
}

func (b BuildInfo) TableHeaders() []string {
	return []string{"Version", "Commit", "Built", "Go", "SDK"}
}

func (b BuildInfo) TableRows() [][]string {
	return [][]string{{b.Version, b.Commit, b.BuildDate, b.GoVersion, b.SDKVersion}}
}

func (b BuildInfo) String() string {
	return "molctl " + b.Version + " (commit: " + b.Commit + ", built: " + b.BuildDate + ", " + b.GoVersion + ")"
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return PrintResult(cmd, BuildInfo{
				Version:    Version,
				Commit:     GitCommit,
				BuildDate:  BuildDate,
				GoVersion:  runtime.Version(),
				SDKVersion: client.Version,
			})
		},
	}
}
