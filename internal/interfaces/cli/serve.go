package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/turtacn/molregistry/internal/app"
)

// NewServeCommand returns a standalone server command, used as the root of
// the apiserver binary.
func NewServeCommand() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:           "molregistry-server",
		Short:         "Run the molecule registry HTTP server",
		Version:       Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path (environment only when empty)")
	return cmd
}

func newServeCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run a registry server in the foreground",
		Long: "serve starts the registry HTTP server using --config and MOLREG_* environment\n" +
			"variables.  SIGINT or SIGTERM drains in-flight requests before exiting.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts.ConfigPath)
		},
	}
}

func runServe(cmd *cobra.Command, configPath string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return app.Main(ctx, configPath, Version)
}
