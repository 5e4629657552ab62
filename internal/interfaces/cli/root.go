// Package cli implements molctl, the command-line client for the registry.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/molregistry/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molregistry/pkg/client"
	"github.com/turtacn/molregistry/pkg/errors"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const (
	defaultServerAddr = "http://localhost:8000"
	serverEnvVar      = "MOLCTL_SERVER"
)

// Output formats.
const (
	OutputText  = "text"
	OutputJSON  = "json"
	OutputYAML  = "yaml"
	OutputTable = "table"
)

type cliContextKey struct{}

// RootOptions holds global CLI flags.
type RootOptions struct {
	ConfigPath   string
	ServerAddr   string
	OutputFormat string
	LogLevel     string
	Verbose      bool
	NoColor      bool
	Timeout      time.Duration
}

// CLIContext carries initialized dependencies through the command tree.
type CLIContext struct {
	Logger       logging.Logger
	OutputFormat string
	Timeout      time.Duration

	serverAddr string
	client     *client.Client
}

// Client returns the API client, creating it on first use so commands that
// never talk to a server do not need a valid --server.
func (c *CLIContext) Client() (*client.Client, error) {
	if c.client != nil {
		return c.client, nil
	}
	cl, err := client.NewClient(c.serverAddr,
		client.WithLogger(clientLogger{c.Logger}),
		client.WithUserAgent("molctl/"+Version),
	)
	if err != nil {
		return nil, err
	}
	c.client = cl
	return cl, nil
}

// NewRootCommand creates the root command with all global flags and
// subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "molctl",
		Short: "molctl manages a molecule registry",
		Long: "molctl talks to a molregistry server: register, update and delete molecules,\n" +
			"bulk-load identifier:SMILES files and run substructure searches.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return persistentPreRun(cmd, opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "server config file, used by serve")
	pf.StringVarP(&opts.ServerAddr, "server", "s", "", "registry server URL (default $"+serverEnvVar+" or "+defaultServerAddr+")")
	pf.StringVarP(&opts.OutputFormat, "output", "o", OutputText, "output format (text, json, yaml, table)")
	pf.StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")
	pf.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "per-command timeout")

	cmd.AddCommand(
		newGetCmd(),
		newAddCmd(),
		newUpdateCmd(),
		newDeleteCmd(),
		newListCmd(),
		newSearchCmd(),
		newUploadCmd(),
		newEventsCmd(),
		newServeCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func persistentPreRun(cmd *cobra.Command, opts *RootOptions) error {
	switch opts.OutputFormat {
	case OutputText, OutputJSON, OutputYAML, OutputTable:
	default:
		return errors.New(errors.ErrCodeValidation,
			fmt.Sprintf("invalid output format %q (must be text|json|yaml|table)", opts.OutputFormat))
	}
	if opts.NoColor {
		color.NoColor = true
	}

	logger, err := initLogger(opts)
	if err != nil {
		return fmt.Errorf("logger initialization failed: %w", err)
	}

	addr := opts.ServerAddr
	if addr == "" {
		addr = os.Getenv(serverEnvVar)
	}
	if addr == "" {
		addr = defaultServerAddr
	}

	cliCtx := &CLIContext{
		Logger:       logger,
		OutputFormat: opts.OutputFormat,
		Timeout:      opts.Timeout,
		serverAddr:   addr,
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cliCtx))
	return nil
}

// initLogger creates a console logger on stderr so stdout stays parseable.
func initLogger(opts *RootOptions) (logging.Logger, error) {
	level := strings.ToLower(opts.LogLevel)
	if opts.Verbose {
		level = "debug"
	}
	return logging.NewLogger(logging.LogConfig{
		Level:            level,
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
}

// GetCLIContext extracts CLIContext from a command's context.
func GetCLIContext(cmd *cobra.Command) (*CLIContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		return nil, errors.New(errors.ErrCodeInternal, "command context is nil")
	}
	cliCtx, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok || cliCtx == nil {
		return nil, errors.New(errors.ErrCodeInternal, "CLIContext not found in command context")
	}
	return cliCtx, nil
}

// commandContext bounds a server call by --timeout.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc, *client.Client, error) {
	cc, err := GetCLIContext(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	cl, err := cc.Client()
	if err != nil {
		return nil, nil, nil, err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), cc.Timeout)
	return ctx, cancel, cl, nil
}

// Execute is the main entry point for molctl.
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		PrintError(rootCmd, err)
		return err
	}
	return nil
}

// clientLogger adapts logging.Logger to the SDK's printf-style logger.
type clientLogger struct {
	l logging.Logger
}

func (c clientLogger) Debugf(format string, args ...interface{}) {
	c.l.Debug(fmt.Sprintf(format, args...))
}

// Errorf logs at debug level; the command reports the final error itself.
func (c clientLogger) Errorf(format string, args ...interface{}) {
	c.l.Debug(fmt.Sprintf(format, args...))
}
