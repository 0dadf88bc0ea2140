// Package cli wires the bioweaver commands: the workflow drivers, report
// generation and run history.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bioweaver/internal/config"
)

// Version is stamped at build time with -ldflags.
var Version = "0.1.0"

// app holds the state shared by every command of one invocation.
type app struct {
	out, errOut io.Writer

	configPath string
	verbose    bool

	cfg    config.Config
	logger *zap.Logger
}

func newApp(out, errOut io.Writer) *app {
	return &app{out: out, errOut: errOut, cfg: config.Default(), logger: zap.NewNop()}
}

// NewRootCommand builds the bioweaver command tree writing to out and errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	return newApp(out, errOut).rootCommand()
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "bioweaver",
		Short: "Run bioBakery style workflows as dependency-tracked task graphs",
		Long: `bioweaver declares each workflow as a graph of command-line tasks linked
by the files they read and write, then runs the graph, skipping every task
whose targets are already up to date.`,
		Version:           Version,
		Args:              noPositionalArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return invalidInvocationf("%v", err)
	})

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "configuration file (default ./"+config.DefaultFileName+" when present)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		a.newMetagenomicCommand(),
		a.newAmpliconCommand(),
		a.newReportCommand(),
		a.newRunsCommand(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	logger, err := newLogger(cfg.LogLevel, a.verbose, a.errOut)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	a.cfg = cfg
	a.logger = logger
	if cfg.Path != "" {
		logger.Debug("configuration loaded", zap.String("path", cfg.Path))
	}
	return nil
}

func noPositionalArgs(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		return invalidInvocationf("unknown command or argument %q for %q", args[0], cmd.CommandPath())
	}
	return nil
}

// Run executes the command line args and returns the process exit code.
// Errors are printed to errOut.
func Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	a := newApp(out, errOut)
	root := a.rootCommand()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	_ = a.logger.Sync()
	if err != nil {
		fmt.Fprintln(errOut, "Error:", err)
	}
	return ExitCode(err)
}
