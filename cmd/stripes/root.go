package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/stripes-go/stripes/internal/demo"
	"github.com/stripes-go/stripes/internal/utils"
	"github.com/stripes-go/stripes/pkg/stripes/controller"
)

// globalOptions are the flags shared by every subcommand
type globalOptions struct {
	envFiles []string
	verbose  bool
	quiet    bool
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:   "stripes",
		Short: "Serve and inspect the stripes demo catalog",
		Long: `stripes hosts the demo action beans behind the dispatcher.

Configuration comes from the environment, after any --env files (.env by
default). See "stripes check" for a dry run of the configuration.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringSliceVar(&opts.envFiles, "env", nil, "env files loaded before reading the environment (default .env)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose output and debug logging")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "only show errors")

	root.AddCommand(
		newRoutesCommand(opts),
		newCheckCommand(opts),
		newServeCommand(opts),
	)
	return root
}

// diagnostics writes user-facing output for cmd. Colors are used only on a
// real stdout.
func (o *globalOptions) diagnostics(cmd *cobra.Command) *utils.DiagnosticSystem {
	level := utils.DiagnosticInfo
	switch {
	case o.quiet:
		level = utils.DiagnosticError
	case o.verbose:
		level = utils.DiagnosticVerbose
	}
	if out := cmd.OutOrStdout(); out != os.Stdout {
		return utils.NewWriterDiagnostics(level, out)
	}
	return utils.NewDiagnosticSystem(level)
}

// logger returns the structured logger, writing to stderr
func (o *globalOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case o.quiet:
		level = slog.LevelError
	case o.verbose:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// demoRegistry registers the demo beans in a fresh registry
func demoRegistry(logger *slog.Logger) (*controller.Registry, error) {
	registry := controller.NewRegistry(logger)
	if err := demo.NewApp(nil).Register(registry); err != nil {
		return nil, err
	}
	return registry, nil
}
