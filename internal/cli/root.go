// Package cli implements finsview-cli, scripted access to the backend the
// terminal client browses.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"finsview/internal/config"
	"finsview/internal/trace"
	"finsview/internal/util"
	"finsview/pkg/gofins"
)

// Version is reported by the version command and tagged on trace spans.
const Version = "0.1.0"

// Options overrides the collaborators NewRootCmd would otherwise build from
// configuration.
type Options struct {
	Client *gofins.Client
	Logger *slog.Logger
	// Confirm asks a yes/no question before destructive commands. Defaults
	// to an interactive survey prompt.
	Confirm func(question string) (bool, error)
}

// app is the state shared by every command, filled in before the command
// runs.
type app struct {
	opts    Options
	cfg     *config.Config
	client  *gofins.Client
	log     *slog.Logger
	out     io.Writer
	confirm func(question string) (bool, error)
}

// NewRootCmd creates the root command.
func NewRootCmd(opts Options) *cobra.Command {
	a := &app{opts: opts}
	var cfgPath, logLevel string

	rootCmd := &cobra.Command{
		Use:   "finsview-cli",
		Short: "finsview - symbols, ratings and analyses from the command line",
		Long: `finsview-cli talks to the same gofins backend as the finsview terminal client.
It lists and filters symbols, manages favorites and ratings, runs analyses
and inspects their results, and caches price history locally.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd, cfgPath, logLevel)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return trace.Shutdown(ctx)
		},
	}

	rootCmd.AddCommand(
		newSymbolsCmd(a),
		newSymbolCmd(a),
		newSearchCmd(a),
		newFavoritesCmd(a),
		newRatingsCmd(a),
		newNotesCmd(a),
		newPricesCmd(a),
		newChartCmd(a),
		newAnalysesCmd(a),
		newErrorsCmd(a),
		newStatusCmd(a),
		newStateCmd(a),
		newVersionCmd(a),
	)

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level written to stderr")

	return rootCmd
}

func (a *app) setup(cmd *cobra.Command, cfgPath, logLevel string) error {
	cfg, err := config.Load(config.ResolvePath(cfgPath))
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.out = cmd.OutOrStdout()

	a.log = a.opts.Logger
	if a.log == nil {
		a.log = util.NewLogger(logLevel, cfg.Logging.Format, cmd.ErrOrStderr())
	}

	if err := trace.Init(trace.Options{Enabled: cfg.Tracing.Enabled, Version: Version, Writer: cmd.ErrOrStderr()}); err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}

	a.client = a.opts.Client
	if a.client == nil {
		a.client = gofins.NewClient(gofins.Options{
			BaseURL:         cfg.API.BaseURL,
			Username:        cfg.API.Username,
			Password:        cfg.API.Password,
			Timeout:         cfg.API.Timeout,
			Retries:         cfg.API.Retries,
			RateLimitPerMin: cfg.API.RateLimitPerMin,
			Logger:          a.log,
		})
	}

	a.confirm = a.opts.Confirm
	if a.confirm == nil {
		a.confirm = surveyConfirm
	}
	return nil
}

func surveyConfirm(question string) (bool, error) {
	ok := false
	if err := survey.AskOne(&survey.Confirm{Message: question, Default: false}, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// confirmed asks question unless force is set and reports whether to go on.
func (a *app) confirmed(force bool, question string) (bool, error) {
	if force {
		return true, nil
	}
	ok, err := a.confirm(question)
	if err != nil {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}
	if !ok {
		a.printf("Cancelled\n")
	}
	return ok, nil
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *app) rule(width int) {
	a.printf("%s\n", strings.Repeat("─", width))
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			a.printf("finsview-cli %s\n", Version)
		},
	}
}
