package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/clqa/internal/cache"
	"github.com/roach88/clqa/internal/config"
	"github.com/roach88/clqa/internal/confirm"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Yes        bool
	NoInput    bool

	// Confirmer overrides --yes/--no-input and the terminal prompt (for testing).
	Confirmer confirm.Confirmer

	// Computer overrides the configured worker command (for testing).
	Computer cache.Computer

	// TokenGenerator overrides UUIDv7 run tokens (for testing).
	TokenGenerator cache.TokenGenerator

	// Now overrides the wall clock (for testing).
	Now func() time.Time
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the clqa CLI.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithOptions(&RootOptions{})
}

// NewRootCommandWithOptions creates the root command around opts, so tests
// can inject confirmers, computers and clocks.
func NewRootCommandWithOptions(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clqa",
		Short: "clqa - parameter-keyed cache for CoLoRe QA results",
		Long: `Find, read and compute CoLoRe QA results (angular power spectra, shear
maps) stored per simulation under parameter-keyed record directories.

Results are looked up by partial parameter match. A miss is computed only
after confirmation, and deleting anything always asks first.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.validate()
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", os.Getenv(config.EnvVar), "config file (default $"+config.EnvVar+")")
	cmd.PersistentFlags().BoolVarP(&opts.Yes, "yes", "y", false, "answer yes to every confirmation")
	cmd.PersistentFlags().BoolVar(&opts.NoInput, "no-input", false, "never prompt; answer no to every confirmation")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewSimsCommand(opts))
	cmd.AddCommand(NewFindCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewComputeCommand(opts))
	cmd.AddCommand(NewBinsCommand(opts))
	cmd.AddCommand(NewRmCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

func (o *RootOptions) validate() error {
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}
	if o.Yes && o.NoInput {
		return NewExitError(ExitCommandError, "--yes and --no-input are mutually exclusive")
	}
	return nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig reads the config file and installs the default logger on
// errOut. --verbose wins over the configured level.
func (o *RootOptions) loadConfig(errOut io.Writer) (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	level := cfg.Level()
	if o.Verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))

	return cfg, nil
}

// confirmer returns who answers confirmations. Answers come only from the
// terminal or the --yes/--no-input policy, never from config.
func (o *RootOptions) confirmer(cmd *cobra.Command) confirm.Confirmer {
	switch {
	case o.Confirmer != nil:
		return o.Confirmer
	case o.Yes:
		return confirm.Always(true)
	case o.NoInput:
		return confirm.Always(false)
	}
	return confirm.Interactive(os.Stdin, cmd.ErrOrStderr())
}

func (o *RootOptions) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// Execute runs the root command and reports errors in the selected format.
// It returns the process exit code.
func Execute(cmd *cobra.Command, opts *RootOptions) int {
	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), ErrWriter: cmd.ErrOrStderr(), Verbose: opts.Verbose}
	var details any
	var ce *cache.Error
	if errors.As(err, &ce) && len(ce.Candidates) > 0 {
		details = map[string]any{"candidates": ce.Candidates}
	}
	_ = f.Error(errorCode(err), err.Error(), details)
	return GetExitCode(err)
}
