package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/clqa/internal/config"
	"github.com/roach88/clqa/internal/confirm"
	"github.com/roach88/clqa/internal/kind"
	"github.com/roach88/clqa/internal/ledger"
	"github.com/roach88/clqa/internal/sim"
)

// RmOptions holds flags for the rm command.
type RmOptions struct {
	*RootOptions
	SimDir string
	Kind   string
	Record string
}

// removalView is the JSON form of a removal outcome.
type removalView struct {
	Path    string `json:"path"`
	Scope   string `json:"scope"`
	Outcome string `json:"outcome"`
}

// NewRmCommand creates the rm command.
func NewRmCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RmOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rm",
		Short: "Delete a record, a result store or a whole analysis directory",
		Long: `Delete cached results after a y/n confirmation.

  --sim DIR                        the whole analysis directory
  --sim DIR --kind K               every record of one result store
  --sim DIR --kind K --record ID   a single record

Declining leaves everything untouched. --no-input (or a non-interactive
stdin) declines; --yes approves.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRm(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.SimDir, "sim", "", "simulation analysis directory (required)")
	_ = cmd.MarkFlagRequired("sim")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "result kind (ccl|shear); omit to remove the analysis directory")
	cmd.Flags().StringVar(&opts.Record, "record", "", "record id; requires --kind")

	return cmd
}

func runRm(opts *RmOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if opts.Record != "" && opts.Kind == "" {
		return NewExitError(ExitCommandError, "--record requires --kind")
	}

	s, err := sim.Load(opts.SimDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load simulation", err)
	}

	c := opts.confirmer(cmd)
	ctx := cmd.Context()

	var (
		view    removalView
		outcome confirm.Outcome
	)
	switch {
	case opts.Kind == "":
		view = removalView{Path: s.Dir, Scope: "simulation"}
		outcome, err = s.Remove(ctx, c)

	case opts.Record == "":
		k, kerr := kind.Lookup(opts.Kind)
		if kerr != nil {
			return WrapExitError(ExitCommandError, "invalid --kind", kerr)
		}
		view = removalView{Path: s.StoreRoot(k), Scope: "store"}
		outcome, err = confirm.RemoveStore(ctx, view.Path, c)

	default:
		k, kerr := kind.Lookup(opts.Kind)
		if kerr != nil {
			return WrapExitError(ExitCommandError, "invalid --kind", kerr)
		}
		st, serr := s.OpenStore(k)
		if serr != nil {
			return WrapExitError(ExitCommandError, "failed to open store", serr)
		}
		rec, lerr := st.Load(opts.Record)
		if lerr != nil {
			return WrapExitError(ExitFailure, "failed to load record", lerr)
		}
		view = removalView{Path: rec.Dir, Scope: "record"}
		prompt := fmt.Sprintf("Remove record %s %s from %s?", rec.ID, rec.Params.Without("id"), st.Root())
		outcome, err = confirm.RemoveTree(ctx, rec.Dir, prompt, c)
	}
	view.Outcome = outcome.String()
	recordRemoval(cmd, cfg, opts.now, view)
	if err != nil {
		return WrapExitError(ExitFailure, "remove failed", err)
	}

	f := opts.formatter(cmd)
	if f.Format == "json" {
		return f.Success(view)
	}
	switch outcome {
	case confirm.Deleted:
		return f.Success(fmt.Sprintf("Removed %s", view.Path))
	case confirm.Absent:
		return f.Success(fmt.Sprintf("Nothing to remove at %s", view.Path))
	default:
		return f.Success("Cancelled")
	}
}

// recordRemoval appends the outcome to the ledger when one is configured.
// Failures are logged only.
func recordRemoval(cmd *cobra.Command, cfg *config.Config, now func() time.Time, v removalView) {
	if cfg.Ledger == "" {
		return
	}
	l, err := ledger.Open(cfg.Ledger)
	if err != nil {
		slog.Warn("record removal", "error", err)
		return
	}
	defer l.Close()

	err = l.RecordRemoval(cmd.Context(), ledger.Removal{
		Path:      v.Path,
		Scope:     v.Scope,
		Outcome:   v.Outcome,
		RemovedAt: now(),
	})
	if err != nil {
		slog.Warn("record removal", "error", err)
	}
}
