package cli

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/clqa/internal/cache"
	"github.com/roach88/clqa/internal/kind"
	"github.com/roach88/clqa/internal/ledger"
	"github.com/roach88/clqa/internal/sim"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	SimDir   string
	Kind     string
	Record   string
	Status   string
	Params   []string
	Removals bool
}

// runView is the JSON form of a ledger run.
type runView struct {
	Token      string          `json:"run_token"`
	Kind       string          `json:"kind"`
	Store      string          `json:"store"`
	RecordID   string          `json:"record_id"`
	Mode       string          `json:"mode"`
	Status     string          `json:"status"`
	Params     json.RawMessage `json:"params"`
	Quantities []string        `json:"quantities"`
	Artifacts  []string        `json:"artifacts"`
	Error      string          `json:"error,omitempty"`
	StartedAt  string          `json:"started_at"`
	FinishedAt string          `json:"finished_at,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the computation and removal history",
		Long: `List computations recorded in the ledger, oldest first. The ledger is the
SQLite database named by "ledger" in the config file, or --db.

Examples:
  clqa history --sim /data/qa/run1 --kind ccl -p nside=128
  clqa history --status failed --format json
  clqa history --removals`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the ledger database (default from config)")
	cmd.Flags().StringVar(&opts.SimDir, "sim", "", "only runs of this analysis directory; requires --kind")
	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only runs of this kind (ccl|shear)")
	cmd.Flags().StringVar(&opts.Record, "record", "", "only runs for this record id")
	cmd.Flags().StringVar(&opts.Status, "status", "", "only runs with this status (running|succeeded|failed)")
	cmd.Flags().StringArrayVarP(&opts.Params, "param", "p", nil, "parameter key=value the run must match (repeatable)")
	cmd.Flags().BoolVar(&opts.Removals, "removals", false, "list removals instead of computations")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	cfg, err := opts.loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	path := opts.Database
	if path == "" {
		path = cfg.Ledger
	}
	if path == "" {
		return NewExitError(ExitCommandError, "no ledger: set \"ledger\" in the config file or pass --db")
	}

	filter, err := opts.filter()
	if err != nil {
		return err
	}

	l, err := ledger.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open ledger", err)
	}
	defer l.Close()

	f := opts.formatter(cmd)
	if opts.Removals {
		return outputRemovals(cmd, f, l)
	}

	runs, err := l.Runs(cmd.Context(), filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query ledger", err)
	}

	if f.Format == "json" {
		views := make([]runView, len(runs))
		for i, r := range runs {
			views[i] = newRunView(r)
		}
		return f.Success(views)
	}

	if len(runs) == 0 {
		return f.Success("No computations recorded")
	}
	t := Table{Header: []string{"STARTED", "RUN", "KIND", "RECORD", "MODE", "STATUS", "DURATION"}}
	for _, r := range runs {
		duration := "-"
		if !r.Result.FinishedAt.IsZero() {
			duration = r.Result.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		t.Rows = append(t.Rows, []string{
			r.StartedAt.Format(time.RFC3339),
			r.Token,
			r.Kind,
			r.RecordID,
			string(r.Mode),
			string(r.Result.Status),
			duration,
		})
	}
	return f.Success(t)
}

func (o *HistoryOptions) filter() (ledger.Filter, error) {
	q, err := (&storeFlags{Params: o.Params}).query()
	if err != nil {
		return ledger.Filter{}, err
	}
	filter := ledger.Filter{Kind: o.Kind, RecordID: o.Record, Status: cache.RunStatus(o.Status), Params: q}

	if o.Kind != "" {
		k, err := kind.Lookup(o.Kind)
		if err != nil {
			return ledger.Filter{}, WrapExitError(ExitCommandError, "invalid --kind", err)
		}
		if o.SimDir != "" {
			s, err := sim.Load(o.SimDir)
			if err != nil {
				return ledger.Filter{}, WrapExitError(ExitCommandError, "failed to load simulation", err)
			}
			filter.Store = s.StoreRoot(k)
		}
	} else if o.SimDir != "" {
		return ledger.Filter{}, NewExitError(ExitCommandError, "--sim requires --kind")
	}

	switch cache.RunStatus(o.Status) {
	case "", cache.RunRunning, cache.RunSucceeded, cache.RunFailed:
	default:
		return ledger.Filter{}, NewExitError(ExitCommandError, "invalid --status "+o.Status)
	}
	return filter, nil
}

func newRunView(r ledger.RunRecord) runView {
	v := runView{
		Token:      r.Token,
		Kind:       r.Kind,
		Store:      r.Store,
		RecordID:   r.RecordID,
		Mode:       string(r.Mode),
		Status:     string(r.Result.Status),
		Params:     rawParams(r.Params),
		Quantities: r.Quantities,
		Artifacts:  r.Result.Artifacts,
		Error:      r.Result.Error,
		StartedAt:  r.StartedAt.Format(time.RFC3339Nano),
	}
	if !r.Result.FinishedAt.IsZero() {
		v.FinishedAt = r.Result.FinishedAt.Format(time.RFC3339Nano)
	}
	return v
}

func outputRemovals(cmd *cobra.Command, f *OutputFormatter, l *ledger.Ledger) error {
	removals, err := l.Removals(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query ledger", err)
	}

	if f.Format == "json" {
		views := make([]map[string]any, len(removals))
		for i, r := range removals {
			views[i] = map[string]any{
				"path":       r.Path,
				"scope":      r.Scope,
				"outcome":    r.Outcome,
				"removed_at": r.RemovedAt.Format(time.RFC3339Nano),
			}
		}
		return f.Success(views)
	}

	if len(removals) == 0 {
		return f.Success("No removals recorded")
	}
	t := Table{Header: []string{"WHEN", "SCOPE", "OUTCOME", "PATH"}}
	for _, r := range removals {
		t.Rows = append(t.Rows, []string{r.RemovedAt.Format(time.RFC3339), r.Scope, r.Outcome, r.Path})
	}
	return f.Success(t)
}
