package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/clqa/internal/cache"
	"github.com/roach88/clqa/internal/kind"
	"github.com/roach88/clqa/internal/params"
	"github.com/roach88/clqa/internal/store"
)

// ComputeOptions holds flags for the compute command.
type ComputeOptions struct {
	*RootOptions
	storeFlags
}

// resolveView is the JSON form of a resolved query.
type resolveView struct {
	Status   string          `json:"status"`
	Query    json.RawMessage `json:"query"`
	Record   string          `json:"record,omitempty"`
	Computed bool            `json:"computed,omitempty"`
	Filled   []string        `json:"filled,omitempty"`
}

// NewComputeCommand creates the compute command.
func NewComputeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ComputeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compute [quantity...]",
		Short: "Ensure a record exists for a parameter query",
		Long: `Resolve the --param query: reuse the single matching record, or, after
confirmation, compute a new record with the query completed by the
parameter defaults. Several matches are reported and nothing is computed.

Quantities select optional features of the computation (e.g. shear Cls or
convergence). Quantities missing from an existing record are computed into
it.

Examples:
  clqa compute --sim /data/qa/run1 -p nside=256
  clqa compute --sim /data/qa/run1 --kind shear -p minz=0.5 -p maxz=1 mp_k cld_kk --yes`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompute(opts, cmd, args)
		},
	}

	opts.storeFlags.register(cmd, kind.CCL.Name)

	return cmd
}

func runCompute(opts *ComputeOptions, cmd *cobra.Command, quantities []string) error {
	query, err := opts.query()
	if err != nil {
		return err
	}

	sess, err := opts.openSession(cmd, &opts.storeFlags)
	if err != nil {
		return err
	}
	defer sess.Close()

	for _, q := range quantities {
		if !sess.kind.Produces(q) {
			return NewExitError(ExitCommandError, fmt.Sprintf("unknown %s quantity %s", sess.kind.Name, q))
		}
	}

	view, err := resolve(cmd, sess, query, quantities)
	if err != nil {
		return err
	}

	f := opts.formatter(cmd)
	if f.Format == "json" {
		return f.Success(view)
	}
	switch {
	case view.Computed:
		return f.Success(fmt.Sprintf("Computed record %s", view.Record))
	case len(view.Filled) > 0:
		return f.Success(fmt.Sprintf("Record %s: computed %s", view.Record, strings.Join(view.Filled, ",")))
	default:
		return f.Success(fmt.Sprintf("Record %s already available", view.Record))
	}
}

// resolve runs the gate for query and fills requested quantities the
// resolved record lacks. Every outcome other than an available record is
// returned as an error.
func resolve(cmd *cobra.Command, sess *session, query params.Params, quantities []string) (resolveView, error) {
	res, err := sess.gate.Resolve(cmd.Context(), query, quantities...)
	if err != nil {
		return resolveView{}, wrapLookupError("compute failed", err)
	}

	view := resolveView{Status: res.Status.String(), Query: rawParams(query)}
	switch res.Status {
	case cache.StatusAvailable:
	case cache.StatusAmbiguous:
		return view, WrapExitError(ExitFailure, "compute failed", &cache.Error{
			Code:       cache.ErrCodeAmbiguousMatch,
			Message:    fmt.Sprintf("%d records match %s", len(res.Candidates), query),
			Store:      sess.store.Root(),
			Candidates: res.CandidateIDs(),
		})
	case cache.StatusDeclined:
		return view, NewExitError(ExitFailure, "computation declined")
	default:
		msg := fmt.Sprintf("no record matches %s", query)
		if _, hasID := query["id"]; !hasID {
			msg += fmt.Sprintf(" and no compute.%s command is configured", sess.kind.Name)
		}
		return view, WrapExitError(ExitFailure, "compute failed", &cache.Error{
			Code:    cache.ErrCodeRecordNotFound,
			Message: msg,
			Store:   sess.store.Root(),
		})
	}

	view.Record = res.Record.ID
	view.Computed = res.Computed

	missing := missingArtifacts(res.Record, quantities)
	if len(missing) == 0 {
		return view, nil
	}
	filled, err := sess.gate.Fill(cmd.Context(), res.Record, missing...)
	if err != nil {
		return view, WrapExitError(ExitFailure, "compute failed", err)
	}
	view.Filled = filled
	return view, nil
}

func missingArtifacts(rec store.Record, quantities []string) []string {
	var missing []string
	for _, q := range quantities {
		if !rec.HasArtifact(q) {
			missing = append(missing, q)
		}
	}
	return missing
}
