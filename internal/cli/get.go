package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/clqa/internal/cache"
	"github.com/roach88/clqa/internal/dat"
	"github.com/roach88/clqa/internal/kind"
)

// GetOptions holds flags for the get command.
type GetOptions struct {
	*RootOptions
	storeFlags
	Compute bool
}

// getResult is the JSON payload of get.
type getResult struct {
	Quantity string `json:"quantity"`
	arrayView
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &GetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "get <quantity>",
		Short: "Print one quantity of the record matching a query",
		Long: `Print a quantity from the single record matching the --param query,
in numpy savetxt format (or as JSON with --format json).

Without --compute nothing is computed: a miss or a record lacking the
quantity is an error. With --compute a miss is computed after confirmation
and a missing quantity is recomputed into the existing record.

Examples:
  clqa get cl_dd_d --sim /data/qa/run1 -p nside=128
  clqa get mp_k --sim /data/qa/run1 --kind shear -p minz=0.5 -p maxz=1 --compute`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(opts, cmd, args[0])
		},
	}

	opts.storeFlags.register(cmd, kind.CCL.Name)
	cmd.Flags().BoolVar(&opts.Compute, "compute", false, "compute missing results (asks first)")

	return cmd
}

func runGet(opts *GetOptions, cmd *cobra.Command, quantity string) error {
	query, err := opts.query()
	if err != nil {
		return err
	}

	sess, err := opts.openSession(cmd, &opts.storeFlags)
	if err != nil {
		return err
	}
	defer sess.Close()

	if !sess.kind.Produces(quantity) {
		return NewExitError(ExitCommandError, "unknown "+sess.kind.Name+" quantity "+quantity)
	}

	a, err := cache.NewReader(sess.gate).Get(cmd.Context(), quantity, query, opts.Compute)
	if err != nil {
		return wrapLookupError("get failed", err)
	}

	f := opts.formatter(cmd)
	if f.Format == "json" {
		return f.Success(getResult{Quantity: quantity, arrayView: newArrayView(a)})
	}
	if err := dat.Write(cmd.OutOrStdout(), a); err != nil {
		return WrapExitError(ExitFailure, "failed to write output", err)
	}
	return nil
}
