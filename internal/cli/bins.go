package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/clqa/internal/cache"
	"github.com/roach88/clqa/internal/kind"
	"github.com/roach88/clqa/internal/params"
)

// BinsOptions holds flags for the bins command.
type BinsOptions struct {
	*RootOptions
	storeFlags
	MinZ    float64
	MaxZ    float64
	NBins   int
	Compute bool
}

// binView is the JSON form of one redshift bin.
type binView struct {
	MinZ       float64  `json:"minz"`
	MaxZ       float64  `json:"maxz"`
	Status     string   `json:"status"`
	Record     string   `json:"record,omitempty"`
	Computed   bool     `json:"computed,omitempty"`
	Candidates []string `json:"candidates,omitempty"`
}

// NewBinsCommand creates the bins command.
func NewBinsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BinsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bins [quantity...]",
		Short: "Resolve shear records for equal-width redshift bins",
		Long: `Split [minz, maxz) into --nbins equal-width redshift bins and resolve the
shear record of each bin, merged with the --param query.

Without --compute bins are only looked up. With --compute every missing
bin is computed after its own confirmation.

Example:
  clqa bins --sim /data/qa/run1 --minz 0 --maxz 1.5 --nbins 3 -p nside=256 --compute mp_k`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBins(opts, cmd, args)
		},
	}

	opts.storeFlags.register(cmd, kind.Shear.Name)
	cmd.Flags().Float64Var(&opts.MinZ, "minz", 0, "lower redshift edge")
	cmd.Flags().Float64Var(&opts.MaxZ, "maxz", 0, "upper redshift edge (required)")
	_ = cmd.MarkFlagRequired("maxz")
	cmd.Flags().IntVar(&opts.NBins, "nbins", 1, "number of bins")
	cmd.Flags().BoolVar(&opts.Compute, "compute", false, "compute missing bins (asks for each)")

	return cmd
}

func runBins(opts *BinsOptions, cmd *cobra.Command, quantities []string) error {
	if opts.Kind != kind.Shear.Name {
		return NewExitError(ExitCommandError, "bins only applies to --kind shear")
	}

	base, err := opts.query()
	if err != nil {
		return err
	}
	for _, key := range []string{"minz", "maxz"} {
		if _, ok := base[key]; ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("--param %s conflicts with the bin edges", key))
		}
	}

	bins, err := kind.RedshiftBins(opts.MinZ, opts.MaxZ, opts.NBins)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid bins", err)
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

	views := make([]binView, 0, len(bins))
	for _, bin := range bins {
		query := base.Clone()
		for k, v := range bin {
			query[k] = v
		}

		var res cache.Resolution
		if opts.Compute {
			res, err = sess.gate.Resolve(cmd.Context(), query, quantities...)
		} else {
			res, err = sess.gate.Lookup(query)
		}
		if err != nil {
			return wrapLookupError("bins failed", err)
		}

		v := binView{Status: res.Status.String(), Record: res.Record.ID, Computed: res.Computed, Candidates: res.CandidateIDs()}
		v.MinZ, v.MaxZ = binEdge(bin, "minz"), binEdge(bin, "maxz")
		views = append(views, v)
	}

	f := opts.formatter(cmd)
	if f.Format == "json" {
		return f.Success(views)
	}
	t := Table{Header: []string{"MINZ", "MAXZ", "STATUS", "RECORD"}}
	for _, v := range views {
		record := v.Record
		if len(v.Candidates) > 0 {
			record = fmt.Sprint(v.Candidates)
		}
		t.Rows = append(t.Rows, []string{
			strconv.FormatFloat(v.MinZ, 'g', -1, 64),
			strconv.FormatFloat(v.MaxZ, 'g', -1, 64),
			v.Status,
			record,
		})
	}
	return f.Success(t)
}

func binEdge(bin params.Params, key string) float64 {
	if f, ok := bin[key].(params.Float); ok {
		return float64(f)
	}
	return 0
}
