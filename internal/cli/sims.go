package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/clqa/internal/params"
	"github.com/roach88/clqa/internal/sim"
)

// SimsOptions holds flags for the sims command.
type SimsOptions struct {
	*RootOptions
	Where []string
}

// NewSimsCommand creates the sims command.
func NewSimsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sims <root>",
		Short: "List simulation analysis directories",
		Long: `Walk <root> for analysis directories (those holding sim_info.json),
ordered by preparation time.

--where keeps simulations whose sim_info.json value for the key is one of
the given values; repeat it with the same key to allow several values.

Examples:
  clqa sims /data/qa
  clqa sims /data/qa --where status=done --where status=crashed`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSims(opts, cmd, args[0])
		},
	}

	cmd.Flags().StringArrayVar(&opts.Where, "where", nil, "key=value filter on sim_info.json (repeatable)")

	return cmd
}

func runSims(opts *SimsOptions, cmd *cobra.Command, root string) error {
	if _, err := opts.loadConfig(cmd.ErrOrStderr()); err != nil {
		return err
	}

	filter := sim.Filter{}
	for _, w := range opts.Where {
		key, value, err := params.ParseAssignment(w)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --where", err)
		}
		filter[key] = append(filter[key], value)
	}

	sims, err := sim.Discover(root, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list simulations", err)
	}

	f := opts.formatter(cmd)
	if f.Format == "json" {
		views := make([]simView, len(sims))
		for i, s := range sims {
			views[i] = newSimView(s)
		}
		return f.Success(views)
	}

	if len(sims) == 0 {
		return f.Success(fmt.Sprintf("No simulations found in %s", root))
	}
	t := Table{Header: []string{"PREPARED", "STATUS", "DIR", "PATH"}}
	for _, s := range sims {
		status, _ := s.Info.Str("status")
		t.Rows = append(t.Rows, []string{s.PreparationTime(), status, s.Dir, s.Path()})
	}
	return f.Success(t)
}
