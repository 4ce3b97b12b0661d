package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/clqa/internal/sim"
)

// simView is the JSON form of a simulation analysis directory.
type simView struct {
	Dir             string          `json:"dir"`
	Path            string          `json:"path"`
	PreparationTime string          `json:"preparation_time"`
	Info            json.RawMessage `json:"info"`
	Created         *bool           `json:"created,omitempty"`
}

func newSimView(s sim.Simulation) simView {
	return simView{
		Dir:             s.Dir,
		Path:            s.Path(),
		PreparationTime: s.PreparationTime(),
		Info:            rawParams(s.Info),
	}
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init <analysis-dir> <sim-path>",
		Short: "Create an analysis directory for a simulation",
		Long: `Create an analysis directory holding sim_info.json for the simulation
output at <sim-path>. Result stores are created inside it on demand.

Running init again for the same simulation is a no-op. An existing
directory without sim_info.json, or one for another simulation, is refused.

Example:
  clqa init /data/qa/run1 /sims/run1`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(rootOpts, cmd, args[0], args[1])
		},
	}
}

func runInit(opts *RootOptions, cmd *cobra.Command, dir, simPath string) error {
	if _, err := opts.loadConfig(cmd.ErrOrStderr()); err != nil {
		return err
	}

	s, created, err := sim.Init(dir, simPath, opts.now())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize simulation", err)
	}

	f := opts.formatter(cmd)
	if f.Format == "json" {
		v := newSimView(s)
		v.Created = &created
		return f.Success(v)
	}
	if created {
		return f.Success(fmt.Sprintf("Initialized %s for %s", s.Dir, s.Path()))
	}
	return f.Success(fmt.Sprintf("%s already initialized for %s", s.Dir, s.Path()))
}
