package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/clqa/internal/cache"
	"github.com/roach88/clqa/internal/config"
	"github.com/roach88/clqa/internal/dat"
	"github.com/roach88/clqa/internal/kind"
	"github.com/roach88/clqa/internal/params"
	"github.com/roach88/clqa/internal/sim"
	"github.com/roach88/clqa/internal/store"
)

var testNow = time.Date(2020, 3, 4, 5, 6, 7, 0, time.UTC)

// cliResult is the outcome of one command invocation.
type cliResult struct {
	Stdout string
	Stderr string
	Err    error
}

// runCLI executes the root command with args. opts may carry test hooks;
// the clock is pinned to testNow unless opts sets one.
func runCLI(t *testing.T, opts *RootOptions, args ...string) cliResult {
	t.Helper()
	t.Setenv(config.EnvVar, "")

	if opts == nil {
		opts = &RootOptions{}
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return testNow }
	}

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommandWithOptions(opts)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())

	err := cmd.Execute()
	return cliResult{Stdout: out.String(), Stderr: errOut.String(), Err: err}
}

// createTestSim initializes an analysis directory under a temp dir.
func createTestSim(t *testing.T) sim.Simulation {
	t.Helper()
	s, _, err := sim.Init(filepath.Join(t.TempDir(), "analysis"), "/sims/run1", testNow)
	require.NoError(t, err)
	return s
}

// seedRecord writes a record with the given artifacts into the store of k.
func seedRecord(t *testing.T, s sim.Simulation, k kind.Kind, id string, p params.Params, quantities ...string) store.Record {
	t.Helper()
	st, err := s.OpenStore(k)
	require.NoError(t, err)

	arts := map[string]dat.Array{}
	for i, q := range quantities {
		arts[q] = dat.Vector(float64(i+1), float64(i+2))
	}
	rec, err := st.WriteRecord(id, p, arts)
	require.NoError(t, err)
	return rec
}

func cclParams(nside int64) params.Params {
	return params.Params{
		"code":         params.String("namaster"),
		"downsampling": params.Float(1),
		"max_files":    params.Null{},
		"nside":        params.Int(nside),
		"source":       params.Int(1),
		"zbins":        params.List{params.Int(0), params.Float(0.15), params.Int(1)},
	}
}

func shearParams(minz, maxz float64) params.Params {
	return params.Params{
		"source": params.Int(1),
		"nside":  params.Int(512),
		"minz":   params.Float(minz),
		"maxz":   params.Float(maxz),
	}
}

// fakeComputer produces every requested quantity as [nside, 1].
type fakeComputer struct {
	calls atomic.Int32
}

func (f *fakeComputer) Compute(_ context.Context, req cache.Request) (map[string]dat.Array, error) {
	f.calls.Add(1)
	nside := 0.0
	if n, ok := req.Params["nside"].(params.Int); ok {
		nside = float64(n)
	}
	arts := map[string]dat.Array{}
	for _, q := range req.Quantities {
		arts[q] = dat.Vector(nside, 1)
	}
	return arts, nil
}

// writeTestConfig writes a config file with a ledger next to it.
func writeTestConfig(t *testing.T) (cfgPath, ledgerPath string) {
	t.Helper()
	dir := t.TempDir()
	cfgPath = filepath.Join(dir, "clqa.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("log_level: warn\nledger: history.db\n"), 0o644))
	return cfgPath, filepath.Join(dir, "history.db")
}
