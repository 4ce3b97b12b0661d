package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/clqa/internal/cache"
	"github.com/roach88/clqa/internal/confirm"
	"github.com/roach88/clqa/internal/kind"
	"github.com/roach88/clqa/internal/params"
	"github.com/roach88/clqa/internal/store"
	"github.com/roach88/clqa/internal/testutil"
)

func decodeData(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func TestInitCommand(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "analysis")

	res := runCLI(t, nil, "init", dir, "/sims/run1")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stdout, "Initialized")
	assert.FileExists(t, filepath.Join(dir, "sim_info.json"))

	res = runCLI(t, nil, "init", dir, "/sims/run1", "--format", "json")
	require.NoError(t, res.Err)
	var v simView
	decodeData(t, res.Stdout, &v)
	require.NotNil(t, v.Created)
	assert.False(t, *v.Created)
	assert.Equal(t, "20200304_050607", v.PreparationTime)

	res = runCLI(t, nil, "init", dir, "/sims/other")
	require.Error(t, res.Err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.Err))
}

func TestSimsCommand(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, runCLI(t, nil, "init", filepath.Join(root, "a"), "/sims/a").Err)
	require.NoError(t, runCLI(t, nil, "init", filepath.Join(root, "b"), "/sims/b").Err)

	res := runCLI(t, nil, "sims", root)
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stdout, "PREPARED")
	assert.Contains(t, res.Stdout, "/sims/a")
	assert.Contains(t, res.Stdout, "/sims/b")

	res = runCLI(t, nil, "sims", root, "--where", "path=/sims/b", "--format", "json")
	require.NoError(t, res.Err)
	var views []simView
	decodeData(t, res.Stdout, &views)
	require.Len(t, views, 1)
	assert.Equal(t, "/sims/b", views[0].Path)

	res = runCLI(t, nil, "sims", root, "--where", "status=crashed")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stdout, "No simulations found")
}

func TestFindCommand_JSONGolden(t *testing.T) {
	s := createTestSim(t)
	seedRecord(t, s, kind.CCL, "20200101_000000", cclParams(128), "cl_dd_d", "shotnoise")
	seedRecord(t, s, kind.CCL, "20200102_000000", cclParams(256), "cl_dd_d")

	res := runCLI(t, nil, "find", "--sim", s.Dir, "-p", "code=namaster", "--format", "json")
	require.NoError(t, res.Err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "find_json", []byte(res.Stdout))
}

func TestFindCommand_Text(t *testing.T) {
	s := createTestSim(t)
	seedRecord(t, s, kind.CCL, "20200101_000000", cclParams(128), "cl_dd_d")
	seedRecord(t, s, kind.CCL, "20200102_000000", cclParams(256), "cl_dd_d")

	res := runCLI(t, nil, "find", "--sim", s.Dir, "-p", "nside=256")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stdout, "20200102_000000")
	assert.NotContains(t, res.Stdout, "20200101_000000")

	res = runCLI(t, nil, "find", "--sim", s.Dir, "-p", "nside=512")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stdout, "No ccl records match")
}

func TestFindCommand_InvalidParams(t *testing.T) {
	s := createTestSim(t)

	tests := []struct {
		name string
		args []string
	}{
		{"unknown key", []string{"-p", "nsdie=128"}},
		{"type conflict", []string{"-p", "nside=big"}},
		{"malformed", []string{"-p", "nside"}},
		{"duplicate", []string{"-p", "nside=1", "-p", "nside=2"}},
		{"unknown kind", []string{"--kind", "cmb"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"find", "--sim", s.Dir}, tt.args...)
			res := runCLI(t, nil, args...)
			require.Error(t, res.Err)
			assert.Equal(t, ExitCommandError, GetExitCode(res.Err))
		})
	}
}

func TestFindCommand_NotAnAnalysisDir(t *testing.T) {
	res := runCLI(t, nil, "find", "--sim", t.TempDir())
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "failed to load simulation")
}

func TestGetCommand_Text(t *testing.T) {
	s := createTestSim(t)
	seedRecord(t, s, kind.CCL, "20200101_000000", cclParams(128), "cl_dd_d")

	res := runCLI(t, nil, "get", "cl_dd_d", "--sim", s.Dir, "-p", "nside=128")
	require.NoError(t, res.Err)
	assert.Equal(t, "1.000000000000000000e+00\n2.000000000000000000e+00\n", res.Stdout)
}

func TestGetCommand_JSON(t *testing.T) {
	s := createTestSim(t)
	seedRecord(t, s, kind.CCL, "20200101_000000", cclParams(128), "cl_dd_d")

	res := runCLI(t, nil, "get", "cl_dd_d", "--sim", s.Dir, "--format", "json")
	require.NoError(t, res.Err)

	var v struct {
		Quantity string    `json:"quantity"`
		Shape    []int     `json:"shape"`
		Data     []float64 `json:"data"`
	}
	decodeData(t, res.Stdout, &v)
	assert.Equal(t, "cl_dd_d", v.Quantity)
	assert.Equal(t, []int{2}, v.Shape)
	assert.Equal(t, []float64{1, 2}, v.Data)
}

func TestGetCommand_Misses(t *testing.T) {
	s := createTestSim(t)
	seedRecord(t, s, kind.CCL, "20200101_000000", cclParams(128), "cl_dd_d")
	seedRecord(t, s, kind.CCL, "20200102_000000", cclParams(256), "cl_dd_d")

	res := runCLI(t, nil, "get", "cl_dd_d", "--sim", s.Dir, "-p", "nside=512")
	require.Error(t, res.Err)
	assert.True(t, cache.IsRecordNotFound(res.Err))
	assert.Equal(t, ExitFailure, GetExitCode(res.Err))

	res = runCLI(t, nil, "get", "cl_mm_t", "--sim", s.Dir, "-p", "nside=128")
	require.Error(t, res.Err)
	assert.True(t, cache.IsArtifactMissing(res.Err))

	res = runCLI(t, nil, "get", "cl_dd_d", "--sim", s.Dir)
	require.Error(t, res.Err)
	assert.True(t, cache.IsAmbiguous(res.Err))

	res = runCLI(t, nil, "get", "mp_k", "--sim", s.Dir)
	require.Error(t, res.Err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.Err))
}

func TestGetCommand_ComputeApproved(t *testing.T) {
	s := createTestSim(t)
	comp := &fakeComputer{}
	opts := &RootOptions{Computer: comp, TokenGenerator: testutil.NewFixedTokenGenerator("run-1")}

	res := runCLI(t, opts, "get", "cl_dd_d", "--sim", s.Dir, "-p", "nside=512", "--compute", "--yes")
	require.NoError(t, res.Err)
	assert.Equal(t, "5.120000000000000000e+02\n1.000000000000000000e+00\n", res.Stdout)
	assert.Equal(t, int32(1), comp.calls.Load())

	st, err := s.OpenStore(kind.CCL)
	require.NoError(t, err)
	rec, err := st.Load("20200304_050607")
	require.NoError(t, err)
	assert.True(t, params.Equal(params.Int(50), rec.Params["nz_h"]), "computed record carries schema defaults")
}

func TestGetCommand_ComputeDeclined(t *testing.T) {
	s := createTestSim(t)
	comp := &fakeComputer{}

	for _, args := range [][]string{
		{"--no-input"},
		{},
	} {
		opts := &RootOptions{Computer: comp}
		if len(args) == 0 {
			opts.Confirmer = confirm.Always(false)
		}
		full := append([]string{"get", "cl_dd_d", "--sim", s.Dir, "-p", "nside=512", "--compute"}, args...)
		res := runCLI(t, opts, full...)
		require.Error(t, res.Err)
		assert.True(t, cache.IsRecordNotFound(res.Err))
	}
	assert.Equal(t, int32(0), comp.calls.Load())
}

func TestGetCommand_ComputeFillsMissingArtifact(t *testing.T) {
	s := createTestSim(t)
	seedRecord(t, s, kind.CCL, "20200101_000000", cclParams(128), "cl_dd_d")
	comp := &fakeComputer{}
	opts := &RootOptions{Computer: comp, TokenGenerator: testutil.NewFixedTokenGenerator(""), Confirmer: confirm.Always(false)}

	res := runCLI(t, opts, "get", "cl_mm_t", "--sim", s.Dir, "-p", "nside=128", "--compute")
	require.NoError(t, res.Err)
	assert.Equal(t, "1.280000000000000000e+02\n1.000000000000000000e+00\n", res.Stdout)

	st, err := s.OpenStore(kind.CCL)
	require.NoError(t, err)
	rec, err := st.Load("20200101_000000")
	require.NoError(t, err)
	assert.True(t, rec.HasArtifact("cl_mm_t"))
}

func TestComputeCommand(t *testing.T) {
	s := createTestSim(t)
	seedRecord(t, s, kind.CCL, "20200101_000000", cclParams(128), "cl_dd_d")
	comp := &fakeComputer{}
	opts := func() *RootOptions {
		return &RootOptions{Computer: comp, Confirmer: confirm.Always(true), TokenGenerator: cache.NewFixedGenerator("run-1", "run-2")}
	}

	res := runCLI(t, opts(), "compute", "--sim", s.Dir, "-p", "nside=128")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stdout, "Record 20200101_000000 already available")
	assert.Equal(t, int32(0), comp.calls.Load())

	res = runCLI(t, opts(), "compute", "--sim", s.Dir, "-p", "nside=128", "shotnoise", "--format", "json")
	require.NoError(t, res.Err)
	var v resolveView
	decodeData(t, res.Stdout, &v)
	assert.Equal(t, "available", v.Status)
	assert.Equal(t, []string{"shotnoise"}, v.Filled)

	res = runCLI(t, opts(), "compute", "--sim", s.Dir, "-p", "nside=256", "cl_dd_d")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stdout, "Computed record 20200304_050607")
	assert.Equal(t, int32(2), comp.calls.Load())
}

func TestComputeCommand_Failures(t *testing.T) {
	s := createTestSim(t)
	seedRecord(t, s, kind.CCL, "20200101_000000", cclParams(128))
	seedRecord(t, s, kind.CCL, "20200102_000000", cclParams(256))

	res := runCLI(t, &RootOptions{Computer: &fakeComputer{}, Confirmer: confirm.Always(true)}, "compute", "--sim", s.Dir)
	require.Error(t, res.Err)
	assert.True(t, cache.IsAmbiguous(res.Err))
	assert.Contains(t, res.Err.Error(), "20200101_000000,20200102_000000")

	res = runCLI(t, &RootOptions{Computer: &fakeComputer{}}, "compute", "--sim", s.Dir, "-p", "nside=512", "--no-input")
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "declined")

	res = runCLI(t, nil, "compute", "--sim", s.Dir, "-p", "nside=512", "--yes")
	require.Error(t, res.Err)
	assert.True(t, cache.IsRecordNotFound(res.Err))
	assert.Contains(t, res.Err.Error(), "no compute.ccl command")

	res = runCLI(t, nil, "compute", "--sim", s.Dir, "-p", "nside=128", "nope")
	require.Error(t, res.Err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.Err))
}

func TestBinsCommand(t *testing.T) {
	s := createTestSim(t)
	seedRecord(t, s, kind.Shear, "20200101_000000", shearParams(0, 0.5), "mp_k")

	res := runCLI(t, nil, "bins", "--sim", s.Dir, "--minz", "0", "--maxz", "1", "--nbins", "2", "--format", "json")
	require.NoError(t, res.Err)
	var views []binView
	decodeData(t, res.Stdout, &views)
	require.Len(t, views, 2)
	assert.Equal(t, "available", views[0].Status)
	assert.Equal(t, "20200101_000000", views[0].Record)
	assert.Equal(t, 0.5, views[1].MinZ)
	assert.Equal(t, "unavailable", views[1].Status)

	comp := &fakeComputer{}
	opts := &RootOptions{Computer: comp, Confirmer: confirm.Always(true), TokenGenerator: cache.NewFixedGenerator("run-1")}
	res = runCLI(t, opts, "bins", "--sim", s.Dir, "--maxz", "1", "--nbins", "2", "--compute", "mp_k")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stdout, "MINZ")
	assert.Equal(t, int32(1), comp.calls.Load(), "only the missing bin is computed")
}

func TestBinsCommand_Invalid(t *testing.T) {
	s := createTestSim(t)

	res := runCLI(t, nil, "bins", "--sim", s.Dir, "--maxz", "1", "--kind", "ccl")
	require.Error(t, res.Err)

	res = runCLI(t, nil, "bins", "--sim", s.Dir, "--maxz", "1", "-p", "minz=0.2")
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "conflicts")

	res = runCLI(t, nil, "bins", "--sim", s.Dir, "--minz", "1", "--maxz", "1")
	require.Error(t, res.Err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.Err))
}

func TestRmCommand_Record(t *testing.T) {
	s := createTestSim(t)
	rec := seedRecord(t, s, kind.CCL, "20200101_000000", cclParams(128), "cl_dd_d")

	res := runCLI(t, &RootOptions{Confirmer: confirm.Always(false)}, "rm", "--sim", s.Dir, "--kind", "ccl", "--record", rec.ID)
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stdout, "Cancelled")
	assert.DirExists(t, rec.Dir)

	res = runCLI(t, &RootOptions{Confirmer: confirm.Always(true)}, "rm", "--sim", s.Dir, "--kind", "ccl", "--record", rec.ID)
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stdout, "Removed")
	assert.NoDirExists(t, rec.Dir)

	res = runCLI(t, &RootOptions{Confirmer: confirm.Always(true)}, "rm", "--sim", s.Dir, "--kind", "ccl", "--record", rec.ID)
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, store.ErrNoRecord)

	res = runCLI(t, &RootOptions{Confirmer: confirm.Always(true)}, "rm", "--sim", s.Dir, "--record", rec.ID)
	require.Error(t, res.Err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.Err))
}

func TestRmCommand_StoreAndSimulation(t *testing.T) {
	s := createTestSim(t)
	seedRecord(t, s, kind.CCL, "20200101_000000", cclParams(128), "cl_dd_d")

	res := runCLI(t, &RootOptions{Confirmer: confirm.Always(true)}, "rm", "--sim", s.Dir, "--kind", "shear", "--format", "json")
	require.NoError(t, res.Err)
	var v removalView
	decodeData(t, res.Stdout, &v)
	assert.Equal(t, "absent", v.Outcome)
	assert.Equal(t, "store", v.Scope)

	res = runCLI(t, &RootOptions{Confirmer: confirm.Always(true)}, "rm", "--sim", s.Dir, "--kind", "ccl")
	require.NoError(t, res.Err)
	assert.NoDirExists(t, s.StoreRoot(kind.CCL))
	assert.DirExists(t, s.Dir)

	res = runCLI(t, &RootOptions{Confirmer: confirm.Always(true)}, "rm", "--sim", s.Dir)
	require.NoError(t, res.Err)
	assert.NoDirExists(t, s.Dir)
}

func TestRmCommand_ConfirmError(t *testing.T) {
	s := createTestSim(t)
	opts := &RootOptions{Confirmer: confirm.NewPrompter(strings.NewReader(""), io.Discard)}

	res := runCLI(t, opts, "rm", "--sim", s.Dir)
	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, confirm.ErrNoAnswer)
	assert.DirExists(t, s.Dir)
}

func TestHistoryCommand(t *testing.T) {
	s := createTestSim(t)
	cfgPath, ledgerPath := writeTestConfig(t)
	comp := &fakeComputer{}

	opts := &RootOptions{Computer: comp, Confirmer: confirm.Always(true), TokenGenerator: cache.NewFixedGenerator("run-1")}
	res := runCLI(t, opts, "--config", cfgPath, "get", "cl_dd_d", "--sim", s.Dir, "-p", "nside=64", "--compute")
	require.NoError(t, res.Err)
	assert.FileExists(t, ledgerPath)

	res = runCLI(t, nil, "--config", cfgPath, "history", "--sim", s.Dir, "--kind", "ccl", "-p", "nside=64", "--format", "json")
	require.NoError(t, res.Err)
	var runs []runView
	decodeData(t, res.Stdout, &runs)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].Token)
	assert.Equal(t, "succeeded", runs[0].Status)
	assert.Equal(t, "create", runs[0].Mode)
	assert.Equal(t, "20200304_050607", runs[0].RecordID)
	assert.Equal(t, []string{"cl_dd_d"}, runs[0].Artifacts)

	res = runCLI(t, nil, "--config", cfgPath, "history", "-p", "nside=128")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stdout, "No computations recorded")

	res = runCLI(t, nil, "history", "--db", ledgerPath, "--status", "failed")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stdout, "No computations recorded")
}

func TestHistoryCommand_Removals(t *testing.T) {
	s := createTestSim(t)
	cfgPath, _ := writeTestConfig(t)

	res := runCLI(t, &RootOptions{Confirmer: confirm.Always(false)}, "--config", cfgPath, "rm", "--sim", s.Dir)
	require.NoError(t, res.Err)

	res = runCLI(t, nil, "--config", cfgPath, "history", "--removals")
	require.NoError(t, res.Err)
	assert.Contains(t, res.Stdout, "simulation")
	assert.Contains(t, res.Stdout, "cancelled")
}

func TestHistoryCommand_Errors(t *testing.T) {
	res := runCLI(t, nil, "history")
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "no ledger")

	db := filepath.Join(t.TempDir(), "h.db")
	res = runCLI(t, nil, "history", "--db", db, "--sim", "/x")
	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "--sim requires --kind")

	res = runCLI(t, nil, "history", "--db", db, "--status", "done")
	require.Error(t, res.Err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.Err))
}

func TestExecute_ReportsJSONError(t *testing.T) {
	s := createTestSim(t)
	seedRecord(t, s, kind.CCL, "20200101_000000", cclParams(128))
	seedRecord(t, s, kind.CCL, "20200102_000000", cclParams(256))
	t.Setenv("CLQA_CONFIG", "")

	opts := &RootOptions{}
	cmd := NewRootCommandWithOptions(opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"get", "cl_dd_d", "--sim", s.Dir, "--format", "json"})

	code := Execute(cmd, opts)
	assert.Equal(t, ExitFailure, code)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out.String()), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "AMBIGUOUS_MATCH", resp.Error.Code)
	assert.NotNil(t, resp.Error.Details)
}
