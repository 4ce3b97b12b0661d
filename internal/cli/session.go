package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/spf13/cobra"

	"github.com/roach88/clqa/internal/cache"
	"github.com/roach88/clqa/internal/compute"
	"github.com/roach88/clqa/internal/config"
	"github.com/roach88/clqa/internal/dat"
	"github.com/roach88/clqa/internal/kind"
	"github.com/roach88/clqa/internal/ledger"
	"github.com/roach88/clqa/internal/params"
	"github.com/roach88/clqa/internal/schema"
	"github.com/roach88/clqa/internal/sim"
	"github.com/roach88/clqa/internal/store"
)

// storeFlags select one result store and a parameter query.
type storeFlags struct {
	SimDir string
	Kind   string
	Params []string
}

func (f *storeFlags) register(cmd *cobra.Command, defaultKind string) {
	cmd.Flags().StringVar(&f.SimDir, "sim", "", "simulation analysis directory (required)")
	_ = cmd.MarkFlagRequired("sim")
	cmd.Flags().StringVar(&f.Kind, "kind", defaultKind, "result kind (ccl|shear)")
	cmd.Flags().StringArrayVarP(&f.Params, "param", "p", nil, "parameter key=value; JSON values, bare strings allowed (repeatable)")
}

func (f *storeFlags) query() (params.Params, error) {
	q, err := params.FromAssignments(f.Params)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --param", err)
	}
	return q, nil
}

// session is everything a command needs to look up or compute results of
// one kind for one simulation.
type session struct {
	cfg    *config.Config
	sim    sim.Simulation
	kind   kind.Kind
	store  *store.Store
	def    *schema.Definition
	gate   *cache.Gate
	ledger *ledger.Ledger
}

func (o *RootOptions) openSession(cmd *cobra.Command, f *storeFlags) (*session, error) {
	cfg, err := o.loadConfig(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	k, err := kind.Lookup(f.Kind)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --kind", err)
	}

	s, err := sim.Load(f.SimDir)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load simulation", err)
	}

	st, err := s.OpenStore(k, store.WithIDGenerator(store.TimestampIDs{Now: o.now}))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}

	sch, err := schema.Load()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load parameter schema", err)
	}
	def, err := sch.Definition(k.Definition)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load parameter schema", err)
	}

	sess := &session{cfg: cfg, sim: s, kind: k, store: st, def: def}

	gateOpts := []cache.GateOption{
		cache.WithSchema(def),
		cache.WithConfirmer(o.confirmer(cmd)),
		cache.WithClock(o.now),
	}
	if o.TokenGenerator != nil {
		gateOpts = append(gateOpts, cache.WithTokenGenerator(o.TokenGenerator))
	}

	comp, err := o.computer(cmd, cfg, k, s)
	if err != nil {
		return nil, err
	}
	if comp != nil {
		gateOpts = append(gateOpts, cache.WithComputer(comp))
	}

	if cfg.Ledger != "" {
		l, err := ledger.Open(cfg.Ledger)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open ledger", err)
		}
		sess.ledger = l
		gateOpts = append(gateOpts, cache.WithRecorder(l))
	}

	sess.gate = cache.NewGate(st, k, gateOpts...)
	return sess, nil
}

// computer builds the worker for k, or returns nil when none is configured.
func (o *RootOptions) computer(cmd *cobra.Command, cfg *config.Config, k kind.Kind, s sim.Simulation) (cache.Computer, error) {
	if o.Computer != nil {
		return o.Computer, nil
	}
	cc, ok := cfg.ComputeFor(k)
	if !ok {
		return nil, nil
	}

	opts := []compute.Option{
		compute.WithEnv(cc.Env...),
		compute.WithOutput(cmd.ErrOrStderr()),
	}
	if cc.ScratchDir != "" {
		opts = append(opts, compute.WithScratchDir(cc.ScratchDir))
	}
	c, err := compute.New(cc.Command, s.Dir, opts...)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("invalid compute.%s command", k.Name), err)
	}
	return c, nil
}

func (s *session) Close() {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Close(); err != nil {
		slog.Error("error closing ledger", "error", err)
	}
}

// find validates query and returns the matching records.
func (s *session) find(query params.Params) ([]store.Record, error) {
	if err := s.def.Validate(query); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid parameters", err)
	}
	recs, err := s.store.Find(query)
	if err != nil {
		return nil, WrapExitError(ExitFailure, "failed to search store", err)
	}
	return recs, nil
}

// recordView is the JSON form of a record.
type recordView struct {
	ID        string          `json:"id"`
	Params    json.RawMessage `json:"params"`
	Artifacts []string        `json:"artifacts"`
}

func newRecordView(rec store.Record) (recordView, error) {
	p, err := params.MarshalCanonical(rec.Params.Without("id"))
	if err != nil {
		return recordView{}, err
	}
	arts, err := rec.Artifacts()
	if err != nil {
		return recordView{}, err
	}
	if arts == nil {
		arts = []string{}
	}
	return recordView{ID: rec.ID, Params: p, Artifacts: arts}, nil
}

// arrayView is the JSON form of an array. Non-finite values are spelled
// as strings since JSON has no NaN.
type arrayView struct {
	Shape []int `json:"shape"`
	Data  []any `json:"data"`
}

func newArrayView(a dat.Array) arrayView {
	shape := a.Shape
	if shape == nil {
		shape = []int{}
	}
	data := make([]any, len(a.Data))
	for i, f := range a.Data {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			data[i] = dat.FormatValue(f)
		} else {
			data[i] = f
		}
	}
	return arrayView{Shape: shape, Data: data}
}

func rawParams(p params.Params) json.RawMessage {
	b, err := params.MarshalCanonical(p)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}
