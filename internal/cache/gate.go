package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/clqa/internal/confirm"
	"github.com/roach88/clqa/internal/dat"
	"github.com/roach88/clqa/internal/kind"
	"github.com/roach88/clqa/internal/params"
	"github.com/roach88/clqa/internal/schema"
	"github.com/roach88/clqa/internal/store"
)

// Status is the outcome of resolving a query.
type Status int

const (
	StatusAvailable Status = iota
	StatusDeclined
	StatusAmbiguous
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusAvailable:
		return "available"
	case StatusDeclined:
		return "declined"
	case StatusAmbiguous:
		return "ambiguous"
	case StatusUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Resolution is the result of Gate.Resolve.
type Resolution struct {
	Status Status

	// Record is set for StatusAvailable.
	Record store.Record

	// Candidates holds every match for StatusAmbiguous, in store order.
	Candidates []store.Record

	// Computed is true when Record was created by this resolution.
	Computed bool
}

// CandidateIDs returns the ids of the ambiguous candidates.
func (r Resolution) CandidateIDs() []string {
	ids := make([]string, len(r.Candidates))
	for i, c := range r.Candidates {
		ids[i] = c.ID
	}
	return ids
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithComputer sets the computation run on a miss. Without one, misses are
// StatusUnavailable.
func WithComputer(c Computer) GateOption {
	return func(g *Gate) { g.computer = c }
}

// WithConfirmer sets who approves computing a missing record. The default
// declines.
func WithConfirmer(c confirm.Confirmer) GateOption {
	return func(g *Gate) { g.confirmer = c }
}

// WithSchema sets the parameter definition used to validate queries and
// complete them before computing.
func WithSchema(d *schema.Definition) GateOption {
	return func(g *Gate) { g.schema = d }
}

// WithRecorder sets the computation history sink.
func WithRecorder(r Recorder) GateOption {
	return func(g *Gate) { g.recorder = r }
}

// WithTokenGenerator sets the run token source.
func WithTokenGenerator(t TokenGenerator) GateOption {
	return func(g *Gate) { g.tokens = t }
}

// WithClock sets the wall clock used for run timestamps.
func WithClock(now func() time.Time) GateOption {
	return func(g *Gate) { g.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) GateOption {
	return func(g *Gate) { g.logger = l }
}

// Gate decides between reusing, computing and refusing to choose.
type Gate struct {
	store     *store.Store
	kind      kind.Kind
	schema    *schema.Definition
	computer  Computer
	confirmer confirm.Confirmer
	recorder  Recorder
	tokens    TokenGenerator
	now       func() time.Time
	logger    *slog.Logger
}

// NewGate returns a gate over st for results of kind k.
func NewGate(st *store.Store, k kind.Kind, opts ...GateOption) *Gate {
	g := &Gate{
		store:     st,
		kind:      k,
		confirmer: confirm.Always(false),
		tokens:    UUIDv7Generator{},
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Store returns the gate's store.
func (g *Gate) Store() *store.Store {
	return g.store
}

// Kind returns the gate's result kind.
func (g *Gate) Kind() kind.Kind {
	return g.kind
}

// Lookup classifies the records matching query without computing anything.
// A miss is reported as StatusUnavailable.
func (g *Gate) Lookup(query params.Params) (Resolution, error) {
	if g.schema != nil {
		if err := g.schema.Validate(query); err != nil {
			return Resolution{}, err
		}
	}

	recs, err := g.store.Find(query)
	if err != nil {
		return Resolution{}, err
	}

	switch len(recs) {
	case 0:
		return Resolution{Status: StatusUnavailable}, nil
	case 1:
		return Resolution{Status: StatusAvailable, Record: recs[0]}, nil
	default:
		return Resolution{Status: StatusAmbiguous, Candidates: recs}, nil
	}
}

// Resolve returns the record holding results for query. On a miss it asks
// the confirmer, and if approved computes the full parameter set, writes a
// new record and resolves query again. quantities are passed to the
// computer so it can enable the features they need.
func (g *Gate) Resolve(ctx context.Context, query params.Params, quantities ...string) (Resolution, error) {
	res, err := g.Lookup(query)
	if err != nil || res.Status != StatusUnavailable {
		return res, err
	}

	if _, hasID := query["id"]; hasID || g.computer == nil {
		return res, nil
	}

	prompt := fmt.Sprintf("No %s results match %s in %s. Compute them now?", g.kind.Name, query, g.store.Root())
	ok, err := g.confirmer.Confirm(ctx, prompt)
	if err != nil {
		return Resolution{}, fmt.Errorf("confirm computation: %w", err)
	}
	if !ok {
		g.logger.Info("computation declined", "store", g.store.Root(), "query", query.String())
		return Resolution{Status: StatusDeclined}, nil
	}

	if _, err := g.create(ctx, query, quantities); err != nil {
		return Resolution{}, err
	}

	res, err = g.Lookup(query)
	if err != nil {
		return Resolution{}, err
	}
	if res.Status == StatusUnavailable {
		return Resolution{}, fmt.Errorf("resolve %s: computed record does not match the query", query)
	}
	res.Computed = res.Status == StatusAvailable
	return res, nil
}

// create computes a new record for query.
func (g *Gate) create(ctx context.Context, query params.Params, quantities []string) (store.Record, error) {
	full := query.Clone()
	if g.schema != nil {
		completed, err := g.schema.Complete(query)
		if err != nil {
			return store.Record{}, err
		}
		full = completed
	}
	full = full.Without("id")

	id, err := g.store.Allocate()
	if err != nil {
		return store.Record{}, err
	}

	var rec store.Record
	err = g.run(ctx, ModeCreate, id, full, quantities, func(arts map[string]dat.Array) ([]string, error) {
		var werr error
		rec, werr = g.store.WriteRecord(id, full, arts)
		return sortedKeys(arts), werr
	})
	if err != nil {
		if derr := g.store.Discard(id); derr != nil {
			g.logger.Warn("discard failed allocation", "store", g.store.Root(), "record_id", id, "error", derr)
		}
		return store.Record{}, err
	}
	return rec, nil
}

// Fill recomputes rec's exact parameters and adds the artifacts it lacks,
// keeping its id and INFO.json. Returns the quantities added.
func (g *Gate) Fill(ctx context.Context, rec store.Record, quantities ...string) ([]string, error) {
	if g.computer == nil {
		return nil, fmt.Errorf("fill record %s: no computer configured for %s", rec.ID, g.kind.Name)
	}

	var added []string
	err := g.run(ctx, ModeFill, rec.ID, rec.Params.Without("id"), quantities, func(arts map[string]dat.Array) ([]string, error) {
		var aerr error
		added, aerr = g.store.AddArtifacts(rec, arts)
		return added, aerr
	})
	return added, err
}

// run executes one computation and stores its output with persist,
// notifying the recorder around it.
func (g *Gate) run(ctx context.Context, mode RunMode, id string, full params.Params, quantities []string,
	persist func(map[string]dat.Array) ([]string, error)) error {

	token := g.tokens.Generate()
	logger := g.logger.With("run_token", token, "store", g.store.Root(), "record_id", id)

	req := Request{
		Params:     full,
		Quantities: quantities,
		Needs:      g.kind.Needs(quantities...),
		RecordID:   id,
	}
	start := g.now()
	g.begin(ctx, logger, Run{
		Token:      token,
		Kind:       g.kind.Name,
		Store:      g.store.Root(),
		RecordID:   id,
		Mode:       mode,
		Params:     full,
		Quantities: quantities,
		StartedAt:  start,
	})
	logger.Info("computing", "mode", mode, "params", full.String(), "quantities", quantities, "needs", req.Needs.Features())

	arts, err := g.computer.Compute(ctx, req)
	if err == nil {
		if missing := missingQuantities(arts, quantities); len(missing) > 0 {
			logger.Warn("computation did not produce every requested quantity", "missing", missing)
		}
		var stored []string
		stored, err = persist(arts)
		if err == nil {
			g.finish(ctx, logger, token, RunResult{Status: RunSucceeded, Artifacts: stored, FinishedAt: g.now()})
			logger.Info("computed", "mode", mode, "artifacts", len(stored), "duration", g.now().Sub(start))
			return nil
		}
	}

	g.finish(ctx, logger, token, RunResult{Status: RunFailed, Error: err.Error(), FinishedAt: g.now()})
	logger.Error("computation failed", "mode", mode, "error", err)
	return fmt.Errorf("compute %s record %s: %w", g.kind.Name, id, err)
}

func (g *Gate) begin(ctx context.Context, logger *slog.Logger, run Run) {
	if g.recorder == nil {
		return
	}
	if err := g.recorder.Begin(ctx, run); err != nil {
		logger.Warn("record run start", "error", err)
	}
}

func (g *Gate) finish(ctx context.Context, logger *slog.Logger, token string, res RunResult) {
	if g.recorder == nil {
		return
	}
	if err := g.recorder.Finish(ctx, token, res); err != nil {
		logger.Warn("record run end", "error", err)
	}
}

func missingQuantities(arts map[string]dat.Array, quantities []string) []string {
	var missing []string
	for _, q := range quantities {
		if _, ok := arts[q]; !ok {
			missing = append(missing, q)
		}
	}
	return missing
}

func sortedKeys(arts map[string]dat.Array) []string {
	keys := make([]string, 0, len(arts))
	for k := range arts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
