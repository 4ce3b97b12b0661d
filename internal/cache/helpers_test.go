package cache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/roach88/clqa/internal/confirm"
	"github.com/roach88/clqa/internal/dat"
	"github.com/roach88/clqa/internal/kind"
	"github.com/roach88/clqa/internal/params"
	"github.com/roach88/clqa/internal/schema"
	"github.com/roach88/clqa/internal/store"
	"github.com/roach88/clqa/internal/testutil"
)

// fakeComputer records requests and produces a fixed set of quantities.
type fakeComputer struct {
	mu       sync.Mutex
	produce  []string
	err      error
	requests []Request
}

func (c *fakeComputer) Compute(_ context.Context, req Request) (map[string]dat.Array, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)
	if c.err != nil {
		return nil, c.err
	}
	out := map[string]dat.Array{}
	for i, q := range c.produce {
		out[q] = dat.Vector(float64(i), float64(len(c.requests)))
	}
	return out, nil
}

func (c *fakeComputer) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

// countingConfirmer answers with a fixed policy and counts questions.
type countingConfirmer struct {
	answer bool
	err    error
	asked  []string
}

func (c *countingConfirmer) Confirm(_ context.Context, prompt string) (bool, error) {
	c.asked = append(c.asked, prompt)
	return c.answer, c.err
}

// memRecorder keeps runs in memory.
type memRecorder struct {
	runs    []Run
	results map[string]RunResult
	err     error
}

func (r *memRecorder) Begin(_ context.Context, run Run) error {
	if r.err != nil {
		return r.err
	}
	r.runs = append(r.runs, run)
	return nil
}

func (r *memRecorder) Finish(_ context.Context, token string, res RunResult) error {
	if r.err != nil {
		return r.err
	}
	if r.results == nil {
		r.results = map[string]RunResult{}
	}
	r.results[token] = res
	return nil
}

var errBoom = errors.New("boom")

type gateFixture struct {
	store    *store.Store
	gate     *Gate
	computer *fakeComputer
	confirm  *countingConfirmer
	recorder *memRecorder
}

// createTestGate wires a CCL gate over a fresh store.
func createTestGate(t *testing.T, approve bool, opts ...GateOption) *gateFixture {
	t.Helper()
	return createKindGate(t, kind.CCL, approve, []string{"cl_dd_d", "cl_mm_t", "shotnoise"}, opts...)
}

func createKindGate(t *testing.T, k kind.Kind, approve bool, produce []string, opts ...GateOption) *gateFixture {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), k.Dir),
		store.WithIDGenerator(store.NewFixedIDs("20200101_000000", "20200102_000000", "20200103_000000")))
	if err != nil {
		t.Fatalf("store.Open() failed: %v", err)
	}

	def, err := schema.MustLoad().Definition(k.Definition)
	if err != nil {
		t.Fatalf("Definition() failed: %v", err)
	}

	f := &gateFixture{
		store:    st,
		computer: &fakeComputer{produce: produce},
		confirm:  &countingConfirmer{answer: approve},
		recorder: &memRecorder{},
	}
	clock := testutil.NewStepClock(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC), time.Second)
	all := append([]GateOption{
		WithSchema(def),
		WithComputer(f.computer),
		WithConfirmer(f.confirm),
		WithRecorder(f.recorder),
		WithTokenGenerator(NewFixedGenerator("run-1", "run-2", "run-3")),
		WithClock(clock.Now),
	}, opts...)
	f.gate = NewGate(st, k, all...)
	return f
}

// seed writes a record directly through the store.
func (f *gateFixture) seed(t *testing.T, p params.Params, artifacts map[string]dat.Array) store.Record {
	t.Helper()
	id, err := f.store.Allocate()
	if err != nil {
		t.Fatalf("Allocate() failed: %v", err)
	}
	rec, err := f.store.WriteRecord(id, p, artifacts)
	if err != nil {
		t.Fatalf("WriteRecord() failed: %v", err)
	}
	return rec
}

var _ confirm.Confirmer = (*countingConfirmer)(nil)
