package cache

import (
	"context"
	"time"

	"github.com/roach88/clqa/internal/dat"
	"github.com/roach88/clqa/internal/kind"
	"github.com/roach88/clqa/internal/params"
)

// Request describes one computation.
type Request struct {
	// Params is the complete parameter record, without "id".
	Params params.Params

	// Quantities are the quantities the caller is after. A computation may
	// produce more.
	Quantities []string

	// Needs lists the optional features required for Quantities.
	Needs kind.Needs

	// RecordID is the record the results are destined for.
	RecordID string
}

// Computer runs the numerical pipeline for a request and returns its
// artifacts keyed by quantity.
type Computer interface {
	Compute(ctx context.Context, req Request) (map[string]dat.Array, error)
}

// ComputeFunc adapts a function to Computer.
type ComputeFunc func(ctx context.Context, req Request) (map[string]dat.Array, error)

// Compute implements Computer.
func (f ComputeFunc) Compute(ctx context.Context, req Request) (map[string]dat.Array, error) {
	return f(ctx, req)
}

// RunMode distinguishes computations that create a record from those that
// fill artifacts into an existing one.
type RunMode string

const (
	ModeCreate RunMode = "create"
	ModeFill   RunMode = "fill"
)

// RunStatus is the state of a computation run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is the ledger view of a computation at start.
type Run struct {
	Token      string
	Kind       string
	Store      string
	RecordID   string
	Mode       RunMode
	Params     params.Params
	Quantities []string
	StartedAt  time.Time
}

// RunResult is the ledger view of a computation at end.
type RunResult struct {
	Status     RunStatus
	Artifacts  []string
	Error      string
	FinishedAt time.Time
}

// Recorder keeps a history of computations.
type Recorder interface {
	Begin(ctx context.Context, run Run) error
	Finish(ctx context.Context, token string, res RunResult) error
}
