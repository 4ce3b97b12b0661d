package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/roach88/clqa/internal/dat"
	"github.com/roach88/clqa/internal/params"
	"github.com/roach88/clqa/internal/store"
)

// Reader loads quantities through a Gate.
type Reader struct {
	gate *Gate
}

// NewReader returns a reader over g.
func NewReader(g *Gate) *Reader {
	return &Reader{gate: g}
}

// Get returns quantity from the single record matching query.
//
// With allowCompute false nothing is computed and nobody is asked: a miss
// is RECORD_NOT_FOUND and a record without the quantity is ARTIFACT_MISSING.
// With allowCompute true a missing record goes through Gate.Resolve, and a
// missing artifact is recomputed in place for the record's exact parameters
// and read once more.
func (r *Reader) Get(ctx context.Context, quantity string, query params.Params, allowCompute bool) (dat.Array, error) {
	g := r.gate
	if !g.kind.Produces(quantity) {
		return dat.Array{}, fmt.Errorf("get %s: %s results have no quantity %q", quantity, g.kind.Name, quantity)
	}

	var (
		res Resolution
		err error
	)
	if allowCompute {
		res, err = g.Resolve(ctx, query, quantity)
	} else {
		res, err = g.Lookup(query)
	}
	if err != nil {
		return dat.Array{}, fmt.Errorf("get %s: %w", quantity, err)
	}

	switch res.Status {
	case StatusAmbiguous:
		return dat.Array{}, &Error{
			Code:       ErrCodeAmbiguousMatch,
			Message:    fmt.Sprintf("%d records match %s", len(res.Candidates), query),
			Store:      g.store.Root(),
			Quantity:   quantity,
			Candidates: res.CandidateIDs(),
		}
	case StatusDeclined, StatusUnavailable:
		return dat.Array{}, &Error{
			Code:     ErrCodeRecordNotFound,
			Message:  fmt.Sprintf("no record matches %s (%s)", query, res.Status),
			Store:    g.store.Root(),
			Quantity: quantity,
		}
	}

	a, err := g.store.ReadArtifact(res.Record, quantity)
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return a, err
	}
	if !allowCompute {
		return dat.Array{}, artifactMissing(g.store.Root(), res.Record, quantity, err)
	}

	g.logger.Info("artifact missing, filling record",
		"store", g.store.Root(), "record_id", res.Record.ID, "quantity", quantity)
	if _, err := g.Fill(ctx, res.Record, quantity); err != nil {
		return dat.Array{}, fmt.Errorf("get %s: %w", quantity, err)
	}

	a, err = g.store.ReadArtifact(res.Record, quantity)
	if errors.Is(err, fs.ErrNotExist) {
		return dat.Array{}, artifactMissing(g.store.Root(), res.Record, quantity, err)
	}
	return a, err
}

func artifactMissing(root string, rec store.Record, quantity string, cause error) *Error {
	return &Error{
		Code:     ErrCodeArtifactMissing,
		Message:  fmt.Sprintf("%s has not been computed", quantity),
		Store:    root,
		Quantity: quantity,
		RecordID: rec.ID,
		Err:      cause,
	}
}
