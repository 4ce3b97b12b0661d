package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/clqa/internal/cache"
	"github.com/roach88/clqa/internal/params"
	"github.com/roach88/clqa/internal/querysql"
)

// Ledger satisfies the gate's history sink.
var _ cache.Recorder = (*Ledger)(nil)

// RunRecord is one row of the runs table.
type RunRecord struct {
	cache.Run

	// ParamsHash is params.Hash of Run.Params.
	ParamsHash string

	// Result is the end state. Status is RunRunning until Finish.
	Result cache.RunResult
}

// Begin inserts a running row for run.
func (l *Ledger) Begin(ctx context.Context, run cache.Run) error {
	paramsJSON, err := params.MarshalCanonical(run.Params)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	hash, err := params.Hash(run.Params)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	quantities, err := marshalStrings(run.Quantities)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO runs
		(run_token, kind, store_root, record_id, mode, params, params_hash, quantities, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.Token,
		run.Kind,
		run.Store,
		run.RecordID,
		string(run.Mode),
		string(paramsJSON),
		hash,
		quantities,
		string(cache.RunRunning),
		run.StartedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", run.Token, err)
	}
	return nil
}

// Finish records the end state of a running run.
func (l *Ledger) Finish(ctx context.Context, token string, res cache.RunResult) error {
	artifacts, err := marshalStrings(res.Artifacts)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	result, err := l.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, artifacts = ?, error = ?, finished_at = ?
		WHERE run_token = ? AND status = ?
	`,
		string(res.Status),
		artifacts,
		res.Error,
		res.FinishedAt.UnixNano(),
		token,
		string(cache.RunRunning),
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", token, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: rows affected: %w", token, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: no running run with that token", token)
	}
	return nil
}

// Runs returns the runs matching f ordered by start time, then token.
// Returns an empty slice (not nil) if nothing matches.
func (l *Ledger) Runs(ctx context.Context, f Filter) ([]RunRecord, error) {
	stmt, args, err := querysql.NewSQLCompiler().Compile(f.query())
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

func scanRun(rows *sql.Rows) (RunRecord, error) {
	var (
		r                                               RunRecord
		mode, paramsJSON, quantities, status, artifacts string
		started                                         int64
		finished                                        sql.NullInt64
	)
	err := rows.Scan(
		&r.Token, &r.Kind, &r.Store, &r.RecordID, &mode, &paramsJSON, &r.ParamsHash, &quantities,
		&status, &artifacts, &r.Result.Error, &started, &finished,
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("scan run: %w", err)
	}

	r.Mode = cache.RunMode(mode)
	r.Result.Status = cache.RunStatus(status)
	r.StartedAt = time.Unix(0, started).UTC()
	if finished.Valid {
		r.Result.FinishedAt = time.Unix(0, finished.Int64).UTC()
	}

	if r.Params, err = params.Parse([]byte(paramsJSON)); err != nil {
		return RunRecord{}, fmt.Errorf("scan run %s params: %w", r.Token, err)
	}
	if r.Quantities, err = unmarshalStrings(quantities); err != nil {
		return RunRecord{}, fmt.Errorf("scan run %s quantities: %w", r.Token, err)
	}
	if r.Result.Artifacts, err = unmarshalStrings(artifacts); err != nil {
		return RunRecord{}, fmt.Errorf("scan run %s artifacts: %w", r.Token, err)
	}
	return r, nil
}

func marshalStrings(xs []string) (string, error) {
	if xs == nil {
		xs = []string{}
	}
	b, err := json.Marshal(xs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalStrings(s string) ([]string, error) {
	xs := []string{}
	if err := json.Unmarshal([]byte(s), &xs); err != nil {
		return nil, err
	}
	return xs, nil
}
