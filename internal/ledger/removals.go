package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/clqa/internal/queryir"
	"github.com/roach88/clqa/internal/querysql"
)

// Removal is one guarded deletion.
type Removal struct {
	ID        int64
	Path      string
	Scope     string // "record", "store" or "simulation"
	Outcome   string
	RemovedAt time.Time
}

// RecordRemoval appends a removal row.
func (l *Ledger) RecordRemoval(ctx context.Context, r Removal) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO removals (path, scope, outcome, removed_at)
		VALUES (?, ?, ?, ?)
	`, r.Path, r.Scope, r.Outcome, r.RemovedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("record removal of %s: %w", r.Path, err)
	}
	return nil
}

// Removals returns every removal in the order they happened.
func (l *Ledger) Removals(ctx context.Context) ([]Removal, error) {
	stmt, args, err := querysql.NewSQLCompiler().Compile(queryir.Select{
		From:    "removals",
		Columns: []string{"id", "path", "scope", "outcome", "removed_at"},
		OrderBy: []queryir.Order{{Column: "removed_at"}, {Column: "id"}},
	})
	if err != nil {
		return nil, fmt.Errorf("query removals: %w", err)
	}

	rows, err := l.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query removals: %w", err)
	}
	defer rows.Close()

	removals := []Removal{}
	for rows.Next() {
		var (
			r  Removal
			at int64
		)
		if err := rows.Scan(&r.ID, &r.Path, &r.Scope, &r.Outcome, &at); err != nil {
			return nil, fmt.Errorf("scan removal: %w", err)
		}
		r.RemovedAt = time.Unix(0, at).UTC()
		removals = append(removals, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate removals: %w", err)
	}
	return removals, nil
}
