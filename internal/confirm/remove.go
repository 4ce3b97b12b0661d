package confirm

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
)

// Outcome is the result of a guarded deletion.
type Outcome int

const (
	// Absent means there was nothing to delete; nobody was asked.
	Absent Outcome = iota
	// Cancelled means the confirmation was declined; nothing changed.
	Cancelled
	// Deleted means the tree was removed.
	Deleted
)

func (o Outcome) String() string {
	switch o {
	case Absent:
		return "absent"
	case Cancelled:
		return "cancelled"
	case Deleted:
		return "deleted"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// RemoveOption configures RemoveTree and RemoveStore.
type RemoveOption func(*removeConfig)

type removeConfig struct {
	logger *slog.Logger
}

// WithLogger sets the logger removals are reported to. Defaults to
// slog.Default().
func WithLogger(l *slog.Logger) RemoveOption {
	return func(rc *removeConfig) { rc.logger = l }
}

// RemoveTree deletes path recursively once c approves prompt.
// A missing path is Absent without asking. A declined or failed
// confirmation leaves the tree untouched.
func RemoveTree(ctx context.Context, path, prompt string, c Confirmer, opts ...RemoveOption) (Outcome, error) {
	rc := removeConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&rc)
	}

	if _, err := os.Lstat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Absent, nil
		}
		return Cancelled, fmt.Errorf("remove %s: %w", path, err)
	}

	ok, err := c.Confirm(ctx, prompt)
	if err != nil {
		return Cancelled, fmt.Errorf("remove %s: %w", path, err)
	}
	if !ok {
		rc.logger.Info("removal cancelled", "path", path)
		return Cancelled, nil
	}

	if err := os.RemoveAll(path); err != nil {
		return Cancelled, fmt.Errorf("remove %s: %w", path, err)
	}
	rc.logger.Info("removed", "path", path)
	return Deleted, nil
}

// RemoveStore deletes a whole result store after confirmation.
func RemoveStore(ctx context.Context, root string, c Confirmer, opts ...RemoveOption) (Outcome, error) {
	return RemoveTree(ctx, root, fmt.Sprintf("Remove all cached results in %s?", root), c, opts...)
}
