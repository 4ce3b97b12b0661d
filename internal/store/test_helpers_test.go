package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/clqa/internal/dat"
	"github.com/roach88/clqa/internal/params"
)

// createTestStore creates a store under a fresh temp dir. The root itself
// does not exist yet.
func createTestStore(t *testing.T, ids ...string) *Store {
	t.Helper()
	root := filepath.Join(t.TempDir(), "ccl_data")
	s, err := Open(root, WithIDGenerator(NewFixedIDs(ids...)))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	return s
}

// writeTestRecord allocates an id and writes a record with a single artifact.
func writeTestRecord(t *testing.T, s *Store, p params.Params) Record {
	t.Helper()
	id, err := s.Allocate()
	if err != nil {
		t.Fatalf("Allocate() failed: %v", err)
	}
	rec, err := s.WriteRecord(id, p, map[string]dat.Array{"cl_dd_d": dat.Vector(1, 2, 3)})
	if err != nil {
		t.Fatalf("WriteRecord() failed: %v", err)
	}
	return rec
}

func cclParams(nside int64) params.Params {
	return params.Params{
		"source":       params.Int(1),
		"nside":        params.Int(nside),
		"max_files":    params.Null{},
		"downsampling": params.Float(1),
		"zbins":        params.List{params.Int(0), params.Float(0.15), params.Int(1)},
		"code":         params.String("namaster"),
	}
}
