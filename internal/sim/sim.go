// Package sim locates simulation analysis directories.
//
// An analysis directory anchors the result stores of one simulation:
//
//	<analysis>/sim_info.json   simulation metadata; "path" points at the simulation output
//	<analysis>/ccl_data/       CCL result store
//	<analysis>/shear_data/     shear result store
package sim

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/clqa/internal/confirm"
	"github.com/roach88/clqa/internal/kind"
	"github.com/roach88/clqa/internal/params"
	"github.com/roach88/clqa/internal/store"
)

// InfoFile marks a directory as a simulation analysis directory.
const InfoFile = "sim_info.json"

var (
	// ErrNotAnalysisDir is returned for an existing directory without InfoFile.
	ErrNotAnalysisDir = errors.New("directory exists but has no " + InfoFile)

	// ErrDifferentSimulation is returned when initializing an analysis
	// directory that already belongs to another simulation.
	ErrDifferentSimulation = errors.New("analysis directory belongs to a different simulation")
)

// Simulation is one analysis directory and its metadata.
type Simulation struct {
	// Dir is the analysis directory.
	Dir string

	// Info is the content of sim_info.json.
	Info params.Params
}

// Path returns the simulation output location.
func (s Simulation) Path() string {
	p, _ := s.Info.Str("path")
	return p
}

// PreparationTime returns the preparation timestamp as stored.
func (s Simulation) PreparationTime() string {
	switch v := s.Info["preparation_time"].(type) {
	case params.String:
		return string(v)
	case params.Int:
		return strconv.FormatInt(int64(v), 10)
	}
	return ""
}

// StoreRoot returns the root of the result store for k.
func (s Simulation) StoreRoot(k kind.Kind) string {
	return filepath.Join(s.Dir, k.Dir)
}

// OpenStore opens the result store for k.
func (s Simulation) OpenStore(k kind.Kind, opts ...store.Option) (*store.Store, error) {
	return store.Open(s.StoreRoot(k), opts...)
}

// Load reads the analysis directory dir.
func Load(dir string) (Simulation, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Simulation{}, fmt.Errorf("load simulation: %w", err)
	}

	data, err := os.ReadFile(filepath.Join(abs, InfoFile))
	if err != nil {
		return Simulation{}, fmt.Errorf("load simulation %s: %w", abs, err)
	}
	info, err := params.Parse(data)
	if err != nil {
		return Simulation{}, fmt.Errorf("load simulation %s: %w", abs, err)
	}
	if _, ok := info.Str("path"); !ok {
		return Simulation{}, fmt.Errorf("load simulation %s: %s has no \"path\"", abs, InfoFile)
	}

	return Simulation{Dir: abs, Info: info}, nil
}

// Init creates the analysis directory dir for the simulation at simPath.
// An existing analysis directory for the same simulation is returned as is
// with created=false.
func Init(dir, simPath string, now time.Time) (sim Simulation, created bool, err error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Simulation{}, false, fmt.Errorf("init simulation: %w", err)
	}

	if _, err := os.Stat(abs); err == nil {
		existing, err := Load(abs)
		if errors.Is(err, fs.ErrNotExist) {
			return Simulation{}, false, fmt.Errorf("init simulation %s: %w", abs, ErrNotAnalysisDir)
		}
		if err != nil {
			return Simulation{}, false, err
		}
		if filepath.Clean(existing.Path()) != filepath.Clean(simPath) {
			return Simulation{}, false, fmt.Errorf("init simulation %s: %w (has %s)", abs, ErrDifferentSimulation, existing.Path())
		}
		return existing, false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Simulation{}, false, fmt.Errorf("init simulation %s: %w", abs, err)
	}

	info := params.Params{
		"version":          params.Null{},
		"factor":           params.Int(1),
		"template":         params.Null{},
		"status":           params.String("done"),
		"nodes":            params.Null{},
		"path":             params.String(simPath),
		"preparation_time": params.String(now.Format(store.IDLayout)),
		"commit":           params.Null{},
	}
	data, err := params.MarshalIndent(info)
	if err != nil {
		return Simulation{}, false, fmt.Errorf("init simulation %s: %w", abs, err)
	}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return Simulation{}, false, fmt.Errorf("init simulation %s: %w", abs, err)
	}
	if err := os.WriteFile(filepath.Join(abs, InfoFile), data, 0o644); err != nil {
		return Simulation{}, false, fmt.Errorf("init simulation %s: %w", abs, err)
	}

	slog.Info("initialized simulation analysis", "dir", abs, "sim_path", simPath)
	return Simulation{Dir: abs, Info: info}, true, nil
}

// Filter keeps simulations whose sim_info.json value for every key is one
// of the allowed values. A simulation without the key is excluded.
type Filter map[string][]params.Value

// Match reports whether s passes f.
func (f Filter) Match(s Simulation) bool {
	for key, allowed := range f {
		v, ok := s.Info[key]
		if !ok {
			return false
		}
		found := false
		for _, a := range allowed {
			if params.Equal(v, a) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Discover walks root for analysis directories passing filter, ordered by
// preparation time. Unreadable sim_info.json files are skipped.
func Discover(root string, filter Filter) ([]Simulation, error) {
	sims := []Simulation{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() != InfoFile {
			return nil
		}

		s, err := Load(filepath.Dir(path))
		if err != nil {
			slog.Debug("skipping simulation", "path", path, "error", err)
			return nil
		}
		if filter.Match(s) {
			sims = append(sims, s)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discover simulations in %s: %w", root, err)
	}

	sort.SliceStable(sims, func(i, j int) bool {
		a, b := preparationKey(sims[i]), preparationKey(sims[j])
		if a != b {
			return a < b
		}
		return sims[i].Dir < sims[j].Dir
	})
	return sims, nil
}

// preparationKey orders "20200101_120000" and 20200101120000 alike.
func preparationKey(s Simulation) int64 {
	n, err := strconv.ParseInt(strings.ReplaceAll(s.PreparationTime(), "_", ""), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// Remove deletes the whole analysis directory once c approves.
// Directories without sim_info.json are refused.
func (s Simulation) Remove(ctx context.Context, c confirm.Confirmer) (confirm.Outcome, error) {
	if _, err := os.Stat(filepath.Join(s.Dir, InfoFile)); err != nil {
		return confirm.Cancelled, fmt.Errorf("remove simulation %s: %w", s.Dir, ErrNotAnalysisDir)
	}
	return confirm.RemoveTree(ctx, s.Dir, fmt.Sprintf("Remove full simulation analysis from %s?", s.Dir), c)
}
