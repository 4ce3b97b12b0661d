// Package compute runs the numerical pipeline as an external command.
//
// Each argv element is a text/template rendered against the request:
//
//	{{.SimDir}}      simulation analysis directory
//	{{.OutputDir}}   scratch directory the command writes <quantity>.dat files to
//	{{.ParamsJSON}}  complete parameters as canonical JSON
//	{{.Params}}      parameters as a map
//	{{.Quantities}}  requested quantities
//	{{.Needs}}       optional features, e.g. {{if .Needs.cls}}--cls{{end}}
//	{{.RecordID}}    destination record id
//
// Elements that render to the empty string are dropped, so conditional flags
// do not turn into empty arguments.
package compute

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/roach88/clqa/internal/cache"
	"github.com/roach88/clqa/internal/dat"
	"github.com/roach88/clqa/internal/params"
	"github.com/roach88/clqa/internal/store"
)

const (
	stderrTailBytes = 4096

	// waitDelay bounds how long output pipes held by orphaned children may
	// keep Compute waiting after the command is killed.
	waitDelay = 2 * time.Second
)

var _ cache.Computer = (*Command)(nil)

// Option configures a Command.
type Option func(*Command)

// WithEnv appends KEY=VALUE entries to the inherited environment.
func WithEnv(env ...string) Option {
	return func(c *Command) { c.env = append(c.env, env...) }
}

// WithScratchDir sets the parent of per-run output directories.
// The default is os.TempDir().
func WithScratchDir(dir string) Option {
	return func(c *Command) { c.scratch = dir }
}

// WithOutput streams the command's stdout and stderr to w.
func WithOutput(w io.Writer) Option {
	return func(c *Command) { c.output = w }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Command) { c.logger = l }
}

// Command is a cache.Computer backed by an external program.
type Command struct {
	argv    []*template.Template
	simDir  string
	env     []string
	scratch string
	output  io.Writer
	logger  *slog.Logger
}

// New parses the argv templates. simDir is exposed to them as .SimDir.
func New(argv []string, simDir string, opts ...Option) (*Command, error) {
	if len(argv) == 0 {
		return nil, errors.New("compute command: empty argv")
	}

	c := &Command{simDir: simDir, logger: slog.Default()}
	for i, arg := range argv {
		t, err := template.New(fmt.Sprintf("argv[%d]", i)).Option("missingkey=zero").Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("compute command: %w", err)
		}
		c.argv = append(c.argv, t)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type templateData struct {
	SimDir     string
	OutputDir  string
	ParamsJSON string
	Params     any
	Quantities []string
	Needs      map[string]bool
	RecordID   string
}

// Args renders the argv templates for req with output directory outDir.
func (c *Command) Args(req cache.Request, outDir string) ([]string, error) {
	paramsJSON, err := params.MarshalCanonical(req.Params)
	if err != nil {
		return nil, fmt.Errorf("render command: %w", err)
	}

	needs := map[string]bool{}
	for f, on := range req.Needs {
		needs[f] = on
	}
	data := templateData{
		SimDir:     c.simDir,
		OutputDir:  outDir,
		ParamsJSON: string(paramsJSON),
		Params:     params.ToAny(req.Params),
		Quantities: req.Quantities,
		Needs:      needs,
		RecordID:   req.RecordID,
	}

	args := make([]string, 0, len(c.argv))
	for _, t := range c.argv {
		var buf bytes.Buffer
		if err := t.Execute(&buf, data); err != nil {
			return nil, fmt.Errorf("render command: %w", err)
		}
		if buf.Len() == 0 {
			continue
		}
		args = append(args, buf.String())
	}
	if len(args) == 0 {
		return nil, errors.New("render command: argv renders empty")
	}
	return args, nil
}

// Compute runs the command in a fresh scratch directory and reads back every
// <quantity>.dat file it leaves there.
func (c *Command) Compute(ctx context.Context, req cache.Request) (map[string]dat.Array, error) {
	outDir, err := os.MkdirTemp(c.scratch, "clqa-compute-*")
	if err != nil {
		return nil, fmt.Errorf("compute: %w", err)
	}
	defer os.RemoveAll(outDir)

	args, err := c.Args(req, outDir)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = outDir
	cmd.Env = append(os.Environ(), c.env...)
	cmd.WaitDelay = waitDelay

	tail := &tailBuffer{max: stderrTailBytes}
	cmd.Stdout = io.Discard
	cmd.Stderr = tail
	if c.output != nil {
		out := &lockedWriter{w: c.output}
		cmd.Stdout = out
		cmd.Stderr = io.MultiWriter(tail, out)
	}

	c.logger.Info("running computation", "command", args[0], "record", req.RecordID, "dir", outDir)
	start := time.Now()
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("compute %s: %w", args[0], ctxErr)
		}
		if msg := strings.TrimSpace(tail.String()); msg != "" {
			return nil, fmt.Errorf("compute %s: %w: %s", args[0], err, msg)
		}
		return nil, fmt.Errorf("compute %s: %w", args[0], err)
	}
	c.logger.Debug("computation finished", "command", args[0], "duration", time.Since(start))

	arts, err := collect(outDir)
	if err != nil {
		return nil, fmt.Errorf("compute %s: %w", args[0], err)
	}
	if len(arts) == 0 {
		return nil, fmt.Errorf("compute %s: no *%s files written", args[0], store.ArtifactExt)
	}
	return arts, nil
}

// collect reads the top-level *.dat files of dir keyed by file stem.
func collect(dir string) (map[string]dat.Array, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Type().IsRegular() && filepath.Ext(e.Name()) == store.ArtifactExt && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	arts := make(map[string]dat.Array, len(names))
	for _, name := range names {
		a, err := dat.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		arts[strings.TrimSuffix(name, store.ArtifactExt)] = a
	}
	return arts, nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
