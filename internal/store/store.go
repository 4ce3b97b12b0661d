package store

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/roach88/clqa/internal/dat"
	"github.com/roach88/clqa/internal/params"
)

const (
	// InfoFile holds a record's parameters.
	InfoFile = "INFO.json"

	// ArtifactExt is the extension of artifact files.
	ArtifactExt = ".dat"

	dirPerm  = 0o755
	filePerm = 0o644
)

var (
	// ErrRecordExists is returned when writing over a published INFO.json.
	ErrRecordExists = errors.New("record already exists")

	// ErrNoRecord is returned by Load for an id with no well-formed record.
	// It wraps fs.ErrNotExist.
	ErrNoRecord = fmt.Errorf("no such record: %w", fs.ErrNotExist)
)

// Record is one published result set.
type Record struct {
	// ID is the record directory name.
	ID string

	// Params is the parameter record from INFO.json, always carrying "id".
	Params params.Params

	// Dir is the absolute record directory.
	Dir string
}

// ArtifactPath returns where quantity is stored for this record.
func (r Record) ArtifactPath(quantity string) string {
	return filepath.Join(r.Dir, quantity+ArtifactExt)
}

// HasArtifact reports whether quantity has been stored for this record.
func (r Record) HasArtifact(quantity string) bool {
	fi, err := os.Stat(r.ArtifactPath(quantity))
	return err == nil && fi.Mode().IsRegular()
}

// Artifacts returns the names of the stored quantities, sorted.
func (r Record) Artifacts() ([]string, error) {
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		return nil, fmt.Errorf("list artifacts of %s: %w", r.ID, err)
	}

	names := []string{}
	for _, e := range entries {
		name := e.Name()
		if !e.Type().IsRegular() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ArtifactExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(name, ArtifactExt))
	}
	sort.Strings(names)
	return names, nil
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator sets the id source used by Allocate.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store is a directory of records. The root need not exist until the first
// write.
type Store struct {
	root   string
	ids    IDGenerator
	logger *slog.Logger
}

// Open returns the store rooted at root. It does not touch the filesystem.
func Open(root string, opts ...Option) (*Store, error) {
	if root == "" {
		return nil, errors.New("open store: empty root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	s := &Store{
		root:   abs,
		ids:    TimestampIDs{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the absolute store root.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) dir(id string) string {
	return filepath.Join(s.root, id)
}

// List returns every well-formed record ordered by directory name.
// A missing root yields an empty list.
func (s *Store) List() ([]Record, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, fs.ErrNotExist) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}

	// os.ReadDir sorts by filename
	records := []Record{}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if rec, ok := s.load(e.Name()); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// Find returns the records whose parameters contain every query key with an
// equal value, in List order. An empty query matches every record.
func (s *Store) Find(query params.Params) ([]Record, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}

	matched := []Record{}
	for _, rec := range all {
		if rec.Params.Matches(query) {
			matched = append(matched, rec)
		}
	}

	s.logger.Debug("find",
		"store", s.root,
		"query", query.String(),
		"scanned", len(all),
		"matched", len(matched))

	return matched, nil
}

// Load returns the record with the given id.
func (s *Store) Load(id string) (Record, error) {
	if err := validateName(id); err != nil {
		return Record{}, fmt.Errorf("load record: %w", err)
	}
	rec, ok := s.load(id)
	if !ok {
		return Record{}, fmt.Errorf("load record %s: %w", id, ErrNoRecord)
	}
	return rec, nil
}

// load reads <root>/<id>/INFO.json. ok is false when the directory is not a
// well-formed record: INFO.json absent, unreadable, or not a JSON object.
// The directory name is the record id; an "id" in INFO.json naming another
// directory is replaced.
func (s *Store) load(id string) (Record, bool) {
	dir := s.dir(id)
	infoPath := filepath.Join(dir, InfoFile)

	data, err := os.ReadFile(infoPath)
	if err != nil {
		s.logger.Debug("skipping directory without readable record", "store", s.root, "record_id", id, "error", err)
		return Record{}, false
	}

	p, err := params.Parse(data)
	if err != nil {
		s.logger.Debug("skipping malformed record", "store", s.root, "record_id", id, "error", err)
		return Record{}, false
	}
	if got, ok := p["id"]; ok && !params.Equal(got, params.String(id)) {
		s.logger.Debug("record id differs from its directory", "store", s.root, "record_id", id, "info_id", got)
	}
	p["id"] = params.String(id)

	return Record{ID: id, Params: p, Dir: dir}, true
}

// ReadArtifact parses quantity from rec. A missing artifact yields an error
// wrapping fs.ErrNotExist.
func (s *Store) ReadArtifact(rec Record, quantity string) (dat.Array, error) {
	if err := validateName(quantity); err != nil {
		return dat.Array{}, fmt.Errorf("read artifact: %w", err)
	}
	a, err := dat.ReadFile(rec.ArtifactPath(quantity))
	if err != nil {
		return dat.Array{}, fmt.Errorf("read %s of record %s: %w", quantity, rec.ID, err)
	}
	return a, nil
}

// validateName rejects ids and quantities that would escape their directory.
func validateName(name string) error {
	switch {
	case name == "":
		return errors.New("empty name")
	case name == "." || name == "..":
		return fmt.Errorf("invalid name %q", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("invalid name %q: contains a path separator", name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("invalid name %q: hidden", name)
	}
	return nil
}
