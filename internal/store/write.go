package store

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/roach88/clqa/internal/dat"
	"github.com/roach88/clqa/internal/params"
)

// maxAllocateAttempts bounds the collision suffixes tried for one proposed id.
const maxAllocateAttempts = 1000

// Allocate reserves a fresh record id by creating its directory. The
// proposed id is used as is when free, otherwise the first free of
// id_1, id_2, ... is taken. Creating the directory is the reservation, so two
// writers never share an id.
func (s *Store) Allocate() (string, error) {
	if err := os.MkdirAll(s.root, dirPerm); err != nil {
		return "", fmt.Errorf("allocate record id: %w", err)
	}

	base := s.ids.NewID()
	if err := validateName(base); err != nil {
		return "", fmt.Errorf("allocate record id: %w", err)
	}

	for n := 0; n < maxAllocateAttempts; n++ {
		id := base
		if n > 0 {
			id = fmt.Sprintf("%s_%d", base, n)
		}

		err := os.Mkdir(s.dir(id), dirPerm)
		if err == nil {
			s.logger.Debug("allocated record", "store", s.root, "record_id", id)
			return id, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("allocate record id: %w", err)
		}
	}
	return "", fmt.Errorf("allocate record id: %d candidates for %s already taken", maxAllocateAttempts, base)
}

// WriteRecord stores artifacts under <root>/<id>/ and then publishes
// INFO.json holding p merged with id. The directory (and the root) are
// created on demand. If any artifact fails, INFO.json is not written and the
// directory stays invisible to List and Find.
//
// Returns ErrRecordExists if the record already has an INFO.json.
func (s *Store) WriteRecord(id string, p params.Params, artifacts map[string]dat.Array) (Record, error) {
	if err := validateName(id); err != nil {
		return Record{}, fmt.Errorf("write record: %w", err)
	}

	info := p.With("id", params.String(id))
	infoJSON, err := params.MarshalIndent(info)
	if err != nil {
		return Record{}, fmt.Errorf("write record %s: %w", id, err)
	}

	dir := s.dir(id)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return Record{}, fmt.Errorf("write record %s: %w", id, err)
	}
	if _, err := os.Lstat(filepath.Join(dir, InfoFile)); err == nil {
		return Record{}, fmt.Errorf("write record %s: %w", id, ErrRecordExists)
	}

	for _, q := range sortedQuantities(artifacts) {
		if err := writeArtifact(dir, q, artifacts[q], true); err != nil {
			return Record{}, fmt.Errorf("write record %s: %w", id, err)
		}
	}

	if err := publish(dir, InfoFile, infoJSON, false); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return Record{}, fmt.Errorf("write record %s: %w", id, ErrRecordExists)
		}
		return Record{}, fmt.Errorf("write record %s: %w", id, err)
	}

	s.logger.Info("wrote record",
		"store", s.root,
		"record_id", id,
		"artifacts", len(artifacts))

	return Record{ID: id, Params: info, Dir: dir}, nil
}

// AddArtifacts stores artifacts that rec does not have yet and returns the
// quantities actually added. Existing artifacts and INFO.json are left
// untouched.
func (s *Store) AddArtifacts(rec Record, artifacts map[string]dat.Array) ([]string, error) {
	if _, err := os.Stat(filepath.Join(rec.Dir, InfoFile)); err != nil {
		return nil, fmt.Errorf("add artifacts to %s: %w", rec.ID, err)
	}

	added := []string{}
	for _, q := range sortedQuantities(artifacts) {
		if rec.HasArtifact(q) {
			continue
		}
		err := writeArtifact(rec.Dir, q, artifacts[q], false)
		if errors.Is(err, fs.ErrExist) {
			// written concurrently; keep the first copy
			continue
		}
		if err != nil {
			return added, fmt.Errorf("add artifacts to %s: %w", rec.ID, err)
		}
		added = append(added, q)
	}

	s.logger.Debug("added artifacts", "store", s.root, "record_id", rec.ID, "added", added)
	return added, nil
}

// Discard removes an allocated directory that never became a record.
// Discarding a published record returns ErrRecordExists; discarding a
// missing directory is a no-op.
func (s *Store) Discard(id string) error {
	if err := validateName(id); err != nil {
		return fmt.Errorf("discard %s: %w", id, err)
	}

	dir := s.dir(id)
	if _, err := os.Lstat(filepath.Join(dir, InfoFile)); err == nil {
		return fmt.Errorf("discard %s: %w", id, ErrRecordExists)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("discard %s: %w", id, err)
	}

	s.logger.Debug("discarded allocation", "store", s.root, "record_id", id)
	return nil
}

func sortedQuantities(artifacts map[string]dat.Array) []string {
	qs := make([]string, 0, len(artifacts))
	for q := range artifacts {
		qs = append(qs, q)
	}
	sort.Strings(qs)
	return qs
}

func writeArtifact(dir, quantity string, a dat.Array, replace bool) error {
	if err := validateName(quantity); err != nil {
		return fmt.Errorf("artifact: %w", err)
	}
	data, err := dat.Marshal(a)
	if err != nil {
		return fmt.Errorf("artifact %s: %w", quantity, err)
	}
	if err := publish(dir, quantity+ArtifactExt, data, replace); err != nil {
		return fmt.Errorf("artifact %s: %w", quantity, err)
	}
	return nil
}

// publish writes data to a temporary file in dir and moves it to name.
// With replace=false an existing name is never clobbered and the error
// wraps fs.ErrExist.
func publish(dir, name string, data []byte, replace bool) error {
	f, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp, filePerm); err != nil {
		return err
	}

	final := filepath.Join(dir, name)
	if replace {
		return os.Rename(tmp, final)
	}
	return os.Link(tmp, final)
}
