// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package artifact

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry describes one written artifact.
type Entry struct {
	// Name is the file name relative to the artifact directory.
	Name string `json:"name"`

	// Stage is the pipeline stage that produced the artifact.
	Stage string `json:"stage,omitempty"`

	// Rows is the number of data rows, excluding the header.
	Rows int `json:"rows"`

	// SizeBytes is the file size.
	SizeBytes int64 `json:"size_bytes"`

	// Checksum is the hex SHA-256 of the file content.
	Checksum string `json:"checksum"`

	// WrittenAt is when the rename completed.
	WrittenAt time.Time `json:"written_at"`
}

// Store writes and reads artifacts in a single directory.
type Store struct {
	dir string
}

// NewStore creates the artifact directory if needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("artifact directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for artifacts
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the artifact directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the absolute location of an artifact.
func (s *Store) Path(name string) (string, error) {
	if err := checkName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

// WriteTable writes t as CSV. The file is only visible under its final
// name once it has been fully written and synced.
func (s *Store) WriteTable(ctx context.Context, t *Table) (Entry, error) {
	if err := t.Err(); err != nil {
		return Entry{}, err
	}
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	entry, err := s.writeAtomic(t.Name, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(t.Header); err != nil {
			return err
		}
		if err := cw.WriteAll(t.Rows); err != nil {
			return err
		}
		return cw.Error()
	})
	if err != nil {
		return Entry{}, err
	}
	entry.Rows = t.Len()
	return entry, nil
}

// ReadTable reads a CSV artifact back.
func (s *Store) ReadTable(ctx context.Context, name string) (*Table, error) {
	path, err := s.Path(name)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path) //nolint:gosec // name is validated by checkName
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("artifact %s: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only file

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read artifact %s: %w", name, err)
	}
	t := &Table{Name: name}
	if len(records) > 0 {
		t.Header = records[0]
		t.Rows = records[1:]
	}
	return t, nil
}

// Verify recomputes the checksum of an artifact and compares it with the
// entry.
func (s *Store) Verify(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.Path(e.Name)
	if err != nil {
		return err
	}
	sum, _, err := checksumFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("artifact %s: %w", e.Name, ErrNotFound)
		}
		return err
	}
	if sum != e.Checksum {
		return fmt.Errorf("artifact %s: %w: expected %s, got %s", e.Name, ErrChecksumMismatch, e.Checksum, sum)
	}
	return nil
}

// Remove deletes an artifact. A missing artifact is not an error.
func (s *Store) Remove(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove artifact %s: %w", name, err)
	}
	return nil
}

// writeAtomic streams content into a temporary file in the artifact
// directory, syncs it and renames it over name.
func (s *Store) writeAtomic(name string, write func(io.Writer) error) (Entry, error) {
	final, err := s.Path(name)
	if err != nil {
		return Entry{}, err
	}

	tmp, err := os.CreateTemp(s.dir, "."+name+".tmp-*")
	if err != nil {
		return Entry{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()        //nolint:errcheck // already failing
			_ = os.Remove(tmpName) //nolint:errcheck // best-effort cleanup
		}
	}()

	hash := sha256.New()
	counter := &countingWriter{}
	if err := write(io.MultiWriter(tmp, hash, counter)); err != nil {
		return Entry{}, fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Sync(); err != nil {
		return Entry{}, fmt.Errorf("sync %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return Entry{}, fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		return Entry{}, fmt.Errorf("rename %s: %w", name, err)
	}
	committed = true

	return Entry{
		Name:      name,
		SizeBytes: counter.n,
		Checksum:  hex.EncodeToString(hash.Sum(nil)),
		WrittenAt: time.Now().UTC(),
	}, nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func checksumFile(path string) (string, int64, error) {
	f, err := os.Open(path) //nolint:gosec // path is built from a validated name
	if err != nil {
		return "", 0, err
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only file

	hash := sha256.New()
	n, err := io.Copy(hash, f)
	if err != nil {
		return "", 0, fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(hash.Sum(nil)), n, nil
}

type countingWriter struct {
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}
