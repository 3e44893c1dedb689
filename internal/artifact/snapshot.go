// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package artifact

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"
)

const snapshotExt = ".gob.gz"

// SnapshotMeta describes a stored snapshot.
type SnapshotMeta struct {
	// Name is the snapshot name, e.g. "features".
	Name string `json:"name"`

	// Version increases by one with every save of the same name.
	Version int `json:"version"`

	// Fingerprint identifies the inputs the snapshot was built from.
	Fingerprint string `json:"fingerprint"`

	// Checksum is the SHA-256 of the uncompressed gob payload.
	Checksum string `json:"checksum"`

	// SizeBytes is the compressed payload size.
	SizeBytes int64 `json:"size_bytes"`

	SavedAt time.Time `json:"saved_at"`
}

// snapshotFile is the on-disk format.
type snapshotFile struct {
	Meta           SnapshotMeta
	CompressedData []byte
}

// SnapshotStore keeps versioned, checksummed gob snapshots of in-memory
// values so a stage can reuse its output when its inputs are unchanged.
type SnapshotStore struct {
	dir      string
	mu       sync.RWMutex
	versions map[string]int
}

// NewSnapshotStore opens (or creates) a snapshot directory and scans it for
// existing versions.
func NewSnapshotStore(dir string) (*SnapshotStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil { //nolint:gosec // 0750 is acceptable for snapshots
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	s := &SnapshotStore{
		dir:      dir,
		versions: make(map[string]int),
	}
	if err := s.scan(); err != nil {
		return nil, fmt.Errorf("scan snapshots: %w", err)
	}
	return s, nil
}

func (s *SnapshotStore) scan() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name, version, ok := parseSnapshotFilename(entry.Name())
		if !ok {
			continue
		}
		if version > s.versions[name] {
			s.versions[name] = version
		}
	}
	return nil
}

// parseSnapshotFilename splits "features_v3.gob.gz" into ("features", 3).
func parseSnapshotFilename(file string) (string, int, bool) {
	base, ok := strings.CutSuffix(file, snapshotExt)
	if !ok {
		return "", 0, false
	}
	idx := strings.LastIndex(base, "_v")
	if idx <= 0 {
		return "", 0, false
	}
	version, err := strconv.Atoi(base[idx+2:])
	if err != nil || version <= 0 {
		return "", 0, false
	}
	return base[:idx], version, true
}

func (s *SnapshotStore) path(name string, version int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_v%d%s", name, version, snapshotExt))
}

// Save encodes data as the next version of name.
func (s *SnapshotStore) Save(ctx context.Context, name, fingerprint string, data any) (SnapshotMeta, error) {
	if err := checkName(name); err != nil {
		return SnapshotMeta{}, err
	}
	if err := ctx.Err(); err != nil {
		return SnapshotMeta{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(data); err != nil {
		return SnapshotMeta{}, fmt.Errorf("encode snapshot: %w", err)
	}
	hash := sha256.Sum256(raw.Bytes())

	var compressed bytes.Buffer
	gzw := gzip.NewWriter(&compressed)
	if _, err := gzw.Write(raw.Bytes()); err != nil {
		return SnapshotMeta{}, fmt.Errorf("compress snapshot: %w", err)
	}
	if err := gzw.Close(); err != nil {
		return SnapshotMeta{}, fmt.Errorf("finalize compression: %w", err)
	}

	meta := SnapshotMeta{
		Name:        name,
		Version:     s.versions[name] + 1,
		Fingerprint: fingerprint,
		Checksum:    hex.EncodeToString(hash[:]),
		SizeBytes:   int64(compressed.Len()),
		SavedAt:     time.Now().UTC(),
	}

	tmp, err := os.CreateTemp(s.dir, ".snapshot-*")
	if err != nil {
		return SnapshotMeta{}, fmt.Errorf("create snapshot file: %w", err)
	}
	encErr := gob.NewEncoder(tmp).Encode(snapshotFile{Meta: meta, CompressedData: compressed.Bytes()})
	closeErr := tmp.Close()
	if err := errors.Join(encErr, closeErr); err != nil {
		_ = os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup
		return SnapshotMeta{}, fmt.Errorf("write snapshot file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(name, meta.Version)); err != nil {
		_ = os.Remove(tmp.Name()) //nolint:errcheck // best-effort cleanup
		return SnapshotMeta{}, fmt.Errorf("rename snapshot file: %w", err)
	}

	s.versions[name] = meta.Version
	return meta, nil
}

// Load decodes a snapshot into target. Version 0 loads the latest.
func (s *SnapshotStore) Load(ctx context.Context, name string, version int, target any) (*SnapshotMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if version == 0 {
		var ok bool
		version, ok = s.versions[name]
		if !ok {
			return nil, fmt.Errorf("snapshot %s: %w", name, ErrNotFound)
		}
	}

	f, err := os.Open(s.path(name, version))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("snapshot %s v%d: %w", name, version, ErrNotFound)
		}
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only file

	var sf snapshotFile
	if err := gob.NewDecoder(f).Decode(&sf); err != nil {
		return nil, fmt.Errorf("read snapshot file: %w", err)
	}

	gzr, err := gzip.NewReader(bytes.NewReader(sf.CompressedData))
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	defer func() { _ = gzr.Close() }() //nolint:errcheck // in-memory reader

	raw, err := io.ReadAll(gzr)
	if err != nil {
		return nil, fmt.Errorf("read decompressed data: %w", err)
	}

	hash := sha256.Sum256(raw)
	if got := hex.EncodeToString(hash[:]); got != sf.Meta.Checksum {
		return nil, fmt.Errorf("snapshot %s v%d: %w: expected %s, got %s", name, version, ErrChecksumMismatch, sf.Meta.Checksum, got)
	}

	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(target); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &sf.Meta, nil
}

// LatestVersion returns the newest version of name.
func (s *SnapshotStore) LatestVersion(name string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[name]
	return v, ok
}

// Prune removes all but the newest keep versions of name.
func (s *SnapshotStore) Prune(ctx context.Context, name string, keep int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	keep = max(keep, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read snapshot directory: %w", err)
	}
	var versions []int
	for _, entry := range entries {
		n, v, ok := parseSnapshotFilename(entry.Name())
		if ok && n == name {
			versions = append(versions, v)
		}
	}
	if len(versions) <= keep {
		return 0, nil
	}
	slices.Sort(versions)

	removed := 0
	for _, v := range versions[:len(versions)-keep] {
		if err := os.Remove(s.path(name, v)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove snapshot %s v%d: %w", name, v, err)
		}
		removed++
	}
	return removed, nil
}
