// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// ManifestName is the file name of the run manifest.
const ManifestName = "manifest.json"

// Manifest lists every artifact of one run.
type Manifest struct {
	RunID        string            `json:"run_id"`
	CreatedAt    time.Time         `json:"created_at"`
	Completed    []string          `json:"completed_stages"`
	Failed       map[string]string `json:"failed_stages,omitempty"`
	Fingerprints map[string]string `json:"fingerprints,omitempty"`
	Artifacts    []Entry           `json:"artifacts"`
}

// Artifact returns the entry with the given name.
func (m *Manifest) Artifact(name string) (Entry, bool) {
	for _, e := range m.Artifacts {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// WriteManifest writes manifest.json atomically. Artifacts are sorted by
// name so the file is stable for a given run.
func (s *Store) WriteManifest(ctx context.Context, m *Manifest) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	out := *m
	out.Artifacts = slices.Clone(m.Artifacts)
	slices.SortFunc(out.Artifacts, func(a, b Entry) int {
		return strings.Compare(a.Name, b.Name)
	})
	out.Completed = slices.Clone(m.Completed)
	slices.Sort(out.Completed)

	return s.WriteJSON(ctx, ManifestName, &out)
}

// WriteJSON writes v as indented JSON atomically.
func (s *Store) WriteJSON(ctx context.Context, name string, v any) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return Entry{}, fmt.Errorf("marshal %s: %w", name, err)
	}
	return s.writeAtomic(name, func(w io.Writer) error {
		_, err := w.Write(append(data, '\n'))
		return err
	})
}

// ReadManifest reads manifest.json.
func (s *Store) ReadManifest(ctx context.Context) (*Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.Path(ManifestName)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // fixed file name
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("manifest: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// VerifyManifest checks every artifact listed in m and joins the failures.
func (s *Store) VerifyManifest(ctx context.Context, m *Manifest) error {
	var errs []error
	for _, e := range m.Artifacts {
		if err := s.Verify(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
