// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package artifact

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/roastery/internal/logging"
)

// Key prefixes.
const (
	prefixStage = "stage:"
	prefixRun   = "run:"
	keyLatest   = "latest"
)

// LedgerConfig configures the stage ledger.
type LedgerConfig struct {
	// Path is the BadgerDB directory.
	Path string `koanf:"path"`

	// SyncWrites forces an fsync after every write.
	SyncWrites bool `koanf:"sync_writes"`

	// InMemory keeps the ledger in memory only. Path is ignored.
	InMemory bool `koanf:"in_memory"`

	// RunTTL expires run records after the given duration. Zero keeps them.
	RunTTL time.Duration `koanf:"run_ttl"`
}

// StageRecord is what the ledger remembers about the last successful
// execution of a stage.
type StageRecord struct {
	Stage       string    `json:"stage"`
	Fingerprint string    `json:"fingerprint"`
	RunID       string    `json:"run_id"`
	Artifacts   []Entry   `json:"artifacts,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}

// RunRecord summarizes one pipeline run.
type RunRecord struct {
	RunID      string             `json:"run_id"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Status     string             `json:"status"`
	Completed  []string           `json:"completed_stages"`
	Failed     map[string]string  `json:"failed_stages,omitempty"`
	Report     map[string]float64 `json:"report,omitempty"`
}

// Ledger is a BadgerDB-backed record of stage fingerprints and runs.
type Ledger struct {
	db     *badger.DB
	config LedgerConfig
	mu     sync.RWMutex
	closed bool
}

// OpenLedger opens (or creates) the ledger.
func OpenLedger(cfg LedgerConfig) (*Ledger, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, fmt.Errorf("ledger path is required")
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Msg("Stage ledger opened")
	return &Ledger{db: db, config: cfg}, nil
}

func (l *Ledger) checkOpen() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrLedgerClosed
	}
	return nil
}

// RecordStage stores the record for a completed stage, replacing the
// previous one.
func (l *Ledger) RecordStage(ctx context.Context, rec StageRecord) error {
	if err := l.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.Stage == "" {
		return fmt.Errorf("record stage: empty stage name")
	}
	data, err := json.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("marshal stage record: %w", err)
	}
	err = l.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixStage+rec.Stage), data)
	})
	if err != nil {
		return fmt.Errorf("write stage record: %w", err)
	}
	return nil
}

// Stage returns the last record for a stage.
func (l *Ledger) Stage(ctx context.Context, stage string) (StageRecord, error) {
	var rec StageRecord
	err := l.get(ctx, prefixStage+stage, &rec)
	return rec, err
}

// Unchanged reports whether stage last completed with the same input
// fingerprint.
func (l *Ledger) Unchanged(ctx context.Context, stage, fingerprint string) (bool, error) {
	rec, err := l.Stage(ctx, stage)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return rec.Fingerprint == fingerprint, nil
}

// RecordRun stores a run and marks it as the latest.
func (l *Ledger) RecordRun(ctx context.Context, run RunRecord) error {
	if err := l.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if run.RunID == "" {
		return fmt.Errorf("record run: empty run id")
	}
	data, err := json.Marshal(&run)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}
	err = l.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(runKey(run), data)
		if l.config.RunTTL > 0 {
			e = e.WithTTL(l.config.RunTTL)
		}
		if err := txn.SetEntry(e); err != nil {
			return err
		}
		return txn.Set([]byte(keyLatest), runKey(run))
	})
	if err != nil {
		return fmt.Errorf("write run record: %w", err)
	}
	return nil
}

// LatestRun returns the most recently recorded run.
func (l *Ledger) LatestRun(ctx context.Context) (RunRecord, error) {
	if err := l.checkOpen(); err != nil {
		return RunRecord{}, err
	}
	if err := ctx.Err(); err != nil {
		return RunRecord{}, err
	}

	var run RunRecord
	err := l.db.View(func(txn *badger.Txn) error {
		ptr, err := txn.Get([]byte(keyLatest))
		if err != nil {
			return err
		}
		key, err := ptr.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &run)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return RunRecord{}, fmt.Errorf("latest run: %w", ErrNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("read latest run: %w", err)
	}
	return run, nil
}

// Runs returns up to limit runs, newest first.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	if err := l.checkOpen(); err != nil {
		return nil, err
	}

	var runs []RunRecord
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(prefixRun)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration seeks past the end of the prefix range.
		for it.Seek([]byte(prefixRun + "\xff")); it.ValidForPrefix(opts.Prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			if limit > 0 && len(runs) >= limit {
				break
			}
			var run RunRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &run)
			})
			if err != nil {
				logging.Warn().Err(err).Str("key", string(it.Item().Key())).Msg("Ledger failed to unmarshal run")
				continue
			}
			runs = append(runs, run)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.db.Close(); err != nil {
		return fmt.Errorf("close BadgerDB: %w", err)
	}
	return nil
}

// RunGC reclaims value log space until nothing is left to rewrite.
func (l *Ledger) RunGC() error {
	if err := l.checkOpen(); err != nil {
		return err
	}
	if l.config.InMemory {
		return nil
	}
	for {
		err := l.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

func (l *Ledger) get(ctx context.Context, key string, target any) error {
	if err := l.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, target)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	return nil
}

// runKey orders runs by start time.
func runKey(run RunRecord) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", prefixRun, run.StartedAt.UnixNano(), run.RunID))
}
