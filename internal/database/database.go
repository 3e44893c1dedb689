// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"
)

// Config tunes the embedded DuckDB instance.
type Config struct {
	// MemoryLimit is DuckDB's memory_limit, e.g. "2GB". Empty keeps the
	// DuckDB default.
	MemoryLimit string

	// Threads caps DuckDB worker threads. 0 keeps the DuckDB default.
	Threads int
}

// DB wraps an in-memory DuckDB connection pool.
type DB struct {
	conn   *sql.DB
	cfg    Config
	mu     sync.RWMutex
	closed bool
}

// Open starts an in-memory DuckDB instance.
func Open(cfg Config) (*DB, error) {
	var params []string
	if cfg.Threads > 0 {
		params = append(params, fmt.Sprintf("threads=%d", cfg.Threads))
	}
	if cfg.MemoryLimit != "" {
		params = append(params, "memory_limit="+cfg.MemoryLimit)
	}
	connStr := ""
	if len(params) > 0 {
		connStr = "?" + strings.Join(params, "&")
	}

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &DB{conn: conn, cfg: cfg}, nil
}

// Conn returns the underlying pool.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping checks that the database is usable.
func (db *DB) Ping(ctx context.Context) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return ErrClosed
	}
	return db.conn.PingContext(ctx)
}

// Close closes the pool. It is safe to call more than once.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	return db.conn.Close()
}

// withConn runs fn on a dedicated connection.
func (db *DB) withConn(ctx context.Context, fn func(*sql.Conn) error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return ErrClosed
	}
	c, err := db.conn.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer closeWithLog(c, "connection")
	return fn(c)
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
