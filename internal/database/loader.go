// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

package database

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/roastery/internal/logging"
	"github.com/tomtom215/roastery/internal/metrics"
	"github.com/tomtom215/roastery/internal/models"
)

// Source formats understood by the loader.
const (
	FormatAuto   = "auto"
	FormatCSV    = "csv"
	FormatDuckDB = "duckdb"
)

// fieldTransactionTime is the optional time-of-day column combined with
// transaction_date.
const fieldTransactionTime = "transaction_time"

var attachSeq atomic.Uint64

// Source describes where raw transactions are read from.
type Source struct {
	Path   string
	Format string
	Table  string
}

// LoadStats summarizes data quality of the most recent load.
type LoadStats struct {
	RawRows          int           `json:"raw_rows"`
	LoadedRows       int           `json:"loaded_rows"`
	DroppedRows      int           `json:"dropped_rows"`
	DuplicateIDs     int           `json:"duplicate_ids"`
	NonPositiveQty   int           `json:"non_positive_qty"`
	NonPositivePrice int           `json:"non_positive_price"`
	Duration         time.Duration `json:"duration"`
}

// Loader reads a Source into a TransactionTable.
type Loader struct {
	db  *DB
	src Source

	mu    sync.Mutex
	stats LoadStats
}

// NewLoader resolves the source format and returns a loader.
func NewLoader(db *DB, src Source) (*Loader, error) {
	if db == nil {
		return nil, fmt.Errorf("nil database")
	}
	if src.Path == "" {
		return nil, fmt.Errorf("source path is required")
	}
	format, err := resolveFormat(src)
	if err != nil {
		return nil, err
	}
	src.Format = format
	if format == FormatDuckDB && src.Table == "" {
		return nil, fmt.Errorf("source table is required for duckdb sources")
	}
	return &Loader{db: db, src: src}, nil
}

func resolveFormat(src Source) (string, error) {
	switch strings.ToLower(src.Format) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatDuckDB:
		return FormatDuckDB, nil
	case "", FormatAuto:
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, src.Format)
	}
	switch strings.ToLower(filepath.Ext(src.Path)) {
	case ".csv", ".tsv", ".txt":
		return FormatCSV, nil
	case ".duckdb", ".ddb", ".db":
		return FormatDuckDB, nil
	}
	return "", fmt.Errorf("%w: cannot infer from %q", ErrUnknownFormat, src.Path)
}

// Name identifies the source in logs and fingerprints.
func (l *Loader) Name() string {
	if l.src.Format == FormatDuckDB {
		return l.src.Path + "#" + l.src.Table
	}
	return l.src.Path
}

// Format returns the resolved source format.
func (l *Loader) Format() string {
	return l.src.Format
}

// LastStats returns the statistics of the most recent successful load.
func (l *Loader) LastStats() LoadStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stats
}

// Load reads and cleans the source.
func (l *Loader) Load(ctx context.Context) (*models.TransactionTable, error) {
	start := time.Now()
	op := "load_" + l.src.Format

	var table *models.TransactionTable
	var stats LoadStats
	err := l.db.withConn(ctx, func(conn *sql.Conn) error {
		relation, cleanup, err := l.relation(ctx, conn)
		if err != nil {
			return err
		}
		defer cleanup()

		table, stats, err = loadRelation(ctx, conn, l.Name(), relation)
		return err
	})
	metrics.RecordDBQuery(op, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	stats.Duration = time.Since(start)
	l.mu.Lock()
	l.stats = stats
	l.mu.Unlock()

	metrics.RecordRowsLoaded(stats.LoadedRows)
	logging.Ctx(ctx).Info().
		Str("source", l.Name()).
		Int("raw_rows", stats.RawRows).
		Int("loaded_rows", stats.LoadedRows).
		Int("dropped_rows", stats.DroppedRows).
		Int("duplicate_ids", stats.DuplicateIDs).
		Int("non_positive_qty", stats.NonPositiveQty).
		Int("non_positive_price", stats.NonPositivePrice).
		Dur("duration", stats.Duration).
		Msg("Transactions loaded")
	return table, nil
}

// relation returns a SQL relation for the source and a cleanup func.
func (l *Loader) relation(ctx context.Context, conn *sql.Conn) (string, func(), error) {
	if l.src.Format == FormatCSV {
		return fmt.Sprintf("read_csv_auto(%s, header = true)", quoteLiteral(l.src.Path)), func() {}, nil
	}

	alias := fmt.Sprintf("roastery_src_%d", attachSeq.Add(1))
	attach := fmt.Sprintf("ATTACH %s AS %s (READ_ONLY)", quoteLiteral(l.src.Path), alias)
	if _, err := conn.ExecContext(ctx, attach); err != nil {
		return "", nil, fmt.Errorf("attach %s: %w", l.src.Path, err)
	}
	cleanup := func() {
		// The load context may already be cancelled.
		if _, err := conn.ExecContext(context.Background(), "DETACH "+alias); err != nil {
			logging.Warn().Err(err).Str("alias", alias).Msg("Failed to detach source database")
		}
	}
	return alias + ".main." + quoteIdent(l.src.Table), cleanup, nil
}

// normalizeColumn trims, lowercases and replaces spaces with underscores.
func normalizeColumn(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// discoverColumns maps normalized column names to the source's spelling.
func discoverColumns(ctx context.Context, conn *sql.Conn, relation string) (map[string]string, error) {
	rows, err := conn.QueryContext(ctx, "SELECT * FROM "+relation+" LIMIT 0")
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	defer closeWithLog(rows, "rows")

	names, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}
	cols := make(map[string]string, len(names))
	for _, name := range names {
		norm := normalizeColumn(name)
		if _, dup := cols[norm]; !dup {
			cols[norm] = name
		}
	}
	return cols, nil
}

func loadRelation(ctx context.Context, conn *sql.Conn, source, relation string) (*models.TransactionTable, LoadStats, error) {
	var stats LoadStats

	cols, err := discoverColumns(ctx, conn, relation)
	if err != nil {
		return nil, stats, err
	}
	present := make([]models.Field, 0, len(cols))
	for norm := range cols {
		present = append(present, models.Field(norm))
	}
	columns := models.NewColumnSet(present...)
	if missing := columns.Missing(models.RequiredFields...); len(missing) > 0 {
		return nil, stats, &MissingColumnsError{Source: source, Missing: missing}
	}

	if err := conn.QueryRowContext(ctx, "SELECT count(*) FROM "+relation).Scan(&stats.RawRows); err != nil {
		return nil, stats, fmt.Errorf("count rows: %w", err)
	}

	rows, err := conn.QueryContext(ctx, buildSelect(cols, relation))
	if err != nil {
		return nil, stats, fmt.Errorf("query transactions: %w", err)
	}
	defer closeWithLog(rows, "rows")

	records := make([]models.Transaction, 0, stats.RawRows)
	seen := make(map[string]struct{}, stats.RawRows)
	for rows.Next() {
		var (
			tx       models.Transaction
			category sql.NullString
			ts       time.Time
		)
		if err := rows.Scan(&tx.TransactionID, &tx.ProductID, &category, &tx.StoreLocation,
			&ts, &tx.Quantity, &tx.UnitPrice, &tx.ChurnFlag); err != nil {
			return nil, stats, fmt.Errorf("scan transaction: %w", err)
		}
		tx.ProductCategory = category.String
		tx.Timestamp = ts.UTC()

		if _, dup := seen[tx.TransactionID]; dup {
			stats.DuplicateIDs++
		}
		seen[tx.TransactionID] = struct{}{}
		if tx.Quantity <= 0 {
			stats.NonPositiveQty++
		}
		if tx.UnitPrice <= 0 {
			stats.NonPositivePrice++
		}
		records = append(records, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, stats, fmt.Errorf("iterate transactions: %w", err)
	}

	stats.LoadedRows = len(records)
	stats.DroppedRows = stats.RawRows - stats.LoadedRows

	kept := []models.Field{}
	for _, f := range []models.Field{
		models.FieldTransactionID, models.FieldProductID, models.FieldProductCategory,
		models.FieldStoreLocation, models.FieldTimestamp, models.FieldQuantity,
		models.FieldUnitPrice, models.FieldChurnFlag,
	} {
		if columns.Has(f) {
			kept = append(kept, f)
		}
	}
	return models.NewTransactionTable(models.NewColumnSet(kept...), records), stats, nil
}

// buildSelect renders the cleaning query. Column order matches the Scan
// in loadRelation.
func buildSelect(cols map[string]string, relation string) string {
	col := func(f models.Field) string { return quoteIdent(cols[string(f)]) }
	text := func(f models.Field) string {
		return fmt.Sprintf("NULLIF(TRIM(CAST(%s AS VARCHAR)), '')", col(f))
	}
	number := func(f models.Field) string {
		return fmt.Sprintf("COALESCE(TRY_CAST(%s AS DOUBLE), 0)", col(f))
	}

	category := "CAST(NULL AS VARCHAR)"
	if _, ok := cols[string(models.FieldProductCategory)]; ok {
		category = text(models.FieldProductCategory)
	}
	churn := "0"
	if _, ok := cols[string(models.FieldChurnFlag)]; ok {
		churn = fmt.Sprintf("COALESCE(TRY_CAST(%s AS INTEGER), 0)", col(models.FieldChurnFlag))
	}
	ts := fmt.Sprintf("TRY_CAST(%s AS TIMESTAMP)", col(models.FieldTimestamp))
	if orig, ok := cols[fieldTransactionTime]; ok {
		ts = fmt.Sprintf("CAST(TRY_CAST(%s AS DATE) + COALESCE(TRY_CAST(%s AS TIME), TIME '00:00:00') AS TIMESTAMP)",
			col(models.FieldTimestamp), quoteIdent(orig))
	}

	var b strings.Builder
	b.WriteString("WITH cleaned AS (SELECT ")
	fmt.Fprintf(&b, "%s AS txid, ", text(models.FieldTransactionID))
	fmt.Fprintf(&b, "COALESCE(%s, '') AS product, ", text(models.FieldProductID))
	fmt.Fprintf(&b, "%s AS category, ", category)
	fmt.Fprintf(&b, "COALESCE(%s, '') AS store, ", text(models.FieldStoreLocation))
	fmt.Fprintf(&b, "%s AS ts, ", ts)
	fmt.Fprintf(&b, "%s AS qty, ", number(models.FieldQuantity))
	fmt.Fprintf(&b, "%s AS price, ", number(models.FieldUnitPrice))
	fmt.Fprintf(&b, "%s AS churn ", churn)
	fmt.Fprintf(&b, "FROM %s) ", relation)
	b.WriteString("SELECT txid, product, category, store, ts, qty, price, churn FROM cleaned ")
	b.WriteString("WHERE txid IS NOT NULL AND ts IS NOT NULL ")
	// Every output column takes part so duplicate lines load in one order.
	b.WriteString("ORDER BY ts, txid, product, qty, price, store, category NULLS FIRST, churn")
	return b.String()
}
