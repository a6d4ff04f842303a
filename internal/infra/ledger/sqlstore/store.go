// Package sqlstore is the database/sql implementation shared by the SQLite
// and Postgres ledgers. Records live in one table as msgpack payloads next
// to the columns used for lookups.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"isatab/internal/ledger/core"
)

// Dialect captures the SQL differences between backends.
type Dialect struct {
	Driver   core.Driver
	BlobType string
	// Placeholder returns the n-th (1-based) bind parameter.
	Placeholder func(n int) string
}

// SQLite uses ? placeholders and BLOB payloads.
var SQLite = Dialect{Driver: core.DriverSQLite, BlobType: "BLOB", Placeholder: func(int) string { return "?" }}

// Postgres uses $n placeholders and BYTEA payloads.
var Postgres = Dialect{Driver: core.DriverPostgres, BlobType: "BYTEA", Placeholder: func(n int) string { return fmt.Sprintf("$%d", n) }}

// Store implements core.Store on a *sql.DB.
type Store struct {
	db *sql.DB
	d  Dialect
}

// New creates the runs table if needed.
func New(ctx context.Context, db *sql.DB, d Dialect) (*Store, error) {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS isatab_runs (
		id TEXT PRIMARY KEY,
		investigation TEXT NOT NULL,
		state TEXT NOT NULL,
		started_at TEXT NOT NULL,
		payload %s NOT NULL
	)`, d.BlobType)
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	return &Store{db: db, d: d}, nil
}

// Driver implements core.Store.
func (s *Store) Driver() core.Driver { return s.d.Driver }

func (s *Store) q(query string) string {
	n := 0
	var b strings.Builder
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(s.d.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Save upserts rec inside a transaction.
func (s *Store) Save(ctx context.Context, rec core.RunRecord) (retErr error) {
	if rec.ID == "" {
		return core.ErrMissingID
	}
	payload, err := core.Encode(rec)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", rec.ID, err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	_, err = tx.ExecContext(ctx, s.q(`INSERT INTO isatab_runs(id, investigation, state, started_at, payload) VALUES(?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET state=excluded.state, payload=excluded.payload`),
		rec.ID, rec.Investigation, string(rec.State), rec.StartedAt.UTC().Format(time.RFC3339Nano), payload)
	if err != nil {
		return fmt.Errorf("upsert run %s: %w", rec.ID, err)
	}
	return tx.Commit()
}

// Get implements core.Store.
func (s *Store) Get(ctx context.Context, id string) (core.RunRecord, bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, s.q(`SELECT payload FROM isatab_runs WHERE id = ?`), id).Scan(&payload)
	if err == sql.ErrNoRows {
		return core.RunRecord{}, false, nil
	}
	if err != nil {
		return core.RunRecord{}, false, fmt.Errorf("select run %s: %w", id, err)
	}
	rec, err := core.Decode(payload)
	if err != nil {
		return core.RunRecord{}, false, fmt.Errorf("decode run %s: %w", id, err)
	}
	return rec, true, nil
}

// List returns records for investigation (all when empty), newest first.
func (s *Store) List(ctx context.Context, investigation string) ([]core.RunRecord, error) {
	query := `SELECT payload FROM isatab_runs`
	var args []any
	if investigation != "" {
		query += ` WHERE investigation = ?`
		args = append(args, investigation)
	}
	query += ` ORDER BY started_at DESC`
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		return nil, fmt.Errorf("select runs: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []core.RunRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec, err := core.Decode(payload)
		if err != nil {
			return nil, fmt.Errorf("decode run: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }
