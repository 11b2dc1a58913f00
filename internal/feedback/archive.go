// Copyright 2026 The mathrouter Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package feedback

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver
	_ "github.com/mattn/go-sqlite3"    // SQLite driver
	log "github.com/sirupsen/logrus"

	"github.com/solvernet/mathrouter/internal/routing"
)

// Archive persists feedback entries in a SQL database so the store
// survives restarts. It holds the durable copy only; the aggregator's
// in-memory view stays authoritative for the running process.
type Archive struct {
	db     *sql.DB
	driver string
}

const archiveSchema = `
CREATE TABLE IF NOT EXISTS feedback_entries (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	query TEXT NOT NULL,
	query_hash TEXT NOT NULL,
	route TEXT NOT NULL,
	rating INTEGER NOT NULL,
	helpful BOOLEAN NOT NULL,
	correct BOOLEAN NOT NULL,
	clear BOOLEAN NOT NULL,
	complete BOOLEAN NOT NULL,
	comments TEXT NOT NULL DEFAULT '',
	suggested_improvement TEXT NOT NULL DEFAULT '',
	alternative_solution TEXT NOT NULL DEFAULT '',
	response_confidence REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_feedback_entries_created_at ON feedback_entries(created_at);
CREATE INDEX IF NOT EXISTS idx_feedback_entries_query_hash ON feedback_entries(query_hash);
`

const insertEntrySQL = `
INSERT INTO feedback_entries (
	id, created_at, query, query_hash, route, rating,
	helpful, correct, clear, complete,
	comments, suggested_improvement, alternative_solution, response_confidence
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const loadRecentSQL = `
SELECT id, created_at, query, query_hash, route, rating,
       helpful, correct, clear, complete,
       comments, suggested_improvement, alternative_solution, response_confidence
FROM feedback_entries
ORDER BY created_at DESC
LIMIT ?`

// OpenArchive opens the feedback archive for the given driver ("sqlite3"
// or "pgx") and ensures the schema exists.
func OpenArchive(ctx context.Context, driver, dsn string) (*Archive, error) {
	switch driver {
	case "sqlite3", "pgx":
	default:
		return nil, fmt.Errorf("unsupported feedback archive driver %q", driver)
	}
	if dsn == "" {
		return nil, fmt.Errorf("feedback archive DSN is empty")
	}

	if driver == "sqlite3" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open feedback archive: %w", err)
	}
	if driver == "sqlite3" {
		// SQLite works best with a single connection.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}

	a := &Archive{db: db, driver: driver}
	if _, err := db.ExecContext(ctx, archiveSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create archive schema: %w", err)
	}
	log.Debugf("Feedback archive ready (driver: %s)", driver)
	return a, nil
}

// Insert stores one feedback entry.
func (a *Archive) Insert(ctx context.Context, e *Entry) error {
	_, err := a.db.ExecContext(ctx, a.rebind(insertEntrySQL),
		e.ID,
		e.Timestamp,
		e.Query,
		e.QueryHash,
		string(e.Response.RouteUsed),
		e.Ratings.Rating,
		e.Ratings.Helpful,
		e.Ratings.Correct,
		e.Ratings.Clear,
		e.Ratings.Complete,
		e.Ratings.Comments,
		e.Ratings.SuggestedImprovement,
		e.Ratings.AlternativeSolution,
		e.Response.Confidence,
	)
	if err != nil {
		return fmt.Errorf("failed to insert feedback entry: %w", err)
	}
	return nil
}

// LoadRecent returns the newest limit entries in insertion order, oldest
// first. Archived entries carry the rated route and confidence but not the
// full solution text.
func (a *Archive) LoadRecent(ctx context.Context, limit int) ([]*Entry, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := a.db.QueryContext(ctx, a.rebind(loadRecentSQL), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback archive: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			log.Warnf("Failed to scan feedback entry: %v", err)
			continue
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feedback entries: %w", err)
	}

	// The query returns newest first; flip back to insertion order.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Prune deletes entries created before the cutoff and reports how many
// were removed.
func (a *Archive) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := a.db.ExecContext(ctx, a.rebind(`DELETE FROM feedback_entries WHERE created_at < ?`), olderThan)
	if err != nil {
		return 0, fmt.Errorf("failed to prune feedback archive: %w", err)
	}
	pruned, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return pruned, nil
}

// Close releases the database connection.
func (a *Archive) Close() error {
	if err := a.db.Close(); err != nil {
		return fmt.Errorf("failed to close feedback archive: %w", err)
	}
	return nil
}

// rebind rewrites ? placeholders to the $n form Postgres expects. SQLite
// statements pass through untouched.
func (a *Archive) rebind(query string) string {
	if a.driver != "pgx" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func scanEntry(rows *sql.Rows) (*Entry, error) {
	var e Entry
	var route string
	err := rows.Scan(
		&e.ID,
		&e.Timestamp,
		&e.Query,
		&e.QueryHash,
		&route,
		&e.Ratings.Rating,
		&e.Ratings.Helpful,
		&e.Ratings.Correct,
		&e.Ratings.Clear,
		&e.Ratings.Complete,
		&e.Ratings.Comments,
		&e.Ratings.SuggestedImprovement,
		&e.Ratings.AlternativeSolution,
		&e.Response.Confidence,
	)
	if err != nil {
		return nil, err
	}
	e.Response.RouteUsed = routing.RouteDecision(route)
	return &e, nil
}
