package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loamdb/loam/internal/ddl"
	"github.com/loamdb/loam/schema"
)

// ApplyError reports the artifact that failed. Artifacts applied
// earlier in the same run stay applied; re-running attempts the failed
// artifact again.
type ApplyError struct {
	Identifier string
	Err        error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("applying migration %s: %v", e.Identifier, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// ChecksumError means an artifact changed after it was recorded as
// applied. The store and the files no longer agree on history.
type ChecksumError struct {
	Identifier string
	Recorded   string
	Computed   string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("migration %s changed after it was applied: checksum %s, recorded %s",
		e.Identifier, e.Computed, e.Recorded)
}

// Record is one bookkeeping row: an applied artifact and when it ran.
type Record struct {
	Identifier string
	Checksum   string
	AppliedAt  time.Time
}

var bookkeepingDDL = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  identifier TEXT PRIMARY KEY,
  checksum   TEXT NOT NULL,
  applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`, schema.ReservedTable)

// EnsureBookkeeping creates the bookkeeping table if it is absent. It
// runs unconditionally at the start of every migration pass, so a
// fresh database needs no separate bootstrap step.
func EnsureBookkeeping(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, bookkeepingDDL); err != nil {
		return fmt.Errorf("creating %s: %w", schema.ReservedTable, err)
	}
	return nil
}

// AppliedRecords returns the bookkeeping rows in identifier order. A
// database the runner has never touched yields an empty slice; reading
// never creates the bookkeeping table.
func AppliedRecords(ctx context.Context, db *sql.DB) ([]Record, error) {
	var n int
	probe := `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`
	if err := db.QueryRowContext(ctx, probe, schema.ReservedTable).Scan(&n); err != nil {
		return nil, fmt.Errorf("reading %s: %w", schema.ReservedTable, err)
	}
	if n == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT identifier, checksum, applied_at FROM %s ORDER BY identifier`, schema.ReservedTable)
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", schema.ReservedTable, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var appliedAt string
		if err := rows.Scan(&rec.Identifier, &rec.Checksum, &appliedAt); err != nil {
			return nil, fmt.Errorf("reading %s: %w", schema.ReservedTable, err)
		}
		rec.AppliedAt = parseAppliedAt(appliedAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", schema.ReservedTable, err)
	}
	return records, nil
}

// parseAppliedAt accepts both the runner's own RFC 3339 rows and the
// bare datetime format SQLite writes through the column default.
func parseAppliedAt(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

// Runner applies pending artifacts to a database.
type Runner struct {
	DB     *sql.DB
	Logger *slog.Logger
}

// Run applies, in identifier order, every artifact not yet recorded in
// the bookkeeping table. Each artifact executes inside its own
// transaction together with its bookkeeping row, so a failure rolls
// back only the artifact that caused it and leaves earlier ones
// applied. Run stops at the first failure and returns the number of
// artifacts applied.
func (r *Runner) Run(ctx context.Context, artifacts []*Artifact) (int, error) {
	log := r.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("run_id", uuid.NewString())

	if err := EnsureBookkeeping(ctx, r.DB); err != nil {
		return 0, err
	}
	records, err := AppliedRecords(ctx, r.DB)
	if err != nil {
		return 0, err
	}
	applied := make(map[string]string, len(records))
	lastApplied := ""
	for _, rec := range records {
		applied[rec.Identifier] = rec.Checksum
		if rec.Identifier > lastApplied {
			lastApplied = rec.Identifier
		}
	}

	pending := make([]*Artifact, len(artifacts))
	copy(pending, artifacts)
	sort.Slice(pending, func(i, j int) bool { return pending[i].Identifier < pending[j].Identifier })

	known := make(map[string]bool, len(pending))
	for _, a := range pending {
		if known[a.Identifier] {
			return 0, fmt.Errorf("duplicate migration identifier %s", a.Identifier)
		}
		known[a.Identifier] = true
	}
	for id := range applied {
		if !known[id] {
			log.Warn("applied migration missing from sources", "identifier", id)
		}
	}

	count := 0
	for _, a := range pending {
		if recorded, ok := applied[a.Identifier]; ok {
			if recorded != a.Checksum() {
				return count, &ChecksumError{Identifier: a.Identifier, Recorded: recorded, Computed: a.Checksum()}
			}
			continue
		}
		if a.Identifier < lastApplied {
			log.Warn("applying migration older than history", "identifier", a.Identifier, "latest", lastApplied)
		}
		log.Info("applying migration", "identifier", a.Identifier, "description", a.Description)
		if err := r.applyOne(ctx, a); err != nil {
			return count, &ApplyError{Identifier: a.Identifier, Err: err}
		}
		count++
	}
	log.Info("migrations up to date", "applied", count, "total", len(pending))
	return count, nil
}

func (r *Runner) applyOne(ctx context.Context, a *Artifact) error {
	statements, err := ddl.RenderAll(a.Diff())
	if err != nil {
		return err
	}
	for _, stmt := range a.Statements {
		if executable(stmt) {
			statements = append(statements, stmt)
		}
	}
	if len(statements) == 0 {
		return errors.New("no executable statements; edit the artifact before applying")
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing %q: %w", stmt, err)
		}
	}
	record := fmt.Sprintf(`INSERT INTO %s (identifier, checksum, applied_at) VALUES (?, ?, ?)`, schema.ReservedTable)
	appliedAt := time.Now().UTC().Format(time.RFC3339)
	if _, err := tx.ExecContext(ctx, record, a.Identifier, a.Checksum(), appliedAt); err != nil {
		return fmt.Errorf("recording migration: %w", err)
	}
	return tx.Commit()
}

// executable reports whether a raw statement holds anything beyond SQL
// line comments and whitespace. Skeleton artifacts ship a comment-only
// placeholder; applying one unedited is a mistake, not a no-op.
func executable(stmt string) bool {
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		return true
	}
	return false
}
