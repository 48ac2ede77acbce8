// Package history keeps a SQLite record of reconciliation runs so earlier
// results can be listed and inspected without rerunning them.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/wayex-ledger/internal/model"
	"github.com/cleared-dev/wayex-ledger/internal/reconcile"
	"github.com/cleared-dev/wayex-ledger/internal/report"
)

// ErrRunNotFound is returned by GetRun for an unknown ID.
var ErrRunNotFound = errors.New("run not found")

// Run status values.
const (
	StatusComplete   = "complete"
	StatusIncomplete = "incomplete" // stopped at an unmatched record
)

// Run summarises one reconciliation.
type Run struct {
	ID         string
	StartedAt  time.Time
	WayexFile  string
	LedgerFile string
	Revision   string
	Asset      string
	Account    string
	Window     reconcile.Window
	TieBreak   string
	Status     string

	PoolSize       int
	Matched        int
	ZeroAmount     int
	DateMismatches int
	Unmatched      int
	Unaccounted    int

	Totals report.Totals
}

// OutcomeRow is a stored outcome. Fields that do not apply to Kind are zero.
type OutcomeRow struct {
	Position          int
	Seq               int
	Kind              reconcile.OutcomeKind
	Row               int
	Timestamp         string
	Description       string
	Amount            string
	LedgerLine        int
	LedgerDate        string
	LedgerDescription string
	LedgerAmount      string
	DayDiff           int
}

// Store provides SQLite access to run history.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// Open opens or creates the database at path and applies pending migrations.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, logger: logger}
	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun stores run and the outcomes of res. Counts, totals and the pool
// size are taken from res; an empty ID is assigned a new UUID.
func (s *Store) SaveRun(ctx context.Context, run *Run, res *reconcile.Result) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.PoolSize = res.PoolSize
	run.Matched = res.Count(reconcile.Matched)
	run.ZeroAmount = res.Count(reconcile.ZeroAmount)
	run.DateMismatches = res.Count(reconcile.DateMismatch)
	run.Unmatched = res.Count(reconcile.Unmatched)
	run.Unaccounted = res.Count(reconcile.Unaccounted)
	run.Totals = report.Compute(res)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs
	(id, started_at, wayex_file, ledger_file, revision, asset, account,
	 min_days, max_days, tie_break, status, pool_size,
	 matched, zero_amount, date_mismatches, unmatched, unaccounted,
	 total, inflow, outflow)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.WayexFile,
		run.LedgerFile,
		run.Revision,
		run.Asset,
		run.Account,
		run.Window.MinDays,
		run.Window.MaxDays,
		run.TieBreak,
		run.Status,
		run.PoolSize,
		run.Matched,
		run.ZeroAmount,
		run.DateMismatches,
		run.Unmatched,
		run.Unaccounted,
		run.Totals.Total.StringFixed(model.Scale),
		run.Totals.Inflow.StringFixed(model.Scale),
		run.Totals.Outflow.StringFixed(model.Scale),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO run_outcomes
	(run_id, position, seq, kind, source_row, occurred_at, description, amount,
	 ledger_line, ledger_date, ledger_description, ledger_amount, day_diff)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing outcome insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, o := range res.Outcomes {
		r := toRow(i, o)
		_, err := stmt.ExecContext(ctx,
			run.ID, r.Position, r.Seq, string(r.Kind),
			nullInt(r.Row, o.HasExternal()), nullString(r.Timestamp), nullString(r.Description), nullString(r.Amount),
			nullInt(r.LedgerLine, o.HasLedger()), nullString(r.LedgerDate), nullString(r.LedgerDescription), nullString(r.LedgerAmount),
			nullInt(r.DayDiff, o.Kind == reconcile.Matched || o.Kind == reconcile.DateMismatch),
		)
		if err != nil {
			return fmt.Errorf("inserting outcome %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}
	s.logger.Debug().Str("run_id", run.ID).Int("outcomes", len(res.Outcomes)).Msg("saved run")
	return nil
}

const runColumns = `id, started_at, wayex_file, ledger_file, revision, asset, account,
	min_days, max_days, tie_break, status, pool_size,
	matched, zero_amount, date_mismatches, unmatched, unaccounted,
	total, inflow, outflow`

// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetRun returns the run with id. A unique ID prefix is also accepted.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrRunNotFound)
	}
	// Prefixes compare literally; % and _ are not wildcards.
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE substr(id, 1, length(?)) = ? LIMIT 2`, id, id)
	if err != nil {
		return nil, fmt.Errorf("querying run: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var found []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		if run.ID == id {
			return run, nil
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(found) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return found[0], nil
	}
	return nil, fmt.Errorf("run id prefix %q is ambiguous", id)
}

// Outcomes returns the stored outcomes of a run in emission order.
func (s *Store) Outcomes(ctx context.Context, runID string) ([]OutcomeRow, error) {
	rows, err := s.db.QueryContext(ctx, `
	SELECT position, seq, kind, source_row, occurred_at, description, amount,
	       ledger_line, ledger_date, ledger_description, ledger_amount, day_diff
	FROM run_outcomes WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []OutcomeRow
	for rows.Next() {
		var r OutcomeRow
		var kind string
		var row, ledgerLine, dayDiff sql.NullInt64
		var ts, desc, amount, ledgerDate, ledgerDesc, ledgerAmount sql.NullString
		if err := rows.Scan(&r.Position, &r.Seq, &kind, &row, &ts, &desc, &amount,
			&ledgerLine, &ledgerDate, &ledgerDesc, &ledgerAmount, &dayDiff); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		r.Kind = reconcile.OutcomeKind(kind)
		r.Row = int(row.Int64)
		r.Timestamp = ts.String
		r.Description = desc.String
		r.Amount = amount.String
		r.LedgerLine = int(ledgerLine.Int64)
		r.LedgerDate = ledgerDate.String
		r.LedgerDescription = ledgerDesc.String
		r.LedgerAmount = ledgerAmount.String
		r.DayDiff = int(dayDiff.Int64)
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var run Run
	var started, total, inflow, outflow string
	err := sc.Scan(
		&run.ID, &started, &run.WayexFile, &run.LedgerFile, &run.Revision, &run.Asset, &run.Account,
		&run.Window.MinDays, &run.Window.MaxDays, &run.TieBreak, &run.Status, &run.PoolSize,
		&run.Matched, &run.ZeroAmount, &run.DateMismatches, &run.Unmatched, &run.Unaccounted,
		&total, &inflow, &outflow,
	)
	if err != nil {
		return nil, fmt.Errorf("scanning run: %w", err)
	}

	if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("run %s: parsing started_at %q: %w", run.ID, started, err)
	}
	for _, f := range []struct {
		dst *decimal.Decimal
		s   string
	}{
		{&run.Totals.Total, total},
		{&run.Totals.Inflow, inflow},
		{&run.Totals.Outflow, outflow},
	} {
		if *f.dst, err = decimal.NewFromString(f.s); err != nil {
			return nil, fmt.Errorf("run %s: parsing total %q: %w", run.ID, f.s, err)
		}
	}
	return &run, nil
}

func toRow(pos int, o reconcile.Outcome) OutcomeRow {
	r := OutcomeRow{Position: pos, Seq: o.Seq, Kind: o.Kind}
	if o.HasExternal() {
		r.Row = o.External.Row
		r.Timestamp = o.External.Timestamp.Format(time.RFC3339)
		r.Description = o.External.Description
		r.Amount = o.External.SignedAmount().StringFixed(model.Scale)
	}
	if o.HasLedger() {
		r.LedgerLine = o.Ledger.Line
		r.LedgerDate = o.Ledger.Date.Format(time.DateOnly)
		r.LedgerDescription = o.Ledger.Description
		r.LedgerAmount = o.Ledger.Amount.StringFixed(model.Scale)
	}
	if o.Kind == reconcile.Matched || o.Kind == reconcile.DateMismatch {
		r.DayDiff = o.DayDiff
	}
	return r
}

func nullInt(n int, valid bool) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(n), Valid: valid}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
