// Package reconcile pairs exchange records with ledger postings.
//
// Each external record is matched to at most one ledger record with an
// exactly equal amount and a date inside a tolerance window. Matched ledger
// records are consumed so none is used twice. The run is single-threaded
// and order-sensitive: external records are processed in the order given
// and the pool is scanned in insertion order.
//
// Example usage:
//
//	pool := reconcile.NewPool(ledgerRecords)
//	r := reconcile.New(reconcile.DefaultConfig(), pool, logger)
//	result, err := r.Run(externalRecords, sink)
package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/cleared-dev/wayex-ledger/internal/model"
)

// Window is the inclusive range of allowed day differences, external date
// minus ledger date.
type Window struct {
	MinDays int `yaml:"min_days"`
	MaxDays int `yaml:"max_days"`
}

// Contains reports whether days lies inside the window.
func (w Window) Contains(days int) bool {
	return days >= w.MinDays && days <= w.MaxDays
}

// Validate rejects a window that admits nothing.
func (w Window) Validate() error {
	if w.MinDays > w.MaxDays {
		return fmt.Errorf("%w: min %d > max %d", ErrInvalidWindow, w.MinDays, w.MaxDays)
	}
	return nil
}

func (w Window) String() string { return fmt.Sprintf("[%d, %d]", w.MinDays, w.MaxDays) }

// TieBreak selects among several in-window candidates with equal amounts.
type TieBreak string

const (
	// TieBreakFirst takes the first candidate in pool order.
	TieBreakFirst TieBreak = "first"
	// TieBreakClosest takes the candidate with the smallest absolute day
	// difference, falling back to pool order.
	TieBreakClosest TieBreak = "closest"
)

// ParseTieBreak returns the policy named s.
func ParseTieBreak(s string) (TieBreak, error) {
	switch tb := TieBreak(strings.ToLower(s)); tb {
	case TieBreakFirst, TieBreakClosest:
		return tb, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTieBreak, s)
}

// Config controls matching.
type Config struct {
	Window          Window
	TieBreak        TieBreak
	StopOnUnmatched bool
}

// DefaultConfig returns the window of the original export, first-match
// tie-breaking, and stopping at the first unmatched record.
func DefaultConfig() Config {
	return Config{
		Window:          Window{MinDays: -2, MaxDays: 14},
		TieBreak:        TieBreakFirst,
		StopOnUnmatched: true,
	}
}

// Sink receives outcomes as they are produced.
type Sink interface {
	Observe(o Outcome) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(o Outcome) error

// Observe calls f(o).
func (f SinkFunc) Observe(o Outcome) error { return f(o) }

// Reconciler owns a ledger pool for the duration of a run.
type Reconciler struct {
	cfg    Config
	pool   *Pool
	logger zerolog.Logger
}

// New creates a Reconciler. The pool must not be used by anything else
// while the reconciler holds it.
func New(cfg Config, pool *Pool, logger zerolog.Logger) *Reconciler {
	if cfg.TieBreak == "" {
		cfg.TieBreak = TieBreakFirst
	}
	return &Reconciler{cfg: cfg, pool: pool, logger: logger}
}

// Run matches external records in order, streaming every outcome to sink
// (which may be nil). Ledger records left in the pool at the end are
// emitted as Unaccounted.
//
// With StopOnUnmatched the run ends at the first Unmatched outcome and
// returns an *UnmatchedError alongside the partial result. A sink error
// also ends the run.
func (r *Reconciler) Run(external []model.ExternalRecord, sink Sink) (*Result, error) {
	res := &Result{PoolSize: r.pool.Len()}
	emit := func(o Outcome) error {
		res.Outcomes = append(res.Outcomes, o)
		if sink == nil {
			return nil
		}
		return sink.Observe(o)
	}

	for seq, ext := range external {
		amount := ext.SignedAmount()
		log := r.logger.With().Int("row", ext.Row).Str("amount", amount.StringFixed(model.Scale)).Logger()

		if amount.IsZero() {
			log.Debug().Msg("zero amount, skipping")
			if err := emit(Outcome{Kind: ZeroAmount, Seq: seq, External: ext}); err != nil {
				return res, err
			}
			continue
		}

		idx, diff, mismatches := r.find(ext, amount)
		for _, m := range mismatches {
			log.Warn().
				Int("ledger_line", m.Ledger.Line).
				Str("ledger_date", m.Ledger.Date.Format(time.DateOnly)).
				Int("day_diff", m.DayDiff).
				Msg("date mismatch")
			m.Seq = seq
			m.External = ext
			if err := emit(m); err != nil {
				return res, err
			}
		}

		if idx < 0 {
			log.Warn().Str("description", ext.Description).Msg("no ledger record found")
			if err := emit(Outcome{Kind: Unmatched, Seq: seq, External: ext}); err != nil {
				return res, err
			}
			if r.cfg.StopOnUnmatched {
				return res, &UnmatchedError{Record: ext}
			}
			continue
		}

		rec := r.pool.take(idx)
		log.Debug().Int("ledger_line", rec.Line).Int("day_diff", diff).Msg("matched")
		if err := emit(Outcome{Kind: Matched, Seq: seq, External: ext, Ledger: rec, DayDiff: diff}); err != nil {
			return res, err
		}
	}

	for _, rec := range r.pool.Remaining() {
		if err := emit(Outcome{Kind: Unaccounted, Seq: -1, Ledger: rec}); err != nil {
			return res, err
		}
	}
	return res, nil
}

// find scans the available pool for amount. It returns the index of the
// chosen entry (or -1), its day difference, and a DateMismatch outcome for
// every same-amount entry rejected by the window along the way.
func (r *Reconciler) find(ext model.ExternalRecord, amount decimal.Decimal) (int, int, []Outcome) {
	var mismatches []Outcome
	best, bestDiff := -1, 0
	for i := range r.pool.entries {
		e := &r.pool.entries[i]
		if e.consumed || !e.rec.Amount.Equal(amount) {
			continue
		}

		diff := model.DaysBetween(ext.Timestamp, e.rec.Date)
		if !r.cfg.Window.Contains(diff) {
			mismatches = append(mismatches, Outcome{Kind: DateMismatch, Ledger: e.rec, DayDiff: diff})
			continue
		}

		if r.cfg.TieBreak == TieBreakFirst {
			return i, diff, mismatches
		}
		if best < 0 || abs(diff) < abs(bestDiff) {
			best, bestDiff = i, diff
		}
	}
	return best, bestDiff, mismatches
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
