package reconcile

import "github.com/cleared-dev/wayex-ledger/internal/model"

// OutcomeKind classifies a step of a reconciliation run.
type OutcomeKind string

const (
	// Matched pairs an external record with the ledger record it consumed.
	Matched OutcomeKind = "matched"
	// ZeroAmount marks an external record with nothing to reconcile.
	ZeroAmount OutcomeKind = "zero-amount"
	// DateMismatch is a ledger record with the right amount but a date
	// outside the window. It is a diagnostic; scanning continues.
	DateMismatch OutcomeKind = "date-mismatch"
	// Unmatched is an external record no available ledger record fits.
	Unmatched OutcomeKind = "unmatched"
	// Unaccounted is a ledger record left over at the end of the run.
	Unaccounted OutcomeKind = "unaccounted"
)

// Outcome is one event of a run. Seq is the index of the external record
// being processed, or -1 for Unaccounted. External is unset for
// Unaccounted; Ledger is unset for ZeroAmount and Unmatched. DayDiff is the
// external date minus the ledger date for Matched and DateMismatch.
type Outcome struct {
	Kind     OutcomeKind
	Seq      int
	External model.ExternalRecord
	Ledger   model.LedgerRecord
	DayDiff  int
}

// HasExternal reports whether External is set.
func (o Outcome) HasExternal() bool { return o.Kind != Unaccounted }

// HasLedger reports whether Ledger is set.
func (o Outcome) HasLedger() bool {
	return o.Kind == Matched || o.Kind == DateMismatch || o.Kind == Unaccounted
}

// Result is the full record of a run, in emission order.
type Result struct {
	PoolSize int
	Outcomes []Outcome
}

// Count returns the number of outcomes of kind k.
func (r *Result) Count(k OutcomeKind) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Kind == k {
			n++
		}
	}
	return n
}

// Filter returns the outcomes of kind k in order.
func (r *Result) Filter(k OutcomeKind) []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Kind == k {
			out = append(out, o)
		}
	}
	return out
}
