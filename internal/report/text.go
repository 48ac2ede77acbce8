package report

import (
	"fmt"
	"io"
	"time"

	"github.com/cleared-dev/wayex-ledger/internal/model"
	"github.com/cleared-dev/wayex-ledger/internal/reconcile"
)

const timestampLayout = "2006-01-02 15:04:05"

// Text writes the human-readable report: one block per external record
// followed by the unaccounted ledger records and the totals.
type Text struct {
	w       io.Writer
	totals  Totals
	lastSeq int
	open    bool
	err     error
}

// NewText returns a text reporter writing to w.
func NewText(w io.Writer) *Text {
	return &Text{w: w, lastSeq: -1}
}

// Observe prints o. The header line for an external record is printed on
// its first outcome, with the running total including it.
func (t *Text) Observe(o reconcile.Outcome) error {
	if o.Kind == reconcile.Unaccounted {
		// Rendered by Finish.
		return nil
	}

	if o.Seq != t.lastSeq {
		t.closeBlock()
		t.lastSeq = o.Seq
		t.open = true

		ext := o.External
		amount := ext.SignedAmount()
		t.totals.Add(amount)
		t.printf("%s %-40s %s %s\n",
			ext.Timestamp.Format(timestampLayout), ext.Description, fixed(amount), fixed(t.totals.Total))
	}

	switch o.Kind {
	case reconcile.Matched:
		t.ledgerLine(o.Ledger)
	case reconcile.DateMismatch:
		t.ledgerLine(o.Ledger)
		t.printf("Date mismatch: %d %s\n", o.DayDiff, o.Ledger.Date.Format(time.DateOnly))
	case reconcile.Unmatched:
		t.printf("No ledger record found\n")
	}
	return t.err
}

// Finish prints the unaccounted ledger records, any unmatched external
// records, and the totals.
func (t *Text) Finish(res *reconcile.Result) error {
	t.closeBlock()

	t.printf("Unaccounted ledger records:\n")
	for _, o := range res.Filter(reconcile.Unaccounted) {
		t.printf("%-24s %-40s %s\n", o.Ledger.Date.Format(time.DateOnly), o.Ledger.Description, fixed(o.Ledger.Amount))
	}

	if unmatched := res.Filter(reconcile.Unmatched); len(unmatched) > 0 {
		t.printf("\nUnmatched external records:\n")
		for _, o := range unmatched {
			t.printf("%s %-40s %s\n",
				o.External.Timestamp.Format(timestampLayout), o.External.Description, fixed(o.External.SignedAmount()))
		}
	}

	t.printf("\n")
	t.printf("spent %s\n", fixed(t.totals.Outflow))
	t.printf("paid %s\n", fixed(t.totals.Inflow))
	t.printf("total %s\n", fixed(t.totals.Total))
	return t.err
}

// Stop adds nothing: every block has already been printed.
func (t *Text) Stop(_ *reconcile.Result) error { return t.err }

// Totals returns the totals of the records observed so far.
func (t *Text) Totals() Totals { return t.totals }

func (t *Text) ledgerLine(rec model.LedgerRecord) {
	t.printf("%s          %-40s %s\n", rec.Date.Format(time.DateOnly), rec.Description, fixed(rec.Amount))
}

func (t *Text) closeBlock() {
	if t.open {
		t.printf("\n")
		t.open = false
	}
}

// printf keeps the first write error and drops everything after it.
func (t *Text) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}
