package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/cleared-dev/wayex-ledger/internal/reconcile"
)

// Document is the JSON report. Amounts are strings with eight fractional
// digits so no precision is lost to float parsing.
type Document struct {
	PoolSize    int            `json:"pool_size"`
	Stopped     bool           `json:"stopped,omitempty"`
	Outcomes    []OutcomeJSON  `json:"outcomes"`
	Unaccounted []LedgerJSON   `json:"unaccounted"`
	Unmatched   []ExternalJSON `json:"unmatched"`
	Totals      TotalsJSON     `json:"totals"`
}

// OutcomeJSON is one outcome of the run.
type OutcomeJSON struct {
	Kind     string        `json:"kind"`
	External *ExternalJSON `json:"external,omitempty"`
	Ledger   *LedgerJSON   `json:"ledger,omitempty"`
	DayDiff  *int          `json:"day_diff,omitempty"`
}

// ExternalJSON describes an exchange record.
type ExternalJSON struct {
	Row         int    `json:"row"`
	Timestamp   string `json:"timestamp"`
	Kind        string `json:"kind"`
	Asset       string `json:"asset"`
	Amount      string `json:"amount"`
	FiatAmount  string `json:"fiat_amount,omitempty"`
	Description string `json:"description"`
	Reference   string `json:"reference,omitempty"`
}

// LedgerJSON describes a ledger posting.
type LedgerJSON struct {
	Line        int    `json:"line"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

// TotalsJSON carries Totals.
type TotalsJSON struct {
	Total   string `json:"total"`
	Inflow  string `json:"inflow"`
	Outflow string `json:"outflow"`
}

// JSON collects outcomes and writes a single Document on Finish.
type JSON struct {
	w   io.Writer
	doc Document
}

// NewJSON returns a JSON reporter writing to w.
func NewJSON(w io.Writer) *JSON {
	return &JSON{w: w, doc: Document{
		Outcomes:    []OutcomeJSON{},
		Unaccounted: []LedgerJSON{},
		Unmatched:   []ExternalJSON{},
	}}
}

// Observe records o.
func (j *JSON) Observe(o reconcile.Outcome) error {
	out := OutcomeJSON{Kind: string(o.Kind)}
	if o.HasExternal() {
		ext := externalJSON(o)
		out.External = &ext
		if o.Kind == reconcile.Unmatched {
			j.doc.Unmatched = append(j.doc.Unmatched, ext)
		}
	}
	if o.HasLedger() {
		led := ledgerJSON(o)
		out.Ledger = &led
		if o.Kind == reconcile.Unaccounted {
			j.doc.Unaccounted = append(j.doc.Unaccounted, led)
		}
	}
	if o.Kind == reconcile.Matched || o.Kind == reconcile.DateMismatch {
		diff := o.DayDiff
		out.DayDiff = &diff
	}
	j.doc.Outcomes = append(j.doc.Outcomes, out)
	return nil
}

// Finish writes the document.
func (j *JSON) Finish(res *reconcile.Result) error {
	return j.write(res)
}

// Stop writes the partial document of a run that ended at an unmatched
// record. Unaccounted is empty because the pool was never drained.
func (j *JSON) Stop(res *reconcile.Result) error {
	j.doc.Stopped = true
	return j.write(res)
}

func (j *JSON) write(res *reconcile.Result) error {
	t := Compute(res)
	j.doc.PoolSize = res.PoolSize
	j.doc.Totals = TotalsJSON{Total: fixed(t.Total), Inflow: fixed(t.Inflow), Outflow: fixed(t.Outflow)}

	enc := json.NewEncoder(j.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(j.doc); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

func externalJSON(o reconcile.Outcome) ExternalJSON {
	ext := o.External
	e := ExternalJSON{
		Row:         ext.Row,
		Timestamp:   ext.Timestamp.Format(time.RFC3339),
		Kind:        string(ext.Kind),
		Asset:       string(ext.Asset),
		Amount:      fixed(ext.SignedAmount()),
		Description: ext.Description,
		Reference:   ext.Reference,
	}
	if !ext.FiatAmount.IsZero() {
		e.FiatAmount = ext.FiatAmount.StringFixed(2)
	}
	return e
}

func ledgerJSON(o reconcile.Outcome) LedgerJSON {
	return LedgerJSON{
		Line:        o.Ledger.Line,
		Date:        o.Ledger.Date.Format(time.DateOnly),
		Description: o.Ledger.Description,
		Amount:      fixed(o.Ledger.Amount),
	}
}
