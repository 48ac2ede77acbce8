// Package report renders reconciliation outcomes and keeps running totals.
package report

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/wayex-ledger/internal/model"
	"github.com/cleared-dev/wayex-ledger/internal/reconcile"
)

// ErrUnknownFormat is returned by New for an unsupported output format.
var ErrUnknownFormat = errors.New("unknown output format")

// Totals accumulates the signed amounts of external records.
// Outflow is the sum of negative amounts and so is never positive.
type Totals struct {
	Total   decimal.Decimal
	Inflow  decimal.Decimal
	Outflow decimal.Decimal
}

// Add folds amount into the totals.
func (t *Totals) Add(amount decimal.Decimal) {
	t.Total = t.Total.Add(amount)
	switch amount.Sign() {
	case 1:
		t.Inflow = t.Inflow.Add(amount)
	case -1:
		t.Outflow = t.Outflow.Add(amount)
	}
}

// Compute returns the totals over every external record in res, counting
// each record once however many outcomes it produced.
func Compute(res *reconcile.Result) Totals {
	var t Totals
	last := -1
	for _, o := range res.Outcomes {
		if !o.HasExternal() || o.Seq == last {
			continue
		}
		last = o.Seq
		t.Add(o.External.SignedAmount())
	}
	return t
}

// Reporter observes outcomes as a run streams them and renders the
// summary once the run is over. Stop replaces Finish when the run ended at
// an unmatched record.
type Reporter interface {
	reconcile.Sink
	Finish(res *reconcile.Result) error
	Stop(res *reconcile.Result) error
}

type constructor func(w io.Writer) Reporter

var formats = map[string]constructor{
	"text": func(w io.Writer) Reporter { return NewText(w) },
	"json": func(w io.Writer) Reporter { return NewJSON(w) },
	"csv":  func(w io.Writer) Reporter { return NewCSV(w) },
}

// New returns the reporter for format writing to w.
func New(format string, w io.Writer) (Reporter, error) {
	c, ok := formats[strings.ToLower(format)]
	if !ok {
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownFormat, format, strings.Join(Formats(), ", "))
	}
	return c(w), nil
}

// Formats returns the supported format names, sorted.
func Formats() []string {
	names := make([]string, 0, len(formats))
	for name := range formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func fixed(d decimal.Decimal) string {
	return d.StringFixed(model.Scale)
}
