package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cleared-dev/wayex-ledger/internal/reconcile"
)

// Header is the CSV header for outcome rows.
const Header = "outcome,row,timestamp,type,description,amount,running_total,ledger_line,ledger_date,ledger_description,ledger_amount,day_diff"

const (
	numFields            = 12
	colOutcome           = 0
	colRow               = 1
	colTimestamp         = 2
	colType              = 3
	colDescription       = 4
	colAmount            = 5
	colRunningTotal      = 6
	colLedgerLine        = 7
	colLedgerDate        = 8
	colLedgerDescription = 9
	colLedgerAmount      = 10
	colDayDiff           = 11
)

// MarshalOutcome converts an outcome to a CSV row. running is the running
// total after the outcome's external record; it is ignored for outcomes
// without one.
func MarshalOutcome(o reconcile.Outcome, running Totals) []string {
	row := make([]string, numFields)
	row[colOutcome] = string(o.Kind)
	if o.HasExternal() {
		ext := o.External
		row[colRow] = strconv.Itoa(ext.Row)
		row[colTimestamp] = ext.Timestamp.Format(time.RFC3339)
		row[colType] = string(ext.Kind)
		row[colDescription] = ext.Description
		row[colAmount] = fixed(ext.SignedAmount())
		row[colRunningTotal] = fixed(running.Total)
	}
	if o.HasLedger() {
		row[colLedgerLine] = strconv.Itoa(o.Ledger.Line)
		row[colLedgerDate] = o.Ledger.Date.Format(time.DateOnly)
		row[colLedgerDescription] = o.Ledger.Description
		row[colLedgerAmount] = fixed(o.Ledger.Amount)
	}
	if o.Kind == reconcile.Matched || o.Kind == reconcile.DateMismatch {
		row[colDayDiff] = strconv.Itoa(o.DayDiff)
	}
	return row
}

// CSV streams one row per outcome.
type CSV struct {
	cw      *csv.Writer
	totals  Totals
	lastSeq int
	wrote   bool
}

// NewCSV returns a CSV reporter writing to w.
func NewCSV(w io.Writer) *CSV {
	return &CSV{cw: csv.NewWriter(w), lastSeq: -1}
}

// Observe writes o, preceded by the header on the first call.
func (c *CSV) Observe(o reconcile.Outcome) error {
	if err := c.writeHeader(); err != nil {
		return err
	}
	if o.HasExternal() && o.Seq != c.lastSeq {
		c.lastSeq = o.Seq
		c.totals.Add(o.External.SignedAmount())
	}
	if err := c.cw.Write(MarshalOutcome(o, c.totals)); err != nil {
		return fmt.Errorf("writing outcome: %w", err)
	}
	c.cw.Flush()
	return c.cw.Error()
}

// Finish flushes the writer. A run with no outcomes still gets a header.
func (c *CSV) Finish(_ *reconcile.Result) error {
	if err := c.writeHeader(); err != nil {
		return err
	}
	c.cw.Flush()
	return c.cw.Error()
}

// Stop flushes the rows written so far.
func (c *CSV) Stop(_ *reconcile.Result) error {
	c.cw.Flush()
	return c.cw.Error()
}

func (c *CSV) writeHeader() error {
	if c.wrote {
		return nil
	}
	c.wrote = true
	if err := c.cw.Write(strings.Split(Header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	return nil
}
