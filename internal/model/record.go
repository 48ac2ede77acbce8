package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by asset amounts.
const Scale = 8

// ExternalRecord is one normalized row of the exchange export.
type ExternalRecord struct {
	Row         int // 1-based source line, header is row 1
	Timestamp   time.Time
	Asset       Asset
	Kind        TransactionKind
	Magnitude   decimal.Decimal // non-negative
	FiatAmount  decimal.Decimal // "Amount AUD", reporting only
	Description string
	Reference   string
}

// SignedAmount returns the magnitude signed by the transaction kind.
func (r ExternalRecord) SignedAmount() decimal.Decimal {
	return r.Kind.Apply(r.Magnitude)
}

// LedgerRecord is one posting against the tracked account.
type LedgerRecord struct {
	Line        int
	Date        time.Time // midnight UTC
	Description string
	Asset       Asset
	Amount      decimal.Decimal
}

// CivilDate truncates t to its calendar date in t's location and returns
// that date at midnight UTC.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns a - b in whole calendar days. Both are reduced to
// their civil dates first.
func DaysBetween(a, b time.Time) int {
	return int(CivilDate(a).Sub(CivilDate(b)).Hours() / 24)
}

// FitsScale reports whether d has at most Scale fractional digits.
func FitsScale(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(Scale))
}
