package ledger

import (
	"fmt"
	"time"

	"github.com/cleared-dev/wayex-ledger/internal/model"
)

// LedgerIntegrityError reports a transaction touching the tracked account
// that breaks the assumptions extraction relies on. The ledger has to be
// fixed; nothing is coerced.
type LedgerIntegrityError struct {
	Line    int
	Date    time.Time
	Account model.AccountPath
	Reason  string
}

func (e *LedgerIntegrityError) Error() string {
	return fmt.Sprintf("ledger line %d (%s, %s): %s", e.Line, e.Date.Format(time.DateOnly), e.Account, e.Reason)
}

// Extract returns one LedgerRecord per transaction that posts to account,
// in ledger order. Only the first posting to account in a transaction is
// used. Transactions that do not touch account are skipped.
func Extract(txns []Transaction, account model.AccountPath, asset model.Asset) ([]model.LedgerRecord, error) {
	var recs []model.LedgerRecord
	for _, txn := range txns {
		p, ok := findPosting(txn, account)
		if !ok {
			continue
		}

		integrity := func(reason string, line int) error {
			return &LedgerIntegrityError{Line: line, Date: txn.Date, Account: account, Reason: reason}
		}

		if txn.Narration == "" {
			return nil, integrity("transaction has no narration", txn.Line)
		}
		if p.Amount == nil {
			return nil, integrity("posting has no amount", p.Line)
		}
		if p.Amount.Currency != string(asset) {
			return nil, integrity(fmt.Sprintf("posting currency %s, expected %s", p.Amount.Currency, asset), p.Line)
		}
		if !model.FitsScale(p.Amount.Number) {
			return nil, integrity(fmt.Sprintf("amount %s has more than %d decimal places", p.Amount.Number, model.Scale), p.Line)
		}

		recs = append(recs, model.LedgerRecord{
			Line:        p.Line,
			Date:        txn.Date,
			Description: txn.Narration,
			Asset:       asset,
			Amount:      p.Amount.Number,
		})
	}
	return recs, nil
}

func findPosting(txn Transaction, account model.AccountPath) (Posting, bool) {
	for _, p := range txn.Postings {
		if p.Account == account {
			return p, true
		}
	}
	return Posting{}, false
}
