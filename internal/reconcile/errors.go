package reconcile

import (
	"errors"
	"fmt"
	"time"

	"github.com/cleared-dev/wayex-ledger/internal/model"
)

var (
	// ErrUnmatched is matched by every UnmatchedError.
	ErrUnmatched = errors.New("unmatched external record")
	// ErrInvalidWindow is returned for a window whose minimum exceeds its maximum.
	ErrInvalidWindow = errors.New("invalid date window")
	// ErrUnknownTieBreak is returned for an unrecognised tie-break policy.
	ErrUnknownTieBreak = errors.New("unknown tie-break policy")
)

// UnmatchedError stops a run at the first external record with real money
// movement that no ledger record accounts for.
type UnmatchedError struct {
	Record model.ExternalRecord
}

func (e *UnmatchedError) Error() string {
	return fmt.Sprintf("could not find ledger record for row %d (%s %s %s)",
		e.Record.Row,
		e.Record.Timestamp.Format(time.DateTime),
		e.Record.Description,
		e.Record.SignedAmount().StringFixed(model.Scale))
}

func (e *UnmatchedError) Is(target error) bool { return target == ErrUnmatched }
