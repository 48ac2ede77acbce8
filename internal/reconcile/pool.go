package reconcile

import "github.com/cleared-dev/wayex-ledger/internal/model"

// Pool is the set of ledger records available for matching. Entries keep
// their insertion order; a consumed entry is tombstoned, never removed, so
// indexes stay stable while scanning.
type Pool struct {
	entries   []poolEntry
	available int
}

type poolEntry struct {
	rec      model.LedgerRecord
	consumed bool
}

// NewPool copies recs into a new pool, all available.
func NewPool(recs []model.LedgerRecord) *Pool {
	entries := make([]poolEntry, len(recs))
	for i, r := range recs {
		entries[i] = poolEntry{rec: r}
	}
	return &Pool{entries: entries, available: len(recs)}
}

// Len returns the number of records the pool was created with.
func (p *Pool) Len() int { return len(p.entries) }

// Available returns the number of records not yet consumed.
func (p *Pool) Available() int { return p.available }

// take consumes entry i. Taking a consumed entry panics.
func (p *Pool) take(i int) model.LedgerRecord {
	e := &p.entries[i]
	if e.consumed {
		panic("reconcile: ledger record taken twice")
	}
	e.consumed = true
	p.available--
	return e.rec
}

// Remaining returns the available records in pool order.
func (p *Pool) Remaining() []model.LedgerRecord {
	out := make([]model.LedgerRecord, 0, p.available)
	for _, e := range p.entries {
		if !e.consumed {
			out = append(out, e.rec)
		}
	}
	return out
}
