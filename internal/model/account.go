package model

import (
	"fmt"
	"strings"
)

// AccountType is the root component of a ledger account path.
type AccountType string

const (
	AccountTypeAssets      AccountType = "Assets"
	AccountTypeLiabilities AccountType = "Liabilities"
	AccountTypeEquity      AccountType = "Equity"
	AccountTypeIncome      AccountType = "Income"
	AccountTypeExpenses    AccountType = "Expenses"
)

var accountTypes = map[AccountType]bool{
	AccountTypeAssets:      true,
	AccountTypeLiabilities: true,
	AccountTypeEquity:      true,
	AccountTypeIncome:      true,
	AccountTypeExpenses:    true,
}

// AccountPath is a colon-separated ledger account name,
// e.g. "Assets:Cash-On-Hand:CryptoSpend:BTC".
type AccountPath string

// ParseAccountPath validates s as an account path with a known root type.
func ParseAccountPath(s string) (AccountPath, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return "", fmt.Errorf("account %q: expected at least two components", s)
	}
	if !accountTypes[AccountType(parts[0])] {
		return "", fmt.Errorf("account %q: unknown root %q", s, parts[0])
	}
	for _, p := range parts[1:] {
		if p == "" {
			return "", fmt.Errorf("account %q: empty component", s)
		}
		if strings.ContainsAny(p, " \t") {
			return "", fmt.Errorf("account %q: whitespace in component %q", s, p)
		}
	}
	return AccountPath(s), nil
}

// Type returns the root component.
func (a AccountPath) Type() AccountType {
	root, _, _ := strings.Cut(string(a), ":")
	return AccountType(root)
}

func (a AccountPath) String() string { return string(a) }
