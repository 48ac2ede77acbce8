package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// TransactionKind is the exchange's categorical transaction type.
type TransactionKind string

const (
	KindReceived       TransactionKind = "Received"
	KindSpent          TransactionKind = "Spent"
	KindSent           TransactionKind = "Sent"
	KindSell           TransactionKind = "Sell"
	KindBankWithdrawal TransactionKind = "Bank Withdrawal (BSB)"
	KindCardPurchase   TransactionKind = "Card (Purchase)"
	KindCardRefund     TransactionKind = "Card (Refund)"
	KindCryptoDeposit  TransactionKind = "Crypto Deposit"
)

// AllKinds lists every kind the exporter emits.
var AllKinds = []TransactionKind{
	KindReceived,
	KindSpent,
	KindSent,
	KindSell,
	KindBankWithdrawal,
	KindCardPurchase,
	KindCardRefund,
	KindCryptoDeposit,
}

// Polarity is the sign applied to a raw magnitude: +1 inbound, -1 outbound.
type Polarity int

const (
	Inbound  Polarity = 1
	Outbound Polarity = -1
)

var polarities = map[TransactionKind]Polarity{
	KindReceived:       Inbound,
	KindCryptoDeposit:  Inbound,
	KindCardRefund:     Inbound,
	KindSpent:          Outbound,
	KindSent:           Outbound,
	KindSell:           Outbound,
	KindBankWithdrawal: Outbound,
	KindCardPurchase:   Outbound,
}

// ValidateKinds checks that every kind in AllKinds has a polarity and that
// the table has no stray entries.
func ValidateKinds() error {
	for _, k := range AllKinds {
		if _, ok := polarities[k]; !ok {
			return fmt.Errorf("transaction kind %q has no polarity", k)
		}
	}
	if len(polarities) != len(AllKinds) {
		return fmt.Errorf("polarity table has %d entries, expected %d", len(polarities), len(AllKinds))
	}
	return nil
}

// ParseKind returns the kind named s. Unknown names are an error.
func ParseKind(s string) (TransactionKind, error) {
	k := TransactionKind(s)
	if _, ok := polarities[k]; !ok {
		return "", fmt.Errorf("unknown transaction kind %q", s)
	}
	return k, nil
}

// Polarity returns the sign for k. It panics on a kind ParseKind would reject.
func (k TransactionKind) Polarity() Polarity {
	p, ok := polarities[k]
	if !ok {
		panic("no polarity for transaction kind " + string(k))
	}
	return p
}

// Apply signs magnitude according to k.
func (k TransactionKind) Apply(magnitude decimal.Decimal) decimal.Decimal {
	if k.Polarity() == Outbound {
		return magnitude.Neg()
	}
	return magnitude
}
