package ledger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/wayex-ledger/internal/model"
)

const tracked = model.AccountPath("Assets:Cash-On-Hand:CryptoSpend:BTC")

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestLoadTestdata(t *testing.T) {
	txns, err := Load("../../testdata/ledger.beancount")
	require.NoError(t, err)
	require.Len(t, txns, 5, "open and balance directives are skipped")

	first := txns[0]
	assert.Equal(t, date(2024, 1, 9), first.Date)
	assert.Equal(t, "*", first.Flag)
	assert.Equal(t, "Wallet", first.Payee)
	assert.Equal(t, "Top up spend wallet", first.Narration)
	assert.Equal(t, []string{"crypto"}, first.Tags)
	require.Len(t, first.Postings, 2)
	assert.Equal(t, tracked, first.Postings[0].Account)
	assert.Equal(t, "0.00100000", first.Postings[0].Amount.Number.StringFixed(model.Scale))
	assert.Equal(t, "BTC", first.Postings[0].Amount.Currency)

	// Metadata is not a posting and the inferred leg has no amount.
	refund := txns[1]
	assert.Equal(t, "Refund Coffee Shop", refund.Narration)
	assert.Empty(t, refund.Payee)
	require.Len(t, refund.Postings, 2)
	assert.Nil(t, refund.Postings[1].Amount)

	coffee := txns[3]
	assert.Equal(t, "!", coffee.Flag)
	assert.Equal(t, []string{"receipt-0005"}, coffee.Links)
	assert.Equal(t, "-0.00050000", coffee.Postings[0].Amount.Number.StringFixed(model.Scale))

	// "txn" keyword is a cleared transaction.
	assert.Equal(t, "*", txns[4].Flag)
}

func TestParse_CommentsInsideTransaction(t *testing.T) {
	src := `2024-01-09 * "Top up" ; trailing comment
  ; a comment line does not end the transaction
  Assets:Cash-On-Hand:CryptoSpend:BTC   0.001 BTC ; note
  Assets:Crypto:Cold
`
	txns, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Len(t, txns[0].Postings, 2)
}

func TestParse_QuotedSemicolon(t *testing.T) {
	src := `2024-01-09 * "Coffee; large" "Latte \"oat\""
  Assets:Cash-On-Hand:CryptoSpend:BTC   -0.001 BTC
`
	txns, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "Coffee; large", txns[0].Payee)
	assert.Equal(t, `Latte "oat"`, txns[0].Narration)
}

func TestParse_PostingFlagAndCost(t *testing.T) {
	src := `2024/01/09 *
  ! Assets:Cash-On-Hand:CryptoSpend:BTC   1,000.5 BTC {30000 AUD}
  Assets:Bank:Checking
`
	txns, err := Parse(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Empty(t, txns[0].Narration)
	p := txns[0].Postings[0]
	assert.Equal(t, "!", p.Flag)
	assert.Equal(t, "1000.5", p.Amount.Number.String())
}

func TestParse_SyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"bad date", "2024-13-01 * \"x\"\n", 1},
		{"unterminated string", "2024-01-01 * \"x\n", 1},
		{"too many strings", "2024-01-01 * \"a\" \"b\" \"c\"\n", 1},
		{"bad account", "2024-01-01 * \"x\"\n  Cash:BTC 1 BTC\n", 2},
		{"bad amount", "2024-01-01 * \"x\"\n  Assets:Cash 1+2 BTC\n", 2},
		{"missing currency", "2024-01-01 * \"x\"\n  Assets:Cash 1\n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tt.src))
			require.Error(t, err)
			var se *SyntaxError
			require.True(t, errors.As(err, &se), "expected SyntaxError, got %v", err)
			assert.Equal(t, tt.line, se.Line)
		})
	}
}

func TestParse_Empty(t *testing.T) {
	txns, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, txns)
}

func TestLoad_NotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.beancount"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
