// Package ledger reads the subset of the beancount plain-text format needed
// to pull postings for one account out of a personal ledger.
package ledger

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/wayex-ledger/internal/model"
)

// Transaction is a dated transaction directive and its postings.
type Transaction struct {
	Line      int
	Date      time.Time // midnight UTC
	Flag      string
	Payee     string
	Narration string // empty when the directive carries no narration
	Tags      []string
	Links     []string
	Postings  []Posting
}

// Posting is one leg of a transaction. Amount is nil when the ledger leaves
// it to be inferred.
type Posting struct {
	Line    int
	Flag    string
	Account model.AccountPath
	Amount  *Amount
}

// Amount is a signed number in a currency.
type Amount struct {
	Number   decimal.Decimal
	Currency string
}

// SyntaxError reports a line the parser could not understand.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

var dateLayouts = []string{"2006-01-02", "2006/01/02"}

// transaction flags; "txn" is also accepted.
const txnFlags = "*!&#?%PSTCURM"

// Load reads and parses the ledger file at path.
func Load(path string) ([]Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	defer f.Close()

	txns, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return txns, nil
}

// Parse reads transactions in file order. Directives other than
// transactions (open, close, balance, price, option, include and so on) are
// skipped, as are metadata and comment lines.
func Parse(r io.Reader) ([]Transaction, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var txns []Transaction
	var cur *Transaction
	flush := func() {
		if cur != nil {
			txns = append(txns, *cur)
			cur = nil
		}
	}

	lineNo := 0
	for sc.Scan() {
		lineNo++
		raw := sc.Text()
		if strings.TrimSpace(raw) == "" {
			flush()
			continue
		}
		line := stripComment(raw)
		if strings.TrimSpace(line) == "" {
			continue
		}

		indented := line[0] == ' ' || line[0] == '\t'
		if !indented {
			flush()
			if !startsWithDigit(line) {
				// option, plugin, include, pushtag, org-mode headings.
				continue
			}
			txn, err := parseDirective(line, lineNo)
			if err != nil {
				return nil, err
			}
			cur = txn
			continue
		}

		if cur == nil {
			// Metadata under a non-transaction directive.
			continue
		}
		p, ok, err := parsePosting(line, lineNo)
		if err != nil {
			return nil, err
		}
		if ok {
			cur.Postings = append(cur.Postings, p)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ledger: %w", err)
	}
	flush()
	return txns, nil
}

// parseDirective returns a Transaction for transaction directives and nil
// for every other dated directive.
func parseDirective(line string, lineNo int) (*Transaction, error) {
	toks, err := tokenize(line)
	if err != nil {
		return nil, &SyntaxError{Line: lineNo, Msg: err.Error()}
	}
	if len(toks) < 2 {
		return nil, &SyntaxError{Line: lineNo, Msg: "incomplete directive"}
	}

	date, err := parseDate(toks[0].text)
	if err != nil {
		return nil, &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("invalid date %q", toks[0].text)}
	}

	flag := toks[1].text
	if toks[1].quoted || !isTxnFlag(flag) {
		return nil, nil
	}
	if flag == "txn" {
		flag = "*"
	}

	txn := &Transaction{Line: lineNo, Date: date, Flag: flag}
	var strs []string
	for _, tok := range toks[2:] {
		switch {
		case tok.quoted:
			strs = append(strs, tok.text)
		case strings.HasPrefix(tok.text, "#"):
			txn.Tags = append(txn.Tags, tok.text[1:])
		case strings.HasPrefix(tok.text, "^"):
			txn.Links = append(txn.Links, tok.text[1:])
		default:
			return nil, &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("unexpected %q in transaction header", tok.text)}
		}
	}

	switch len(strs) {
	case 0:
	case 1:
		txn.Narration = strs[0]
	case 2:
		txn.Payee, txn.Narration = strs[0], strs[1]
	default:
		return nil, &SyntaxError{Line: lineNo, Msg: "too many strings in transaction header"}
	}
	return txn, nil
}

// parsePosting returns ok=false for metadata lines.
func parsePosting(line string, lineNo int) (Posting, bool, error) {
	toks, err := tokenize(line)
	if err != nil {
		return Posting{}, false, &SyntaxError{Line: lineNo, Msg: err.Error()}
	}
	if len(toks) == 0 {
		return Posting{}, false, nil
	}
	if isMetadataKey(toks[0]) {
		return Posting{}, false, nil
	}

	p := Posting{Line: lineNo}
	if !toks[0].quoted && len(toks[0].text) == 1 && isTxnFlag(toks[0].text) {
		p.Flag = toks[0].text
		toks = toks[1:]
	}
	if len(toks) == 0 {
		return Posting{}, false, &SyntaxError{Line: lineNo, Msg: "posting without account"}
	}

	account, err := model.ParseAccountPath(toks[0].text)
	if err != nil {
		return Posting{}, false, &SyntaxError{Line: lineNo, Msg: err.Error()}
	}
	p.Account = account
	toks = toks[1:]

	if len(toks) == 0 || isAnnotation(toks[0].text) {
		return p, true, nil
	}

	num, err := decimal.NewFromString(strings.ReplaceAll(toks[0].text, ",", ""))
	if err != nil {
		return Posting{}, false, &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("invalid amount %q", toks[0].text)}
	}
	if len(toks) < 2 || isAnnotation(toks[1].text) {
		return Posting{}, false, &SyntaxError{Line: lineNo, Msg: fmt.Sprintf("amount %s without currency", toks[0].text)}
	}
	// Cost and price annotations that follow are not needed.
	p.Amount = &Amount{Number: num, Currency: toks[1].text}
	return p, true, nil
}

type token struct {
	text   string
	quoted bool
}

// tokenize splits on whitespace, keeping double-quoted strings whole.
func tokenize(line string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '"':
			var sb strings.Builder
			j := i + 1
			for ; j < len(line) && line[j] != '"'; j++ {
				if line[j] == '\\' && j+1 < len(line) {
					j++
				}
				sb.WriteByte(line[j])
			}
			if j >= len(line) {
				return nil, fmt.Errorf("unterminated string")
			}
			toks = append(toks, token{text: sb.String(), quoted: true})
			i = j + 1
		default:
			j := i
			for j < len(line) && line[j] != ' ' && line[j] != '\t' && line[j] != '"' {
				j++
			}
			toks = append(toks, token{text: line[i:j]})
			i = j
		}
	}
	return toks, nil
}

// stripComment drops a trailing ";" comment that is not inside a string.
func stripComment(line string) string {
	inString := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if inString {
				i++
			}
		case '"':
			inString = !inString
		case ';':
			if !inString {
				return strings.TrimRight(line[:i], " \t")
			}
		}
	}
	return strings.TrimRight(line, " \t")
}

func parseDate(s string) (time.Time, error) {
	var err error
	for _, layout := range dateLayouts {
		var t time.Time
		t, err = time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

func isTxnFlag(s string) bool {
	return s == "txn" || (len(s) == 1 && strings.Contains(txnFlags, s))
}

func isMetadataKey(t token) bool {
	if t.quoted || len(t.text) < 2 || !strings.HasSuffix(t.text, ":") {
		return false
	}
	c := t.text[0]
	return c >= 'a' && c <= 'z'
}

func isAnnotation(s string) bool {
	return strings.HasPrefix(s, "{") || strings.HasPrefix(s, "@")
}

func startsWithDigit(s string) bool {
	return s[0] >= '0' && s[0] <= '9'
}
