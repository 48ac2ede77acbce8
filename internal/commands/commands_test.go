package commands_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/wayex-ledger/internal/report"
)

var binaryPath string

const (
	wayexFixture    = "../../testdata/wayex.csv"
	wayexUTCFixture = "../../testdata/wayex_utc.csv"
	ledgerFixture   = "../../testdata/ledger.beancount"
)

func TestMain(m *testing.M) {
	// Build the binary once for all tests.
	tmpDir, err := os.MkdirTemp("", "wayex-ledger-test-*")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(tmpDir)

	binaryPath = filepath.Join(tmpDir, "wayex-ledger")
	cmd := exec.Command("go", "build", "-o", binaryPath, "../../cmd/wayex-ledger")
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		panic("failed to build binary: " + err.Error())
	}

	os.Exit(m.Run())
}

func run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	cmd := exec.Command(binaryPath, args...)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	err = cmd.Run()
	return out.String(), errOut.String(), err
}

func reconcileArgs(extra ...string) []string {
	args := []string{"reconcile", "-w", wayexFixture, "-l", ledgerFixture, "--timezone", "UTC"}
	return append(args, extra...)
}

func writeLedger(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.beancount")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestBuildVersion(t *testing.T) {
	for _, flag := range []string{"--build-version", "-b"} {
		out, _, err := run(t, flag)
		require.NoError(t, err)
		assert.Equal(t, "wayex_ledger vdev (unknown unknown)\n", out)
	}
}

func TestReconcile_TextReport(t *testing.T) {
	out, stderr, err := run(t, reconcileArgs()...)
	require.NoError(t, err, stderr)

	want := strings.Join([]string{
		fmt.Sprintf("2024-01-10 09:15:00 %-40s 0.00100000 0.00100000", "Deposit from wallet"),
		fmt.Sprintf("2024-01-09          %-40s 0.00100000", "Top up spend wallet"),
		"",
		fmt.Sprintf("2024-01-12 14:10:00 %-40s 0.00000000 0.00100000", "Fee adjustment"),
		"",
		fmt.Sprintf("2024-01-15 08:30:00 %-40s 0.00010000 0.00110000", "Refund Coffee Shop"),
		fmt.Sprintf("2024-01-14          %-40s 0.00010000", "Refund Coffee Shop"),
		"",
		fmt.Sprintf("2024-01-20 16:45:00 %-40s -0.00050000 0.00060000", "Coffee Shop"),
		fmt.Sprintf("2024-01-20          %-40s -0.00050000", "Flat white"),
		"",
		"Unaccounted ledger records:",
		fmt.Sprintf("%-24s %-40s -0.00020000", "2024-02-02", "Unknown spend"),
		"",
		"spent -0.00050000",
		"paid 0.00110000",
		"total 0.00060000",
		"",
	}, "\n")
	assert.Equal(t, want, out)
	assert.Empty(t, stderr)
}

func TestReconcile_UTCRevision(t *testing.T) {
	out, stderr, err := run(t, "reconcile", "-w", wayexUTCFixture, "-l", ledgerFixture,
		"--revision", "wayex-utc", "--timezone", "UTC", "--format", "json")
	require.NoError(t, err, stderr)

	var doc report.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Unaccounted, 2)
	assert.Equal(t, "Refund Coffee Shop", doc.Unaccounted[0].Description)
	assert.Equal(t, "Unknown spend", doc.Unaccounted[1].Description)
	assert.Equal(t, "0.00050000", doc.Totals.Total)
}

func TestReconcile_StopsAtUnmatched(t *testing.T) {
	ledgerPath := writeLedger(t, `2024-01-09 * "Top up spend wallet"
  Assets:Cash-On-Hand:CryptoSpend:BTC   0.00100000 BTC
  Assets:Crypto:Cold
`)
	out, stderr, err := run(t, "reconcile", "-w", wayexFixture, "-l", ledgerPath, "--timezone", "UTC")
	require.Error(t, err)
	assert.Contains(t, stderr, "error: could not find ledger record for row 4")
	assert.NotContains(t, out, "Unaccounted ledger records:")
}

func TestReconcile_StoppedRunStreamsCSV(t *testing.T) {
	ledgerPath := writeLedger(t, `2024-01-09 * "Top up spend wallet"
  Assets:Cash-On-Hand:CryptoSpend:BTC   0.00100000 BTC
  Assets:Crypto:Cold
`)
	out, stderr, err := run(t, "reconcile", "-w", wayexFixture, "-l", ledgerPath, "--timezone", "UTC", "--format", "csv")
	require.Error(t, err)
	assert.Contains(t, stderr, "could not find ledger record for row 4")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4, "header, match, zero amount, unmatched")
	assert.Equal(t, report.Header, lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "matched,6,"))
	assert.True(t, strings.HasPrefix(lines[3], "unmatched,4,"))
}

func TestReconcile_StoppedRunWritesPartialJSON(t *testing.T) {
	ledgerPath := writeLedger(t, `2024-01-09 * "Top up spend wallet"
  Assets:Cash-On-Hand:CryptoSpend:BTC   0.00100000 BTC
  Assets:Crypto:Cold
`)
	out, _, err := run(t, "reconcile", "-w", wayexFixture, "-l", ledgerPath, "--timezone", "UTC", "--format", "json")
	require.Error(t, err)

	var doc report.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.True(t, doc.Stopped)
	require.Len(t, doc.Unmatched, 1)
	assert.Equal(t, 4, doc.Unmatched[0].Row)
}

func TestReconcile_ContinueOnUnmatched(t *testing.T) {
	ledgerPath := writeLedger(t, `2024-01-09 * "Top up spend wallet"
  Assets:Cash-On-Hand:CryptoSpend:BTC   0.00100000 BTC
  Assets:Crypto:Cold
`)
	out, stderr, err := run(t, "reconcile", "-w", wayexFixture, "-l", ledgerPath,
		"--timezone", "UTC", "--continue-on-unmatched")
	require.Error(t, err)
	assert.Contains(t, stderr, "2 external records without a ledger record")
	assert.Contains(t, out, "Unmatched external records:")
	assert.Contains(t, out, "total 0.00060000")
}

func TestReconcile_DateMismatchIsLogged(t *testing.T) {
	ledgerPath := writeLedger(t, `2023-06-01 * "Stale top up"
  Assets:Cash-On-Hand:CryptoSpend:BTC   0.00100000 BTC
  Assets:Crypto:Cold

2024-01-09 * "Top up spend wallet"
  Assets:Cash-On-Hand:CryptoSpend:BTC   0.00100000 BTC
  Assets:Crypto:Cold

2024-01-14 * "Refund"
  Assets:Cash-On-Hand:CryptoSpend:BTC   0.00010000 BTC
  Expenses:Food

2024-01-20 * "Flat white"
  Assets:Cash-On-Hand:CryptoSpend:BTC  -0.00050000 BTC
  Expenses:Food
`)
	out, stderr, err := run(t, "reconcile", "-w", wayexFixture, "-l", ledgerPath, "--timezone", "UTC")
	require.NoError(t, err, stderr)
	assert.Contains(t, out, "Date mismatch: 223 2023-06-01")
	assert.Contains(t, stderr, "date mismatch")
}

func TestReconcile_CSVReport(t *testing.T) {
	out, stderr, err := run(t, reconcileArgs("--format", "csv")...)
	require.NoError(t, err, stderr)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Equal(t, report.Header, lines[0])
	assert.Len(t, lines, 6, "header, three matches, one zero amount, one unaccounted")
	assert.True(t, strings.HasPrefix(lines[len(lines)-1], "unaccounted,"))
}

func TestReconcile_ClosestWindowFlags(t *testing.T) {
	// A [0, 0] window leaves only same-day matches.
	out, _, err := run(t, reconcileArgs("--min-days", "0", "--max-days", "0",
		"--tie-break", "closest", "--continue-on-unmatched")...)
	require.Error(t, err)
	assert.Contains(t, out, "Date mismatch: 1 2024-01-09")
	assert.Contains(t, out, fmt.Sprintf("2024-01-20          %-40s -0.00050000", "Flat white"))
}

func TestReconcile_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"tie break", []string{"--tie-break", "random"}, "unknown tie-break policy"},
		{"window", []string{"--min-days", "5", "--max-days", "1"}, "invalid date window"},
		{"revision", []string{"--revision", "kraken"}, "unknown source revision"},
		{"format", []string{"--format", "xml"}, "unknown output format"},
		{"account", []string{"--account", "Wallet"}, "ledger.account"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, err := run(t, reconcileArgs(tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, stderr, "error: invalid configuration")
			assert.Contains(t, stderr, tt.want)
		})
	}
}

func TestReconcile_MissingFiles(t *testing.T) {
	_, stderr, err := run(t, "reconcile", "-w", "nope.csv", "-l", ledgerFixture)
	require.Error(t, err)
	assert.Contains(t, stderr, "error: opening export")

	_, stderr, err = run(t, "reconcile", "-w", wayexFixture)
	require.Error(t, err)
	assert.Contains(t, stderr, "ledger-file")
}

func TestReconcile_LedgerIntegrityError(t *testing.T) {
	ledgerPath := writeLedger(t, `2024-01-09 * "Top up"
  Assets:Cash-On-Hand:CryptoSpend:BTC   60.00 AUD
  Assets:Bank:Checking
`)
	_, stderr, err := run(t, "reconcile", "-w", wayexFixture, "-l", ledgerPath, "--timezone", "UTC")
	require.Error(t, err)
	assert.Contains(t, stderr, "posting currency AUD, expected BTC")
}

func TestReconcile_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("source:\n  timezone: UTC\noutput:\n  format: json\n"), 0o644))

	out, stderr, err := run(t, "reconcile", "-w", wayexFixture, "-l", ledgerFixture, "--config", cfgPath)
	require.NoError(t, err, stderr)

	var doc report.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, 4, doc.PoolSize)
	assert.Equal(t, "-0.00050000", doc.Totals.Outflow)
}

func TestInit_WritesConfig(t *testing.T) {
	dir := t.TempDir()
	out, _, err := run(t, "init", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "wayex-ledger.yaml")

	data, err := os.ReadFile(filepath.Join(dir, "wayex-ledger.yaml"))
	require.NoError(t, err)
	contents := string(data)
	assert.Contains(t, contents, "revision: wayex")
	assert.Contains(t, contents, "account: Assets:Cash-On-Hand:CryptoSpend:BTC")
	assert.Contains(t, contents, "min_days: -2")
	assert.Contains(t, contents, "max_days: 14")

	_, stderr, err := run(t, "init", dir)
	require.Error(t, err, "init must not overwrite")
	assert.Contains(t, stderr, "already exists")

	_, _, err = run(t, "init", dir, "--force", "--revision", "wayex-utc")
	require.NoError(t, err)
	data, err = os.ReadFile(filepath.Join(dir, "wayex-ledger.yaml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "min_days: -14")
}

func TestInit_UnknownRevision(t *testing.T) {
	_, stderr, err := run(t, "init", t.TempDir(), "--revision", "kraken")
	require.Error(t, err)
	assert.Contains(t, stderr, "unknown source revision")
}

func TestHistory_RecordListShow(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")

	_, stderr, err := run(t, reconcileArgs("--history", db)...)
	require.NoError(t, err, stderr)

	out, stderr, err := run(t, "history", "list", "--history", db)
	require.NoError(t, err, stderr)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	fields := strings.Fields(lines[1])
	runID := fields[0]
	assert.Contains(t, lines[1], "complete")
	assert.Contains(t, lines[1], "0.00060000")

	out, stderr, err = run(t, "history", "show", runID[:8], "--history", db)
	require.NoError(t, err, stderr)
	assert.Contains(t, out, runID)
	assert.Contains(t, out, "3 matched, 1 zero, 0 date mismatches, 0 unmatched, 1 unaccounted of 4 ledger records")
	assert.Contains(t, out, "spent -0.00050000 paid 0.00110000 total 0.00060000")
	assert.Contains(t, out, "Unknown spend")
}

func TestHistory_RecordsIncompleteRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")
	ledgerPath := writeLedger(t, `2024-01-09 * "Top up spend wallet"
  Assets:Cash-On-Hand:CryptoSpend:BTC   0.00100000 BTC
  Assets:Crypto:Cold
`)
	_, _, err := run(t, "reconcile", "-w", wayexFixture, "-l", ledgerPath, "--timezone", "UTC", "--history", db)
	require.Error(t, err)

	out, stderr, err := run(t, "history", "list", "--history", db)
	require.NoError(t, err, stderr)
	assert.Contains(t, out, "incomplete")
}

func TestHistory_ShowUnknownRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")
	_, stderr, err := run(t, "history", "show", "missing", "--history", db)
	require.Error(t, err)
	assert.Contains(t, stderr, "run not found")
}

func TestHistory_RequiresDatabase(t *testing.T) {
	_, stderr, err := run(t, "history", "list")
	require.Error(t, err)
	assert.Contains(t, stderr, "no history database")
}
