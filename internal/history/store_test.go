package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/wayex-ledger/internal/model"
	"github.com/cleared-dev/wayex-ledger/internal/reconcile"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func sampleResult(t *testing.T) *reconcile.Result {
	t.Helper()
	day := func(d int) time.Time { return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC) }
	ext := []model.ExternalRecord{
		{Row: 3, Timestamp: day(10).Add(9 * time.Hour), Asset: model.AssetBTC, Kind: model.KindReceived,
			Magnitude: decimal.RequireFromString("0.001"), Description: "Deposit"},
		{Row: 2, Timestamp: day(12), Asset: model.AssetBTC, Kind: model.KindSent,
			Magnitude: decimal.Zero, Description: "Nothing"},
	}
	ledger := []model.LedgerRecord{
		{Line: 7, Date: day(9), Description: "Top up", Asset: model.AssetBTC, Amount: decimal.RequireFromString("0.001")},
		{Line: 12, Date: day(30), Description: "Unknown", Asset: model.AssetBTC, Amount: decimal.RequireFromString("-0.0002")},
	}
	res, err := reconcile.New(reconcile.DefaultConfig(), reconcile.NewPool(ledger), zerolog.Nop()).Run(ext, nil)
	require.NoError(t, err)
	return res
}

func sampleRun() *Run {
	return &Run{
		WayexFile:  "wayex.csv",
		LedgerFile: "main.beancount",
		Revision:   "wayex",
		Asset:      "BTC",
		Account:    "Assets:Cash-On-Hand:CryptoSpend:BTC",
		Window:     reconcile.Window{MinDays: -2, MaxDays: 14},
		TieBreak:   "first",
		Status:     StatusComplete,
	}
}

func TestSaveAndGetRun(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)

	run := sampleRun()
	require.NoError(t, s.SaveRun(ctx, run, sampleResult(t)))
	require.NotEmpty(t, run.ID)
	assert.Equal(t, 1, run.Matched)
	assert.Equal(t, 1, run.ZeroAmount)
	assert.Equal(t, 1, run.Unaccounted)

	got, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "main.beancount", got.LedgerFile)
	assert.Equal(t, reconcile.Window{MinDays: -2, MaxDays: 14}, got.Window)
	assert.Equal(t, 2, got.PoolSize)
	assert.Equal(t, 1, got.Matched)
	assert.Equal(t, 0, got.Unmatched)
	assert.True(t, got.StartedAt.Equal(run.StartedAt))
	assert.Equal(t, "0.00100000", got.Totals.Total.StringFixed(model.Scale))
	assert.Equal(t, "0.00100000", got.Totals.Inflow.StringFixed(model.Scale))
	assert.True(t, got.Totals.Outflow.IsZero())
}

func TestGetRun_Prefix(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)

	run := sampleRun()
	require.NoError(t, s.SaveRun(ctx, run, sampleResult(t)))

	got, err := s.GetRun(ctx, run.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
}

func TestGetRun_PrefixIsLiteral(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)

	run := sampleRun()
	require.NoError(t, s.SaveRun(ctx, run, sampleResult(t)))

	for _, prefix := range []string{"%", "_", run.ID[:4] + "%", "________", ""} {
		_, err := s.GetRun(ctx, prefix)
		assert.ErrorIs(t, err, ErrRunNotFound, "prefix %q", prefix)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	s, _ := openTemp(t)
	_, err := s.GetRun(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestOutcomes(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)

	run := sampleRun()
	require.NoError(t, s.SaveRun(ctx, run, sampleResult(t)))

	rows, err := s.Outcomes(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, reconcile.Matched, rows[0].Kind)
	assert.Equal(t, 3, rows[0].Row)
	assert.Equal(t, "0.00100000", rows[0].Amount)
	assert.Equal(t, 7, rows[0].LedgerLine)
	assert.Equal(t, "2024-01-09", rows[0].LedgerDate)
	assert.Equal(t, 1, rows[0].DayDiff)

	assert.Equal(t, reconcile.ZeroAmount, rows[1].Kind)
	assert.Zero(t, rows[1].LedgerLine)

	assert.Equal(t, reconcile.Unaccounted, rows[2].Kind)
	assert.Equal(t, -1, rows[2].Seq)
	assert.Zero(t, rows[2].Row)
	assert.Equal(t, "-0.00020000", rows[2].LedgerAmount)
}

func TestListRuns_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		run := sampleRun()
		run.StartedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, s.SaveRun(ctx, run, sampleResult(t)))
		ids = append(ids, run.ID)
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[0], runs[2].ID)

	limited, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMigrations_Idempotent(t *testing.T) {
	ctx := context.Background()
	s, path := openTemp(t)
	run := sampleRun()
	require.NoError(t, s.SaveRun(ctx, run, sampleResult(t)))
	require.NoError(t, s.Close())

	reopened, err := Open(path, zerolog.Nop())
	require.NoError(t, err)
	defer reopened.Close()

	var count int
	require.NoError(t, reopened.db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.Equal(t, len(allMigrations), count)

	_, err = reopened.GetRun(ctx, run.ID)
	assert.NoError(t, err)
}
