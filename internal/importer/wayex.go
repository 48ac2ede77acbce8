package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/wayex-ledger/internal/model"
)

// Column headers of the Wayex transaction export.
const (
	ColTime         = "Date/Time"
	ColType         = "Type"
	ColAsset        = "Asset"
	ColAmountFiat   = "Amount AUD"
	ColAmountCrypto = "Amount Crypto"
	ColDetails      = "Details"
	ColReference    = "Reference"
)

var requiredCols = []string{ColTime, ColType, ColAsset, ColAmountFiat, ColAmountCrypto, ColDetails, ColReference}

// wayexTimeLayouts cover the free-text timestamp, e.g. "Wed, 10 Jan 2024, 09:15 am".
var wayexTimeLayouts = []string{
	"Mon, 02 Jan 2006, 03:04 pm",
	"Mon, 2 Jan 2006, 3:04 pm",
}

// WayexParser parses Wayex transaction exports. The two export revisions
// differ only in how the Date/Time column is written.
type WayexParser struct {
	format    string
	loc       *time.Location
	assets    model.AssetSet
	parseTime func(s string, loc *time.Location) (time.Time, error)
}

// NewWayexParser handles the original export, whose timestamps are
// free-text local times.
func NewWayexParser(loc *time.Location, assets model.AssetSet) *WayexParser {
	return &WayexParser{format: "wayex", loc: loc, assets: assets, parseTime: parseLocalTime}
}

// NewWayexUTCParser handles the later export, whose timestamps are RFC 3339
// instants.
func NewWayexUTCParser(loc *time.Location, assets model.AssetSet) *WayexParser {
	return &WayexParser{format: "wayex-utc", loc: loc, assets: assets, parseTime: parseInstant}
}

// Format returns the parser name.
func (p *WayexParser) Format() string { return p.format }

// Parse reads the export and returns its records in file order.
func (p *WayexParser) Parse(r io.Reader) ([]model.ExternalRecord, error) {
	cr := csv.NewReader(r)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading wayex CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	cols, err := indexColumns(records[0])
	if err != nil {
		return nil, &RecordParseError{Row: 1, Err: err}
	}

	var recs []model.ExternalRecord
	for i, rec := range records[1:] {
		er, err := p.parseRow(cols, rec)
		if err != nil {
			var rpe *RecordParseError
			if errors.As(err, &rpe) {
				rpe.Row = i + 2
			}
			return nil, err
		}
		er.Row = i + 2
		recs = append(recs, er)
	}
	return recs, nil
}

func indexColumns(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	for _, c := range requiredCols {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}
	return cols, nil
}

func (p *WayexParser) parseRow(cols map[string]int, rec []string) (model.ExternalRecord, error) {
	field := func(name string) string { return strings.TrimSpace(rec[cols[name]]) }

	ts, err := p.parseTime(field(ColTime), p.loc)
	if err != nil {
		return model.ExternalRecord{}, &RecordParseError{Field: ColTime, Value: field(ColTime), Err: err}
	}

	kind, err := model.ParseKind(field(ColType))
	if err != nil {
		return model.ExternalRecord{}, &RecordParseError{Field: ColType, Value: field(ColType), Err: err}
	}

	asset, err := p.assets.Parse(field(ColAsset))
	if err != nil {
		return model.ExternalRecord{}, &RecordParseError{Field: ColAsset, Value: field(ColAsset), Err: err}
	}

	magnitude, err := parseMagnitude(field(ColAmountCrypto))
	if err != nil {
		return model.ExternalRecord{}, &RecordParseError{Field: ColAmountCrypto, Value: field(ColAmountCrypto), Err: err}
	}

	fiat, err := parseOptionalDecimal(field(ColAmountFiat))
	if err != nil {
		return model.ExternalRecord{}, &RecordParseError{Field: ColAmountFiat, Value: field(ColAmountFiat), Err: err}
	}

	return model.ExternalRecord{
		Timestamp:   ts,
		Asset:       asset,
		Kind:        kind,
		Magnitude:   magnitude,
		FiatAmount:  fiat,
		Description: rec[cols[ColDetails]],
		Reference:   rec[cols[ColReference]],
	}, nil
}

func parseLocalTime(s string, loc *time.Location) (time.Time, error) {
	var firstErr error
	for _, layout := range wayexTimeLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

func parseInstant(s string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.In(loc), nil
}

func parseOptionalDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// parseMagnitude accepts an empty cell as zero. Amounts must be
// non-negative and fit the asset scale.
func parseMagnitude(s string) (decimal.Decimal, error) {
	d, err := parseOptionalDecimal(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, errors.New("magnitude must not be negative")
	}
	if !model.FitsScale(d) {
		return decimal.Zero, fmt.Errorf("more than %d decimal places", model.Scale)
	}
	return d, nil
}
