package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/wayex-ledger/internal/logging"
	"github.com/cleared-dev/wayex-ledger/internal/model"
	"github.com/cleared-dev/wayex-ledger/internal/reconcile"
	"github.com/cleared-dev/wayex-ledger/internal/report"
)

// FileName is the config file written by init and read by default.
const FileName = "wayex-ledger.yaml"

// DefaultAccount is the ledger account the exchange's spend wallet is
// booked to.
const DefaultAccount = "Assets:Cash-On-Hand:CryptoSpend:BTC"

// ErrUnknownRevision is returned for a source revision with no parser.
var ErrUnknownRevision = errors.New("unknown source revision")

// revisionWindows are the default date windows per export revision.
var revisionWindows = map[string]reconcile.Window{
	"wayex":     {MinDays: -2, MaxDays: 14},
	"wayex-utc": {MinDays: -14, MaxDays: 14},
}

// Config represents the top-level wayex-ledger.yaml configuration.
type Config struct {
	Source  SourceConfig  `yaml:"source"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Match   MatchConfig   `yaml:"match"`
	Output  OutputConfig  `yaml:"output"`
	History HistoryConfig `yaml:"history"`
	Log     LogConfig     `yaml:"log"`
}

// SourceConfig describes the exchange export.
type SourceConfig struct {
	Revision string   `yaml:"revision"`
	Asset    string   `yaml:"asset"`
	Timezone string   `yaml:"timezone"`         // IANA name or "Local"
	Assets   []string `yaml:"assets,omitempty"` // extra known asset codes
}

// LedgerConfig names the tracked account.
type LedgerConfig struct {
	Account string `yaml:"account"`
}

// MatchConfig controls the reconciler. A nil bound takes the revision's
// default.
type MatchConfig struct {
	MinDays             *int   `yaml:"min_days,omitempty"`
	MaxDays             *int   `yaml:"max_days,omitempty"`
	TieBreak            string `yaml:"tie_break"`
	ContinueOnUnmatched bool   `yaml:"continue_on_unmatched"`
}

// OutputConfig selects the report format.
type OutputConfig struct {
	Format string `yaml:"format"`
}

// HistoryConfig locates the run history database. Empty disables history.
type HistoryConfig struct {
	DatabasePath string `yaml:"database_path,omitempty"`
}

// LogConfig controls diagnostics.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a wayex-ledger.yaml file from disk. Fields the file leaves
// out take their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// Save writes a Config to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// Default returns a Config for the original export revision with its date
// window spelled out.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	w := revisionWindows[cfg.Source.Revision]
	cfg.Match.MinDays = &w.MinDays
	cfg.Match.MaxDays = &w.MaxDays
	return cfg
}

// ApplyDefaults fills every empty setting. The date window is left to the
// revision unless set.
func (c *Config) ApplyDefaults() {
	setDefault(&c.Source.Revision, "wayex")
	setDefault(&c.Source.Asset, string(model.AssetBTC))
	setDefault(&c.Source.Timezone, "Local")
	setDefault(&c.Ledger.Account, DefaultAccount)
	setDefault(&c.Match.TieBreak, string(reconcile.TieBreakFirst))
	setDefault(&c.Output.Format, "text")
	setDefault(&c.Log.Level, "warn")
	setDefault(&c.Log.Format, "console")
}

func setDefault(field *string, value string) {
	if strings.TrimSpace(*field) == "" {
		*field = value
	}
}

// Revisions returns the known source revisions, sorted.
func Revisions() []string {
	names := make([]string, 0, len(revisionWindows))
	for name := range revisionWindows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RevisionWindow returns the default window for revision.
func RevisionWindow(revision string) (reconcile.Window, error) {
	w, ok := revisionWindows[strings.ToLower(revision)]
	if !ok {
		return reconcile.Window{}, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownRevision, revision, strings.Join(Revisions(), ", "))
	}
	return w, nil
}

// Window returns the effective date window: the revision default with any
// configured bound overriding it.
func (c *Config) Window() (reconcile.Window, error) {
	w, err := RevisionWindow(c.Source.Revision)
	if err != nil {
		return reconcile.Window{}, err
	}
	if c.Match.MinDays != nil {
		w.MinDays = *c.Match.MinDays
	}
	if c.Match.MaxDays != nil {
		w.MaxDays = *c.Match.MaxDays
	}
	return w, nil
}

// Location loads the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Source.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Source.Timezone, err)
	}
	return loc, nil
}

// AssetSet returns the default asset codes plus any configured extras.
func (c *Config) AssetSet() model.AssetSet {
	codes := append([]model.Asset(nil), model.DefaultAssets...)
	for _, a := range c.Source.Assets {
		codes = append(codes, model.Asset(a))
	}
	return model.NewAssetSet(codes...)
}

// TargetAsset returns the reconciled asset, upper-cased.
func (c *Config) TargetAsset() (model.Asset, error) {
	return c.AssetSet().Parse(strings.ToUpper(c.Source.Asset))
}

// Account parses the tracked ledger account.
func (c *Config) Account() (model.AccountPath, error) {
	return model.ParseAccountPath(c.Ledger.Account)
}

// Reconcile returns the reconciler settings.
func (c *Config) Reconcile() (reconcile.Config, error) {
	w, err := c.Window()
	if err != nil {
		return reconcile.Config{}, err
	}
	if err := w.Validate(); err != nil {
		return reconcile.Config{}, err
	}
	tb, err := reconcile.ParseTieBreak(c.Match.TieBreak)
	if err != nil {
		return reconcile.Config{}, err
	}
	return reconcile.Config{
		Window:          w,
		TieBreak:        tb,
		StopOnUnmatched: !c.Match.ContinueOnUnmatched,
	}, nil
}

// Logging returns the logger settings.
func (c *Config) Logging() logging.Config {
	lc := logging.DefaultConfig()
	lc.Level = c.Log.Level
	lc.Format = c.Log.Format
	return lc
}

// Validate checks every setting a run depends on and returns all problems
// joined.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Reconcile(); err != nil {
		errs = append(errs, fmt.Errorf("match: %w", err))
	}
	if _, err := c.TargetAsset(); err != nil {
		errs = append(errs, fmt.Errorf("source.asset: %w", err))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("source.timezone: %w", err))
	}
	if _, err := c.Account(); err != nil {
		errs = append(errs, fmt.Errorf("ledger.account: %w", err))
	}
	if _, err := report.New(c.Output.Format, nil); err != nil {
		errs = append(errs, fmt.Errorf("output.format: %w", err))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if _, err := logging.ParseFormat(c.Log.Format); err != nil {
		errs = append(errs, fmt.Errorf("log.format: %w", err))
	}
	return errors.Join(errs...)
}
