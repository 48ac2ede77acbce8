package importer

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/cleared-dev/wayex-ledger/internal/model"
)

// Parser converts an exchange export into ExternalRecords in file order.
type Parser interface {
	Parse(r io.Reader) ([]model.ExternalRecord, error)
	Format() string
}

// RecordParseError names the row and field of a row that could not be
// normalized.
type RecordParseError struct {
	Row   int
	Field string
	Value string
	Err   error
}

func (e *RecordParseError) Error() string {
	if e.Value == "" && e.Field == "" {
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("row %d: %s %q: %v", e.Row, e.Field, e.Value, e.Err)
}

func (e *RecordParseError) Unwrap() error { return e.Err }

// Registry holds named parsers, one per export revision.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// Formats returns the registered format names, sorted.
func (r *Registry) Formats() []string {
	names := make([]string, 0, len(r.parsers))
	for k := range r.parsers {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// DefaultRegistry returns a registry with all built-in parsers. Timestamps
// are presented in loc; only codes in assets are accepted.
func DefaultRegistry(loc *time.Location, assets model.AssetSet) *Registry {
	r := NewRegistry()
	r.Register(NewWayexParser(loc, assets))
	r.Register(NewWayexUTCParser(loc, assets))
	return r
}

// ParseFile opens path and parses it with p.
func ParseFile(p Parser, path string) ([]model.ExternalRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening export: %w", err)
	}
	defer f.Close()

	recs, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return recs, nil
}

// Normalize keeps the records for target and reverses them so the oldest
// comes first. The export lists newest first.
func Normalize(recs []model.ExternalRecord, target model.Asset) []model.ExternalRecord {
	out := make([]model.ExternalRecord, 0, len(recs))
	for i := len(recs) - 1; i >= 0; i-- {
		if recs[i].Asset == target {
			out = append(out, recs[i])
		}
	}
	return out
}
