package buildinfo

import "fmt"

var (
	// Version will be set via ldflags during build.
	Version = "dev"
	// Commit will be set via ldflags during build.
	Commit = "unknown"
	// Date will be set via ldflags during build.
	Date = "unknown"
)

// String returns the build version line, e.g.
// "wayex_ledger v1.2.0 (3f2c1ab 2024-05-01T10:00:00Z)".
func String() string {
	return fmt.Sprintf("wayex_ledger v%s (%s %s)", Version, orUnknown(Commit), orUnknown(Date))
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
