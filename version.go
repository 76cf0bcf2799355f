// Package tracewal provides the version information for tracewal.
package tracewal

// Version is the current version of tracewal.
const Version = "0.1.0"

// GetVersion returns the current version string.
func GetVersion() string {
	return Version
}
