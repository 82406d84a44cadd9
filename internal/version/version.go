// Package version exposes the conductor build version.
package version

// version is set at build time via -ldflags.
var version = "dev"

// Get returns the current version string.
func Get() string {
	return version
}
