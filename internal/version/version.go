// Package version holds the build version of the carenotes server.
package version

// Version is the semver of the current release.
var Version = "0.1.0"

// DevVersion is the version suffix used in dev mode.
var DevVersion = Version + "-dev"

// GetCurrentVersion returns the version for the given mode.
func GetCurrentVersion(mode string) string {
	if mode == "prod" {
		return Version
	}
	return DevVersion
}
