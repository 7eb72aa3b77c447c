package entities

import (
	"fmt"
	"strconv"
)

// Release types used in the version marker
const (
	ReleaseTypeAlpha = "alpha"
	ReleaseTypeBeta  = "beta"
	ReleaseTypeRC    = "rc"
	ReleaseTypeFinal = "final"
)

// VersionInfo is the in-tree version marker of the project being released
type VersionInfo struct {
	Major       int
	Minor       int
	Micro       int
	Patch       int
	ReleaseType string
	ReleaseNum  int
	IsRelease   bool
}

// IsFinal reports whether this is a final (non pre-release) version
func (v VersionInfo) IsFinal() bool {
	return v.ReleaseType == ReleaseTypeFinal
}

// PackageVersion returns the version string used in distribution filenames.
//
// Micro is included when micro or patch is non-zero, patch when non-zero, and
// pre-releases carry their type and number as a suffix (1.2rc1, 1.2.3beta2).
func (v VersionInfo) PackageVersion() string {
	version := fmt.Sprintf("%d.%d", v.Major, v.Minor)
	if v.Micro != 0 || v.Patch != 0 {
		version += "." + strconv.Itoa(v.Micro)
	}
	if v.Patch != 0 {
		version += "." + strconv.Itoa(v.Patch)
	}
	if !v.IsFinal() {
		version += v.ReleaseType + strconv.Itoa(v.ReleaseNum)
	}
	return version
}

// SeriesVersion returns "major.minor", used for storage prefixes
func (v VersionInfo) SeriesVersion() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// TagName returns the version-control tag for this release
func (v VersionInfo) TagName() string {
	return "release-" + v.PackageVersion()
}
