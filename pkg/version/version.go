package version

import (
	"fmt"

	"github.com/blang/semver/v4"
)

// PolycheckVersion indicates what version of polycheck the binary belongs to.
// It is set at link time.
var PolycheckVersion = "0.0.0-dev"

// GitCommit indicates which git commit the binary was built from
var GitCommit string

// String returns a pretty string concatenation of PolycheckVersion and GitCommit
func String() string {
	return fmt.Sprintf("polycheck version: %s\ngit commit:        %s\n", PolycheckVersion, GitCommit)
}

// Semver parses PolycheckVersion, tolerating a leading "v".
func Semver() (semver.Version, error) {
	return semver.ParseTolerant(PolycheckVersion)
}
