// Package version provides version information for tdsl.
//
// The version is kept in sync with the version.txt file in this package.
package version

import (
	_ "embed"
	"fmt"
	"strings"
)

//go:embed version.txt
var versionFile string

// Version is the current version of tdsl.
// This is embedded from version.txt at compile time.
var Version = strings.TrimSpace(versionFile)

// TDSVersion identifies the wire protocol version this driver speaks,
// the 0x71000001 value LOGIN7 sends as TDSVersion (TDS 7.1, SQL Server
// 2000 SP1).
const TDSVersion = "7.1"

// String returns the version string.
func String() string {
	return Version
}

// Full returns a full version string with the package name and the TDS
// wire version this build targets.
func Full() string {
	return fmt.Sprintf("tdsl %s (TDS %s)", Version, TDSVersion)
}
