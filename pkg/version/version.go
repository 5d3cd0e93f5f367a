// Package version carries build version information, set at link time.
package version

import "fmt"

// BuildVersion is overridden via -ldflags at release time
var BuildVersion = "0.1.0-dev"

// String returns the full version line
func String() string {
	return fmt.Sprintf("citymap %s", BuildVersion)
}
