// Package version carries build identification for the moverwatch binary.
package version

// Populated via -ldflags at release time; the zero values mark a local build.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)
