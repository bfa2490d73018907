// Package version holds the build version of imgcluster.
package version

import (
	"fmt"
	"runtime"
)

// Version is overridden at build time with
// -ldflags "-X github.com/Yutarop/imgcluster/internal/version.Version=...".
var Version = "1.0.0"

// Info returns the multi-line version block printed by the version command.
func Info(name string) string {
	return fmt.Sprintf("%s version %s\nGo version: %s\nOS/Arch: %s/%s\n",
		name, Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
