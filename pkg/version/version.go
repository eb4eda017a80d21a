// Package version carries build metadata, set through -ldflags -X or read
// from the embedded module build info.
package version

import (
	"fmt"
	"runtime/debug"
	"sync"
)

const unknown = "unknown"

// Build metadata. Overridden at link time.
var (
	Version = "dev"
	Commit  = unknown
	Date    = unknown
)

var initOnce sync.Once

// InitBinaryVersion fills unset metadata from the module build info.
func InitBinaryVersion() {
	initOnce.Do(func() {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}

		applyBuildInfo(info)
	})
}

func applyBuildInfo(info *debug.BuildInfo) {
	if Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		Version = info.Main.Version
	}

	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			if Commit == unknown {
				Commit = setting.Value
			}
		case "vcs.time":
			if Date == unknown {
				Date = setting.Value
			}
		}
	}
}

// String renders the metadata for the version command.
func String() string {
	return fmt.Sprintf("unimported %s (commit: %s, built: %s)", Version, Commit, Date)
}
