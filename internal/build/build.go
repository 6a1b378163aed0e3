// Package build exposes build time information about the pulse binary.
package build

import (
	"runtime/debug"
	"strconv"
)

var gitRevision = "unknown"

func init() {
	var (
		revision string
		dirty    bool
	)

	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty, _ = strconv.ParseBool(s.Value)
		}
	}

	if revision == "" {
		return
	}

	gitRevision = revision
	if dirty {
		gitRevision += "-dirty"
	}
}

// GetGitRevision retrieves the revision of the current build. If the build contains uncommitted
// changes the revision will be suffixed with "-dirty".
func GetGitRevision() string {
	return gitRevision
}
