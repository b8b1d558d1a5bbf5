// Package compileinfo reports the VCS provenance embedded in the running
// binary.
package compileinfo

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

type CompileInfo struct {
	Path       string
	Version    string
	GoVersion  string
	Commit     string
	CommitTime string
	Modified   bool
}

func (c CompileInfo) String() string {
	mod := ""
	if c.Modified {
		mod = " (modified)"
	}

	return fmt.Sprintf("%s %s built with %s from commit %v at %v%s", c.Path, c.Version, c.GoVersion, c.Commit, c.CommitTime, mod)
}

// Fields is the provenance as structured log fields.
func (c CompileInfo) Fields() logrus.Fields {
	return logrus.Fields{
		"build_path":    c.Path,
		"build_version": c.Version,
		"go_version":    c.GoVersion,
		"vcs_revision":  c.Commit,
		"vcs_time":      c.CommitTime,
		"vcs_modified":  c.Modified,
	}
}

// Get is empty when the binary carries no build info, as in tests.
func Get() CompileInfo {
	var out CompileInfo

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return out
	}

	out.GoVersion = bi.GoVersion
	out.Path = bi.Path
	out.Version = bi.Main.Version
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			out.Commit = s.Value
		case "vcs.time":
			out.CommitTime = s.Value
		case "vcs.modified":
			out.Modified = s.Value == "true"
		}
	}

	return out
}

func PrintToStdErr() {
	fmt.Fprintln(os.Stderr, Get())
}
