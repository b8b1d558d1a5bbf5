package compileinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	c := CompileInfo{Path: "example.com/x", Version: "(devel)", GoVersion: "go1.18", Commit: "abc", CommitTime: "T", Modified: true}
	assert.Equal(t, "example.com/x (devel) built with go1.18 from commit abc at T (modified)", c.String())
	assert.Equal(t, "abc", c.Fields()["vcs_revision"])
}
