// Package compileinfoprint prints the binary's build provenance to stderr
// when imported.
package compileinfoprint

import "github.com/carbocation/gwasingest/compileinfo"

func init() {
	compileinfo.PrintToStdErr()
}
