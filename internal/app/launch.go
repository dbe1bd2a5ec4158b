package app

import (
	"os"
	"slices"
	"strings"

	"github.com/samber/lo"
)

const libraryPathKey = "LD_LIBRARY_PATH"

// workerEnv merges base and extra and puts libDir first on the library search
// path so the worker finds the shared libraries shipped next to it.
func workerEnv(base, extra []string, libDir string) []string {
	merged := append(slices.Clone(base), extra...)

	previous := ""
	for _, kv := range merged {
		if value, ok := strings.CutPrefix(kv, libraryPathKey+"="); ok {
			previous = value
		}
	}

	env := lo.Filter(merged, func(kv string, _ int) bool {
		return !strings.HasPrefix(kv, libraryPathKey+"=")
	})
	value := libDir
	if previous != "" && previous != libDir {
		value = libDir + string(os.PathListSeparator) + previous
	}
	return append(env, libraryPathKey+"="+value)
}
