// Package hooks holds logrus hooks shared by the conductor binaries.
package hooks

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
)

type contextHook struct {
	skipPrefixes []string
}

// NewContextHook returns a hook that annotates every entry with the
// "file:line" of the first caller outside logrus and this package.
func NewContextHook() log.Hook {
	return contextHook{skipPrefixes: []string{"github.com/sirupsen/logrus", "github.com/rayos/conductor/common/log/hooks.contextHook"}}
}

func (hook contextHook) Levels() []log.Level {
	return log.AllLevels
}

func (hook contextHook) Fire(entry *log.Entry) error {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !hook.skip(frame.Function) {
			entry.Data["file:line"] = fmt.Sprintf("%s:%d", shortPath(frame.File), frame.Line)
			return nil
		}
		if !more {
			return nil
		}
	}
}

func (hook contextHook) skip(function string) bool {
	for _, prefix := range hook.skipPrefixes {
		if strings.HasPrefix(function, prefix) {
			return true
		}
	}
	return false
}

// Keep the package directory and file name.
func shortPath(file string) string {
	dir, name := filepath.Split(file)
	return filepath.Join(filepath.Base(dir), name)
}
