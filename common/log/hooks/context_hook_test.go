package hooks

import (
	"bytes"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestContextHookAddsCaller(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New()
	logger.Out = &buf
	logger.Formatter = &log.TextFormatter{DisableColors: true}
	logger.AddHook(NewContextHook())

	logger.WithFields(log.Fields{"task": "abc"}).Info("hello")

	out := buf.String()
	if !strings.Contains(out, "file:line") {
		t.Fatal("Expected a file:line field: ", out)
	}
	if !strings.Contains(out, "context_hook_test.go:") {
		t.Fatal("Expected the test file as caller: ", out)
	}
}
