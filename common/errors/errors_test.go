package errors

import (
	"testing"

	"github.com/pkg/errors"
)

func TestExitCodeOf(t *testing.T) {
	if ExitCodeOf(nil) != 0 {
		t.Fatal("nil error should exit 0")
	}
	if ExitCodeOf(errors.New("boom")) != GenericFailureExitCode {
		t.Fatal("plain errors should use the generic exit code")
	}
	err := NewError(errors.New("missing"), NotFoundExitCode)
	if ExitCodeOf(err) != NotFoundExitCode {
		t.Fatal("Expected the carried exit code, got ", ExitCodeOf(err))
	}
	if errors.Cause(err).Error() != "missing" {
		t.Fatal("Cause should unwrap to the original error")
	}
}

func TestNewErrorNil(t *testing.T) {
	if NewError(nil, UsageExitCode) != nil {
		t.Fatal("NewError(nil) should be nil")
	}
	var e *ExitCodeError
	if e.GetExitCode() != 0 {
		t.Fatal("nil ExitCodeError should report 0")
	}
}
