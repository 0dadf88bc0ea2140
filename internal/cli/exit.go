package cli

import (
	"errors"
	"fmt"
)

const (
	ExitSuccess           = 0
	ExitTaskFailure       = 1
	ExitInvalidInvocation = 2
	ExitConfigError       = 3
	ExitInternalError     = 4
)

// InvocationError carries the process exit code for a failed command.
type InvocationError struct {
	ExitCode int
	Message  string
	Cause    error
}

func (e *InvocationError) Error() string {
	if e.Message == "" && e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Message
}

func (e *InvocationError) Unwrap() error { return e.Cause }

func invalidInvocationf(format string, args ...any) error {
	return &InvocationError{ExitCode: ExitInvalidInvocation, Message: fmt.Sprintf(format, args...)}
}

func withExitCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &InvocationError{ExitCode: code, Cause: err}
}

// ExitCode extracts the exit code from an error returned by a command.
// Errors that carry no code are internal errors.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var invErr *InvocationError
	if errors.As(err, &invErr) {
		if invErr.ExitCode != 0 {
			return invErr.ExitCode
		}
		return ExitInvalidInvocation
	}
	return ExitInternalError
}
