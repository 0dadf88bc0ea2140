package state

import (
	"errors"
	"fmt"
)

// GraphFailureError is a workflow that could not be declared or validated.
type GraphFailureError struct {
	Code    string
	Message string
	Cause   error
}

func (e *GraphFailureError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("graph failure (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("graph failure: %s", e.Message)
}

func (e *GraphFailureError) Unwrap() error { return e.Cause }

// ExecutionFailureError is a task that ran and failed.
type ExecutionFailureError struct {
	TaskID  string
	Code    string
	Message string
	Cause   error
}

func (e *ExecutionFailureError) Error() string {
	switch {
	case e.TaskID != "" && e.Code != "":
		return fmt.Sprintf("execution failure task=%s (%s): %s", e.TaskID, e.Code, e.Message)
	case e.TaskID != "":
		return fmt.Sprintf("execution failure task=%s: %s", e.TaskID, e.Message)
	default:
		return fmt.Sprintf("execution failure: %s", e.Message)
	}
}

func (e *ExecutionFailureError) Unwrap() error { return e.Cause }

// SystemFailureError is anything outside the workflow itself: a cache that
// cannot be read, a cancelled run, a panic.
type SystemFailureError struct {
	Code    string
	Message string
	Cause   error
}

func (e *SystemFailureError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("system failure (%s): %s", e.Code, e.Message)
	}
	return fmt.Sprintf("system failure: %s", e.Message)
}

func (e *SystemFailureError) Unwrap() error { return e.Cause }

func failureFromError(err error) (Failure, error) {
	if err == nil {
		return Failure{}, errors.New("nil error")
	}

	var gf *GraphFailureError
	if errors.As(err, &gf) {
		return Failure{
			FailureClass: FailureClassGraph,
			ErrorCode:    nonEmptyOr(gf.Code, "GraphFailure"),
			ErrorMessage: nonEmptyOr(gf.Message, gf.Error()),
		}, nil
	}

	var ef *ExecutionFailureError
	if errors.As(err, &ef) {
		var task *string
		if ef.TaskID != "" {
			id := ef.TaskID
			task = &id
		}
		return Failure{
			FailureClass: FailureClassExecution,
			TaskID:       task,
			ErrorCode:    nonEmptyOr(ef.Code, "ExecutionFailure"),
			ErrorMessage: nonEmptyOr(ef.Message, ef.Error()),
		}, nil
	}

	var sf *SystemFailureError
	if errors.As(err, &sf) {
		return Failure{
			FailureClass: FailureClassSystem,
			ErrorCode:    nonEmptyOr(sf.Code, "SystemFailure"),
			ErrorMessage: nonEmptyOr(sf.Message, sf.Error()),
		}, nil
	}

	return Failure{
		FailureClass: FailureClassSystem,
		ErrorCode:    "UnknownError",
		ErrorMessage: err.Error(),
	}, nil
}

func nonEmptyOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
