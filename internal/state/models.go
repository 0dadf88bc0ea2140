// Package state persists run history for an output folder: one run record
// per invocation and, when the run did not succeed, the failure that ended it.
package state

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// Counts summarizes the terminal task states of a run.
type Counts struct {
	Executed int `json:"executed"`
	Cached   int `json:"cached"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

// Run is the persistent record of one workflow invocation.
type Run struct {
	RunID     string     `json:"run_id"`
	Workflow  string     `json:"workflow"`
	GraphHash string     `json:"graph_hash"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Jobs      int        `json:"jobs"`
	Status    RunStatus  `json:"status"`
	Counts    Counts     `json:"counts"`
}

func (r Run) Validate() error {
	var errs []error
	if strings.TrimSpace(r.RunID) == "" {
		errs = append(errs, errors.New("run_id is required"))
	}
	if strings.TrimSpace(r.Workflow) == "" {
		errs = append(errs, errors.New("workflow is required"))
	}
	if r.StartTime.IsZero() {
		errs = append(errs, errors.New("start_time is required"))
	}
	if r.EndTime != nil && r.EndTime.Before(r.StartTime) {
		errs = append(errs, errors.New("end_time is before start_time"))
	}
	if r.Jobs < 1 {
		errs = append(errs, errors.New("jobs must be >= 1"))
	}
	switch r.Status {
	case RunStatusRunning, RunStatusSucceeded, RunStatusFailed:
	default:
		errs = append(errs, fmt.Errorf("invalid status %q", r.Status))
	}
	return errors.Join(errs...)
}

type FailureClass string

const (
	FailureClassGraph     FailureClass = "graph"
	FailureClassExecution FailureClass = "execution"
	FailureClassSystem    FailureClass = "system"
)

// Failure is a recorded run termination reason.
type Failure struct {
	FailureClass FailureClass `json:"failure_class"`
	TaskID       *string      `json:"task_id,omitempty"`
	ErrorCode    string       `json:"error_code"`
	ErrorMessage string       `json:"error_message"`
}

func (f Failure) Validate() error {
	var errs []error
	switch f.FailureClass {
	case FailureClassGraph, FailureClassExecution, FailureClassSystem:
	default:
		errs = append(errs, fmt.Errorf("invalid failure_class %q", f.FailureClass))
	}
	if f.TaskID != nil && strings.TrimSpace(*f.TaskID) == "" {
		errs = append(errs, errors.New("task_id must not be empty when provided"))
	}
	if strings.TrimSpace(f.ErrorCode) == "" {
		errs = append(errs, errors.New("error_code is required"))
	}
	if strings.TrimSpace(f.ErrorMessage) == "" {
		errs = append(errs, errors.New("error_message is required"))
	}
	return errors.Join(errs...)
}
