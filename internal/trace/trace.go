// Package trace records what a workflow run decided for each task: which
// tasks were up to date, which ran, which failed and which were skipped
// because something upstream failed.
//
// The canonical form is independent of scheduling, so two runs over the same
// graph and the same filesystem state produce the same trace hash whether
// they ran serially or with many jobs.
package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// EventKind discriminates TraceEvent. The string values are part of the
// canonical encoding.
type EventKind string

const (
	EventTaskUpToDate EventKind = "TaskUpToDate"
	EventTaskExecuted EventKind = "TaskExecuted"
	EventTaskFailed   EventKind = "TaskFailed"
	EventTaskSkipped  EventKind = "TaskSkipped"
)

// Reason codes attached to events.
const (
	ReasonTargetsCurrent    = "TargetsCurrent"
	ReasonNonZeroExit       = "NonZeroExit"
	ReasonMissingDependency = "MissingDependency"
	ReasonMissingTargets    = "MissingTargets"
	ReasonUpstreamFailed    = "UpstreamFailed"
)

// TraceEvent is one decision about one task. It carries no timestamps or
// error strings.
type TraceEvent struct {
	Kind        EventKind `json:"kind"`
	TaskID      string    `json:"taskId"`
	Reason      string    `json:"reason,omitempty"`
	CauseTaskID string    `json:"causeTaskId,omitempty"`
	ExitCode    int       `json:"exitCode,omitempty"`
	Targets     []string  `json:"targets,omitempty"`
}

// ExecutionTrace is the record of one graph execution.
type ExecutionTrace struct {
	GraphHash string       `json:"graphHash"`
	Events    []TraceEvent `json:"events"`
}

// Validate checks that the trace is well formed.
func (t *ExecutionTrace) Validate() error {
	if t == nil {
		return errors.New("trace is nil")
	}
	if t.GraphHash == "" {
		return errors.New("graphHash is required")
	}
	for i, e := range t.Events {
		if kindOrder(e.Kind) == 0 {
			return fmt.Errorf("events[%d]: unknown kind %q", i, e.Kind)
		}
		if e.TaskID == "" {
			return fmt.Errorf("events[%d].taskId is required", i)
		}
		for j, p := range e.Targets {
			if p == "" {
				return fmt.Errorf("events[%d].targets[%d] is empty", i, j)
			}
		}
	}
	return nil
}

// Canonicalize sorts targets within each event and orders events by
// (taskId, kind, reason, causeTaskId).
func (t *ExecutionTrace) Canonicalize() {
	if t == nil {
		return
	}
	for i := range t.Events {
		if len(t.Events[i].Targets) == 0 {
			t.Events[i].Targets = nil
			continue
		}
		targets := make([]string, len(t.Events[i].Targets))
		copy(targets, t.Events[i].Targets)
		sort.Strings(targets)
		t.Events[i].Targets = targets
	}

	sort.SliceStable(t.Events, func(i, j int) bool {
		a, b := t.Events[i], t.Events[j]
		if a.TaskID != b.TaskID {
			return a.TaskID < b.TaskID
		}
		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		if a.Reason != b.Reason {
			return a.Reason < b.Reason
		}
		return a.CauseTaskID < b.CauseTaskID
	})
}

func kindOrder(k EventKind) int {
	switch k {
	case EventTaskUpToDate:
		return 1
	case EventTaskExecuted:
		return 2
	case EventTaskFailed:
		return 3
	case EventTaskSkipped:
		return 4
	default:
		return 0
	}
}

// CanonicalJSON encodes a canonicalized copy of the trace. The receiver's
// slices are not mutated.
func (t ExecutionTrace) CanonicalJSON() ([]byte, error) {
	cp := ExecutionTrace{GraphHash: t.GraphHash, Events: make([]TraceEvent, len(t.Events))}
	copy(cp.Events, t.Events)
	cp.Canonicalize()
	if err := cp.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(cp)
}

// Hash returns the sha256 hex digest of the canonical encoding.
func (t ExecutionTrace) Hash() (string, error) {
	b, err := t.CanonicalJSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// File is the on-disk form written by --trace.
type File struct {
	RunID     string         `json:"runId"`
	TraceHash string         `json:"traceHash"`
	Trace     ExecutionTrace `json:"trace"`
}

// WriteFile writes the canonical trace with its hash and the run id to path.
func WriteFile(path, runID string, t ExecutionTrace) error {
	cp := ExecutionTrace{GraphHash: t.GraphHash, Events: make([]TraceEvent, len(t.Events))}
	copy(cp.Events, t.Events)
	cp.Canonicalize()
	h, err := cp.Hash()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(File{RunID: runID, TraceHash: h, Trace: cp}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
