package dag

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidGraph = errors.New("invalid task graph")
	ErrCycleFound   = errors.New("cycle detected")
)

// CycleStep is one edge of a cycle witness: Task feeds the next step's task
// through the file Via (empty for edges declared without a shared path).
type CycleStep struct {
	Task string
	Via  string
}

// GraphError reports a workflow that cannot be built. Kind is one of the
// sentinel errors above so callers can use errors.Is.
type GraphError struct {
	Kind  error
	Msg   string
	Cycle []CycleStep
}

func (e *GraphError) Error() string {
	if len(e.Cycle) > 0 {
		return fmt.Sprintf("%s: %s", e.Kind, formatCycle(e.Cycle))
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *GraphError) Unwrap() error { return e.Kind }

func invalidf(format string, args ...any) error {
	return &GraphError{Kind: ErrInvalidGraph, Msg: fmt.Sprintf(format, args...)}
}

func cycleError(steps []CycleStep) error {
	return &GraphError{Kind: ErrCycleFound, Cycle: steps}
}

// formatCycle renders "a -[x.out]-> b -> a".
func formatCycle(steps []CycleStep) string {
	var b strings.Builder
	for _, s := range steps {
		b.WriteString(s.Task)
		if s.Via != "" {
			fmt.Fprintf(&b, " -[%s]-> ", s.Via)
		} else {
			b.WriteString(" -> ")
		}
	}
	b.WriteString(steps[0].Task)
	return b.String()
}
