package dag

import (
	"context"
	"fmt"

	"bioweaver/internal/core"
)

// NodeResult is the outcome of running, or finding up to date, a single node.
type NodeResult struct {
	Hash core.TaskHash

	Stdout   []byte
	Stderr   []byte
	ExitCode int

	FromCache bool
}

// TaskRunner runs a single task for the executor.
//
// A non-zero ExitCode is a task failure; a non-nil error is an
// infrastructure failure and aborts the whole graph.
type TaskRunner interface {
	// Probe reports whether the task is already up to date. When cached is
	// true the result is non-nil and FromCache is set.
	Probe(ctx context.Context, task core.Task) (result *NodeResult, cached bool, err error)

	Run(ctx context.Context, task core.Task) (*NodeResult, error)
}

// CoreRunner adapts core.Runner to TaskRunner.
type CoreRunner struct {
	Runner *core.Runner
}

func NewCoreRunner(r *core.Runner) (*CoreRunner, error) {
	if r == nil {
		return nil, fmt.Errorf("nil core runner")
	}
	return &CoreRunner{Runner: r}, nil
}

func (r *CoreRunner) Run(ctx context.Context, task core.Task) (*NodeResult, error) {
	res, err := r.Runner.Run(ctx, &task)
	if err != nil {
		return nil, err
	}
	return fromRunResult(res), nil
}

func (r *CoreRunner) Probe(ctx context.Context, task core.Task) (*NodeResult, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	res, ok, err := r.Runner.Probe(&task)
	if err != nil || !ok {
		return nil, false, err
	}
	return fromRunResult(res), true, nil
}

func fromRunResult(res *core.RunResult) *NodeResult {
	return &NodeResult{
		Hash:      res.Hash,
		Stdout:    res.Stdout,
		Stderr:    res.Stderr,
		ExitCode:  res.ExitCode,
		FromCache: res.FromCache,
	}
}
