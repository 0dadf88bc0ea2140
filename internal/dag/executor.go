package dag

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bioweaver/internal/core"
	"bioweaver/internal/trace"
)

// stderrTail bounds how much of a failed task's stderr is logged.
const stderrTail = 2048

// Executor runs a TaskGraph. Each Executor holds the state of a single
// execution attempt; build a new one to run the graph again.
type Executor struct {
	Graph  *TaskGraph
	Runner TaskRunner
	Logger *zap.Logger
	Sink   trace.Sink

	mu    sync.Mutex
	state ExecutionState
}

// NewExecutor creates an executor with all nodes PENDING.
func NewExecutor(g *TaskGraph, runner TaskRunner) (*Executor, error) {
	if g == nil {
		return nil, fmt.Errorf("nil graph")
	}
	if runner == nil {
		return nil, fmt.Errorf("nil runner")
	}

	state := make(ExecutionState, len(g.nodes))
	for _, n := range g.nodes {
		state[n.Name] = TaskPending
	}

	return &Executor{
		Graph:  g,
		Runner: runner,
		Logger: zap.NewNop(),
		Sink:   trace.NopSink{},
		state:  state,
	}, nil
}

// StateSnapshot returns a copy of the current execution state.
func (e *Executor) StateSnapshot() ExecutionState {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp := make(ExecutionState, len(e.state))
	for k, v := range e.state {
		cp[k] = v
	}
	return cp
}

// RunSerial runs one task at a time, always picking the first task the
// scheduler reports as ready.
func (e *Executor) RunSerial(ctx context.Context) (*GraphResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	col := newCollector(e.Graph.Len())

	for {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("execution cancelled: %w", err)
		}

		e.mu.Lock()
		ready := GetReadyTasks(e.Graph, e.state)
		if len(ready) == 0 {
			finished := e.allTerminalLocked()
			e.mu.Unlock()
			if finished {
				return col.result(e.Graph, e.StateSnapshot()), nil
			}
			return nil, fmt.Errorf("no ready tasks but graph not finished")
		}

		next := ready[0]
		task := e.Graph.nodesByName[next].Task
		cached, err := e.probeLocked(ctx, next, task, col)
		if err != nil {
			e.mu.Unlock()
			return nil, err
		}
		if cached {
			e.mu.Unlock()
			continue
		}
		if err := e.startLocked(next, task, col); err != nil {
			e.mu.Unlock()
			return nil, err
		}
		e.mu.Unlock()

		start := time.Now()
		res, err := e.Runner.Run(ctx, task)
		if err != nil {
			return nil, fmt.Errorf("executing %q: %w", next, err)
		}
		if res == nil {
			return nil, fmt.Errorf("executing %q: nil result", next)
		}

		e.mu.Lock()
		err = e.completeLocked(next, task, res, time.Since(start), col)
		e.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}
}

type workResult struct {
	name   string
	result *NodeResult
	err    error
}

// RunParallel runs up to jobs tasks at once. Whenever a slot frees up the
// scheduler is polled again, so independent per-sample chains advance
// without waiting for the rest of their depth level.
//
// A runner error cancels every task still running and is returned.
func (e *Executor) RunParallel(ctx context.Context, jobs int) (*GraphResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if jobs <= 0 {
		return nil, fmt.Errorf("jobs must be > 0")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(jobs)

	col := newCollector(e.Graph.Len())
	done := make(chan workResult, e.Graph.Len())
	started := make(map[string]time.Time, e.Graph.Len())
	inFlight := 0

	abort := func(err error) (*GraphResult, error) {
		cancel()
		_ = g.Wait()
		return nil, err
	}

	for {
		e.mu.Lock()
		for progressed := true; progressed && inFlight < jobs; {
			progressed = false
			for _, name := range GetReadyTasks(e.Graph, e.state) {
				if inFlight >= jobs {
					break
				}
				task := e.Graph.nodesByName[name].Task
				cached, err := e.probeLocked(gctx, name, task, col)
				if err != nil {
					e.mu.Unlock()
					return abort(err)
				}
				if cached {
					// Dependents of an up to date task may now be ready.
					progressed = true
					continue
				}
				if err := e.startLocked(name, task, col); err != nil {
					e.mu.Unlock()
					return abort(err)
				}
				started[name] = time.Now()
				inFlight++
				g.Go(func() error {
					res, err := e.Runner.Run(gctx, task)
					done <- workResult{name: name, result: res, err: err}
					return err
				})
			}
		}
		finished := inFlight == 0 && e.allTerminalLocked()
		stuck := inFlight == 0 && !finished
		e.mu.Unlock()

		if finished {
			break
		}
		if stuck {
			return abort(fmt.Errorf("no ready tasks but graph not finished"))
		}

		select {
		case <-ctx.Done():
			return abort(fmt.Errorf("execution cancelled: %w", ctx.Err()))
		case r := <-done:
			inFlight--
			if r.err != nil {
				return abort(fmt.Errorf("executing %q: %w", r.name, r.err))
			}
			if r.result == nil {
				return abort(fmt.Errorf("executing %q: nil result", r.name))
			}
			e.mu.Lock()
			err := e.completeLocked(r.name, e.Graph.nodesByName[r.name].Task, r.result, time.Since(started[r.name]), col)
			e.mu.Unlock()
			if err != nil {
				return abort(err)
			}
		}
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return col.result(e.Graph, e.StateSnapshot()), nil
}

func (e *Executor) allTerminalLocked() bool {
	for _, st := range e.state {
		if !IsTerminal(st) {
			return false
		}
	}
	return true
}

func (e *Executor) probeLocked(ctx context.Context, name string, task core.Task, col *collector) (bool, error) {
	res, cached, err := e.Runner.Probe(ctx, task)
	if err != nil {
		return false, fmt.Errorf("probing %q: %w", name, err)
	}
	if !cached {
		return false, nil
	}
	if res == nil {
		return false, fmt.Errorf("probing %q: nil result", name)
	}
	if err := Transition(e.state, name, TaskPending, TaskCached); err != nil {
		return false, err
	}
	col.record(name, res, 0)

	e.Logger.Info("task up to date", zap.String("task", name))
	trace.SafeRecord(e.Sink, trace.TraceEvent{
		Kind:    trace.EventTaskUpToDate,
		TaskID:  name,
		Reason:  trace.ReasonTargetsCurrent,
		Targets: task.Targets,
	})
	return true, nil
}

func (e *Executor) startLocked(name string, task core.Task, col *collector) error {
	if err := Transition(e.state, name, TaskPending, TaskRunning); err != nil {
		return err
	}
	col.order = append(col.order, name)
	e.Logger.Info("task started",
		zap.String("task", name),
		zap.String("command", task.CommandLine()),
	)
	return nil
}

func (e *Executor) completeLocked(name string, task core.Task, res *NodeResult, elapsed time.Duration, col *collector) error {
	if cur := e.state[name]; cur != TaskRunning {
		return fmt.Errorf("completion for %q but state is %s", name, cur)
	}
	col.record(name, res, elapsed)

	if res.ExitCode == 0 {
		if err := Transition(e.state, name, TaskRunning, TaskCompleted); err != nil {
			return err
		}
		e.Logger.Info("task completed",
			zap.String("task", name),
			zap.Duration("duration", elapsed),
		)
		trace.SafeRecord(e.Sink, trace.TraceEvent{
			Kind:    trace.EventTaskExecuted,
			TaskID:  name,
			Targets: task.Targets,
		})
		return nil
	}

	skipped, err := FailAndPropagate(e.Graph, e.state, name)
	if err != nil {
		return err
	}
	e.Logger.Error("task failed",
		zap.String("task", name),
		zap.Int("exit_code", res.ExitCode),
		zap.ByteString("stderr", tail(res.Stderr, stderrTail)),
		zap.Strings("skipped", skipped),
	)
	trace.SafeRecord(e.Sink, trace.TraceEvent{
		Kind:     trace.EventTaskFailed,
		TaskID:   name,
		Reason:   failureReason(res.ExitCode),
		ExitCode: res.ExitCode,
	})
	for _, s := range skipped {
		trace.SafeRecord(e.Sink, trace.TraceEvent{
			Kind:        trace.EventTaskSkipped,
			TaskID:      s,
			Reason:      trace.ReasonUpstreamFailed,
			CauseTaskID: name,
		})
	}
	return nil
}

func failureReason(exitCode int) string {
	switch exitCode {
	case core.ExitMissingDependency:
		return trace.ReasonMissingDependency
	case core.ExitMissingTargets:
		return trace.ReasonMissingTargets
	default:
		return trace.ReasonNonZeroExit
	}
}

func tail(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[len(b)-n:]
}
