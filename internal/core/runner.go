package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Synthetic exit codes for failures detected around the process rather than
// reported by it. Real processes never exit negative.
const (
	ExitMissingDependency = -2
	ExitMissingTargets    = -3
)

// Runner runs single tasks with up-to-date checking.
//
// The flow for one task:
//  1. Validate the task
//  2. Fingerprint dependencies; a missing one fails the task without running it
//  3. Compute the TaskHash
//  4. A successful record plus every target on disk means the task is up to date
//  5. Otherwise execute, then verify every declared target was produced
//  6. Record successful executions
//
// Failed executions are not recorded, so the next invocation retries them.
type Runner struct {
	WorkingDir string
	Cache      Cache
	Executor   *Executor
	Resolver   *InputResolver
	Hasher     *TaskHasher
	Logger     *zap.Logger
}

// NewRunner creates a Runner with the given working directory and cache.
func NewRunner(workingDir string, cache Cache) *Runner {
	return &Runner{
		WorkingDir: workingDir,
		Cache:      cache,
		Executor:   NewExecutor(workingDir),
		Resolver:   NewInputResolver(workingDir),
		Hasher:     NewTaskHasher(),
		Logger:     zap.NewNop(),
	}
}

// WithLogger sets the logger on the runner and its executor.
func (r *Runner) WithLogger(l *zap.Logger) *Runner {
	if l == nil {
		l = zap.NewNop()
	}
	r.Logger = l
	r.Executor.Logger = l
	return r
}

// RunResult contains the result of running a task.
type RunResult struct {
	Hash     TaskHash
	Stdout   []byte
	Stderr   []byte
	ExitCode int

	// FromCache indicates the task was up to date and did not run.
	FromCache bool
}

// Run executes a task unless it is up to date.
func (r *Runner) Run(ctx context.Context, task *Task) (*RunResult, error) {
	if err := r.validateTask(task); err != nil {
		return nil, err
	}

	if missing := r.Resolver.Missing(task.Depends); len(missing) > 0 {
		msg := fmt.Sprintf("missing dependencies: %s", strings.Join(missing, ", "))
		r.Logger.Warn("task dependencies missing",
			zap.String("task", task.Name),
			zap.Strings("missing", missing),
		)
		return &RunResult{Stderr: []byte(msg), ExitCode: ExitMissingDependency}, nil
	}

	hash, err := r.Hash(task)
	if err != nil {
		return nil, err
	}

	if res, ok, err := r.lookup(task, hash); err != nil {
		return nil, err
	} else if ok {
		return res, nil
	}

	return r.executeAndRecord(ctx, task, hash)
}

// Probe reports whether the task is up to date without running it.
// Missing dependencies are not an error here; Run reports them.
func (r *Runner) Probe(task *Task) (*RunResult, bool, error) {
	if err := r.validateTask(task); err != nil {
		return nil, false, err
	}
	if len(r.Resolver.Missing(task.Depends)) > 0 {
		return nil, false, nil
	}
	hash, err := r.Hash(task)
	if err != nil {
		return nil, false, err
	}
	return r.lookup(task, hash)
}

// Hash fingerprints the task's dependencies and computes its TaskHash.
func (r *Runner) Hash(task *Task) (TaskHash, error) {
	inputSet, err := r.Resolver.Resolve(task.Depends)
	if err != nil {
		return "", fmt.Errorf("resolving dependencies of %q: %w", task.Name, err)
	}
	return r.Hasher.ComputeHash(HashInput{
		Template: task.Template(),
		Argv:     task.Argv(),
		Stdout:   task.StdoutPath(),
		Env:      task.Env,
		Targets:  task.Targets,
		Inputs:   inputSet,
	}), nil
}

func (r *Runner) lookup(task *Task, hash TaskHash) (*RunResult, bool, error) {
	exists, err := r.Cache.Has(hash)
	if err != nil {
		return nil, false, fmt.Errorf("checking cache: %w", err)
	}
	if !exists {
		return nil, false, nil
	}
	entry, err := r.Cache.Get(hash)
	if err != nil {
		return nil, false, fmt.Errorf("retrieving cache entry: %w", err)
	}
	if entry == nil || entry.ExitCode != 0 {
		return nil, false, nil
	}
	if len(r.missingTargets(task.Targets)) > 0 {
		return nil, false, nil
	}
	return &RunResult{
		Hash:      hash,
		Stdout:    entry.Stdout,
		Stderr:    entry.Stderr,
		ExitCode:  entry.ExitCode,
		FromCache: true,
	}, true, nil
}

func (r *Runner) validateTask(task *Task) error {
	if task == nil {
		return fmt.Errorf("task is nil")
	}
	return task.Validate()
}

func (r *Runner) executeAndRecord(ctx context.Context, task *Task, hash TaskHash) (*RunResult, error) {
	execResult, err := r.Executor.Execute(ctx, task, hash)
	if err != nil {
		return nil, fmt.Errorf("executing task: %w", err)
	}

	res := &RunResult{
		Hash:     hash,
		Stdout:   execResult.Stdout,
		Stderr:   execResult.Stderr,
		ExitCode: execResult.ExitCode,
	}
	if res.ExitCode != 0 {
		return res, nil
	}

	if missing := r.missingTargets(task.Targets); len(missing) > 0 {
		r.Logger.Warn("task exited cleanly but targets are missing",
			zap.String("task", task.Name),
			zap.Strings("missing", missing),
		)
		res.ExitCode = ExitMissingTargets
		res.Stderr = append(res.Stderr, []byte(fmt.Sprintf("\nmissing targets: %s", strings.Join(missing, ", ")))...)
		return res, nil
	}

	entry := &CacheEntry{
		Hash:     hash,
		Task:     task.Name,
		ExitCode: 0,
		Stdout:   execResult.Stdout,
		Stderr:   execResult.Stderr,
		Targets:  append([]string(nil), task.Targets...),
	}
	if err := r.Cache.Put(entry); err != nil {
		return nil, fmt.Errorf("recording result: %w", err)
	}
	return res, nil
}

func (r *Runner) missingTargets(targets []string) []string {
	var missing []string
	for _, t := range targets {
		p := t
		if r.WorkingDir != "" && !filepath.IsAbs(p) {
			p = filepath.Join(r.WorkingDir, p)
		}
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, t)
		}
	}
	return missing
}
