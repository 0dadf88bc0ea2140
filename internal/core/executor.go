package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"syscall"

	"go.uber.org/zap"
)

// ExecutionResult contains the results of one process execution.
type ExecutionResult struct {
	// Stdout is the captured standard output. Empty when the command
	// redirects standard output into a target.
	Stdout []byte

	Stderr []byte

	// ExitCode is the process exit code; 0 means success.
	ExitCode int

	Hash TaskHash
}

// Executor runs a task's command as a child process.
//
// The command is executed directly, not through a shell: argv comes from the
// typed Command, so no quoting or interpolation happens at run time. The
// child sees the host environment (external tools rely on PATH, R_LIBS and
// similar) plus the variables the task declares.
type Executor struct {
	// WorkingDir is the directory tasks run in. Empty means the process
	// working directory.
	WorkingDir string

	Logger *zap.Logger
}

// NewExecutor creates a new Executor with the given working directory.
func NewExecutor(workingDir string) *Executor {
	return &Executor{WorkingDir: workingDir, Logger: zap.NewNop()}
}

// Execute runs the task and waits for it.
//
// Parent directories of every target are created first. A non-zero exit is
// reported through ExitCode; the error return is reserved for failures to
// start or cancellation.
func (e *Executor) Execute(ctx context.Context, task *Task, hash TaskHash) (*ExecutionResult, error) {
	if task == nil {
		return nil, fmt.Errorf("task is nil")
	}
	if task.Command == nil {
		return nil, fmt.Errorf("task %q has no command", task.Name)
	}

	for _, target := range task.Targets {
		dir := filepath.Dir(e.path(target))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output folder %q: %w", dir, err)
		}
	}

	argv := task.Argv()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = e.WorkingDir
	cmd.Env = buildEnv(os.Environ(), task.Env)

	// Own process group so cancellation reaches the whole tool pipeline.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stderr = &stderr
	var outFile *os.File
	if p := task.StdoutPath(); p != "" {
		f, err := os.Create(e.path(p))
		if err != nil {
			return nil, fmt.Errorf("opening stdout target %q: %w", p, err)
		}
		outFile = f
		cmd.Stdout = f
	} else {
		cmd.Stdout = &stdout
	}
	closeOut := func() error {
		if outFile == nil {
			return nil
		}
		return outFile.Close()
	}

	e.logger().Debug("starting task",
		zap.String("task", task.Name),
		zap.String("command", task.CommandLine()),
	)

	if err := cmd.Start(); err != nil {
		_ = closeOut()
		return nil, fmt.Errorf("failed to start %q: %w", argv[0], err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var err error
	select {
	case <-ctx.Done():
		if cmd.Process != nil {
			_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done
		_ = closeOut()
		return nil, fmt.Errorf("execution cancelled: %w", ctx.Err())
	case err = <-done:
	}
	if ctx.Err() != nil {
		_ = closeOut()
		return nil, fmt.Errorf("execution cancelled: %w", ctx.Err())
	}
	if cerr := closeOut(); cerr != nil && err == nil {
		return nil, fmt.Errorf("closing stdout target: %w", cerr)
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to execute %q: %w", argv[0], err)
		}
		exitCode = exitErr.ExitCode()
	}

	return &ExecutionResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
		Hash:     hash,
	}, nil
}

func (e *Executor) path(p string) string {
	if e.WorkingDir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(e.WorkingDir, p)
}

func (e *Executor) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// buildEnv overlays the declared variables on the host environment.
// Declared keys are appended in sorted order; exec keeps the last duplicate.
func buildEnv(host []string, declared map[string]string) []string {
	out := make([]string, 0, len(host)+len(declared))
	out = append(out, host...)
	keys := make([]string, 0, len(declared))
	for k := range declared {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, k+"="+declared[k])
	}
	return out
}
