package dag

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"bioweaver/internal/core"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// mkTask declares a task reading depends and writing targets with a
// placeholder command.
func mkTask(t *testing.T, name string, depends, targets []string) core.Task {
	t.Helper()
	task, err := core.NewTask(name, core.NewCommand("run-"+name), depends, targets, nil)
	if err != nil {
		t.Fatalf("NewTask(%q): %v", name, err)
	}
	return task
}

// chain builds A -> B -> C through files a.out and b.out.
func chain(t *testing.T) *TaskGraph {
	t.Helper()
	b := NewBuilder()
	for _, task := range []core.Task{
		mkTask(t, "A", []string{"in"}, []string{"a.out"}),
		mkTask(t, "B", []string{"a.out"}, []string{"b.out"}),
		mkTask(t, "C", []string{"b.out"}, []string{"c.out"}),
	} {
		if err := b.Add(task); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return g
}

// fakeRunner records calls and returns scripted exit codes.
type fakeRunner struct {
	mu     sync.Mutex
	calls  []string
	exit   map[string]int
	cached map[string]bool
	errs   map[string]error
	// block, when set, is closed by the test to release Run calls.
	block chan struct{}
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{exit: map[string]int{}, cached: map[string]bool{}, errs: map[string]error{}}
}

func (f *fakeRunner) Probe(_ context.Context, task core.Task) (*NodeResult, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.cached[task.Name] {
		return nil, false, nil
	}
	return &NodeResult{Hash: core.TaskHash("h-" + task.Name), FromCache: true}, true, nil
}

func (f *fakeRunner) Run(ctx context.Context, task core.Task) (*NodeResult, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, task.Name)
	code := f.exit[task.Name]
	err := f.errs[task.Name]
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return &NodeResult{
		Hash:     core.TaskHash("h-" + task.Name),
		Stdout:   []byte(fmt.Sprintf("ran %s", task.Name)),
		ExitCode: code,
	}, nil
}

func (f *fakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}
