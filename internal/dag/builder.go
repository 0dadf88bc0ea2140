package dag

import (
	"bioweaver/internal/core"
)

// Builder is the workflow handle task declarations register into.
//
// Add only records the declaration; nothing touches the filesystem or starts
// a process until the built graph is handed to an Executor. A Builder is not
// safe for concurrent use.
type Builder struct {
	tasks     []core.Task
	byName    map[string]int
	producers map[string]string // target path -> task name
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		byName:    make(map[string]int),
		producers: make(map[string]string),
	}
}

// Add registers exactly one task.
//
// Rejects invalid tasks, duplicate names and a target already declared by
// another task.
func (b *Builder) Add(t core.Task) error {
	if err := t.Validate(); err != nil {
		return invalidf("%v", err)
	}
	if _, exists := b.byName[t.Name]; exists {
		return invalidf("duplicate task name: %q", t.Name)
	}
	for _, p := range t.Targets {
		if owner, taken := b.producers[p]; taken {
			return invalidf("target %q of %q is already produced by %q", p, t.Name, owner)
		}
	}

	b.byName[t.Name] = len(b.tasks)
	b.tasks = append(b.tasks, t)
	for _, p := range t.Targets {
		b.producers[p] = t.Name
	}
	return nil
}

// AddTask constructs a task and registers it. It returns the registered task
// so callers can thread its targets into later declarations.
func (b *Builder) AddTask(name string, cmd *core.Command, depends, targets, args []string) (core.Task, error) {
	t, err := core.NewTask(name, cmd, depends, targets, args)
	if err != nil {
		return core.Task{}, err
	}
	if err := b.Add(t); err != nil {
		return core.Task{}, err
	}
	return t, nil
}

// Len returns the number of registered tasks.
func (b *Builder) Len() int { return len(b.tasks) }

// Tasks returns the registered tasks in declaration order.
func (b *Builder) Tasks() []core.Task {
	out := make([]core.Task, len(b.tasks))
	copy(out, b.tasks)
	return out
}

// Task returns a registered task by name.
func (b *Builder) Task(name string) (core.Task, bool) {
	i, ok := b.byName[name]
	if !ok {
		return core.Task{}, false
	}
	return b.tasks[i], true
}

// Producer returns the name of the task that declares path as a target.
func (b *Builder) Producer(path string) (string, bool) {
	name, ok := b.producers[path]
	return name, ok
}

// Build derives edges from shared paths and returns the immutable graph.
//
// A task that depends on path P gets an edge from the task targeting P. A task
// depending on its own target is reported as a self-loop.
func (b *Builder) Build() (*TaskGraph, error) {
	edges := make([]Edge, 0, len(b.tasks))
	for _, t := range b.tasks {
		seen := make(map[string]struct{})
		for _, d := range t.Depends {
			from, ok := b.producers[d]
			if !ok {
				continue
			}
			if _, dup := seen[from]; dup {
				continue
			}
			seen[from] = struct{}{}
			edges = append(edges, Edge{From: from, To: t.Name})
		}
	}
	return NewTaskGraph(b.tasks, edges)
}
