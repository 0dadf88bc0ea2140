package core

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrInvalidTask       = errors.New("invalid task")
	ErrMissingDependency = errors.New("missing dependency")
)

// TaskError wraps task construction and dependency failures.
type TaskError struct {
	Kind error
	Task string
	Msg  string
}

func (e *TaskError) Error() string {
	if e == nil {
		return ""
	}
	if e.Task == "" {
		return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
	}
	return fmt.Sprintf("%s %q: %s", e.Kind.Error(), e.Task, e.Msg)
}

func (e *TaskError) Unwrap() error { return e.Kind }

func invalidTaskf(name, format string, args ...any) error {
	return &TaskError{Kind: ErrInvalidTask, Task: name, Msg: fmt.Sprintf(format, args...)}
}

// Task is one declared unit of work.
//
// Depends and Targets are the file paths the engine uses to order execution:
// a task that depends on a path runs after the task that targets it. Args are
// the positional values the command refers to through Arg(i).
type Task struct {
	Name    string            `json:"name"`
	Command *Command          `json:"-"`
	Depends []string          `json:"depends"`
	Targets []string          `json:"targets"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// NewTask builds and validates a task. All command references are checked
// here, so a Task that exists always renders.
func NewTask(name string, cmd *Command, depends, targets, args []string) (Task, error) {
	t := Task{
		Name:    name,
		Command: cmd,
		Depends: cleanPaths(depends),
		Targets: cleanPaths(targets),
		Args:    append([]string(nil), args...),
	}
	if err := t.Validate(); err != nil {
		return Task{}, err
	}
	return t, nil
}

// Validate checks the task's structural invariants.
func (t *Task) Validate() error {
	if t == nil {
		return invalidTaskf("", "task is nil")
	}
	if strings.TrimSpace(t.Name) == "" {
		return invalidTaskf("", "task name is required")
	}
	if t.Command == nil {
		return invalidTaskf(t.Name, "command is required")
	}
	for i, d := range t.Depends {
		if d == "" {
			return invalidTaskf(t.Name, "depends[%d] is empty", i)
		}
	}
	seen := make(map[string]struct{}, len(t.Targets))
	for i, p := range t.Targets {
		if p == "" || p == "." {
			return invalidTaskf(t.Name, "targets[%d] is empty", i)
		}
		if _, dup := seen[p]; dup {
			return invalidTaskf(t.Name, "duplicate target %q", p)
		}
		seen[p] = struct{}{}
	}
	if err := t.Command.validate(len(t.Depends), len(t.Targets), len(t.Args)); err != nil {
		return invalidTaskf(t.Name, "%v", err)
	}
	return nil
}

// Template returns the command in the original placeholder syntax.
func (t *Task) Template() string {
	return t.Command.Template()
}

// Argv resolves the command against the declared lists. The program is argv[0].
// Standard output redirection is not part of argv; see StdoutPath.
func (t *Task) Argv() []string {
	argv := []string{t.Command.Program}
	for _, w := range t.Command.Words {
		if len(w) == 1 && w[0].Kind == TokenAllDepends {
			argv = append(argv, t.Depends...)
			continue
		}
		var b strings.Builder
		for _, tok := range w {
			b.WriteString(t.resolve(tok))
		}
		argv = append(argv, b.String())
	}
	return argv
}

// StdoutPath returns the target receiving standard output, or "".
func (t *Task) StdoutPath() string {
	if t.Command == nil || t.Command.Stdout == nil {
		return ""
	}
	return t.Targets[t.Command.Stdout.Index]
}

// CommandLine renders the resolved command as a single shell-quoted line.
func (t *Task) CommandLine() string {
	argv := t.Argv()
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}
	line := strings.Join(quoted, " ")
	if p := t.StdoutPath(); p != "" {
		line += " > " + shellQuote(p)
	}
	return line
}

func (t *Task) resolve(tok Token) string {
	switch tok.Kind {
	case TokenDepend:
		return t.Depends[tok.Index]
	case TokenTarget:
		return t.Targets[tok.Index]
	case TokenArg:
		return t.Args[tok.Index]
	case TokenAllDepends:
		return strings.Join(t.Depends, " ")
	default:
		return tok.Text
	}
}

func cleanPaths(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) == "" {
			out = append(out, "")
			continue
		}
		out = append(out, filepath.Clean(p))
	}
	return out
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, func(r rune) bool {
		return !(r == '/' || r == '.' || r == '-' || r == '_' || r == '=' || r == ':' || r == ',' || r == '+' ||
			(r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
