// Package workflow holds the pipeline drivers: they discover inputs, call the
// task declarations stage by stage and hand the built graph to the executor.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"bioweaver/internal/config"
	"bioweaver/internal/dag"
	"bioweaver/internal/trace"
)

// ErrMissingOption reports a required option that was not supplied.
var ErrMissingOption = errors.New("missing required option")

// Workflow describes a driver for help and version output.
type Workflow struct {
	Name        string
	Version     string
	Description string
}

var (
	MetagenomicWorkflow = Workflow{
		Name:        "wmgx",
		Version:     "0.1",
		Description: "A workflow for whole metagenome shotgun sequences",
	}
	AmpliconWorkflow = Workflow{
		Name:        "16s",
		Version:     "0.1",
		Description: "A workflow for 16S amplicon sequences using DADA2",
	}
)

// Options are the inputs shared by the drivers.
type Options struct {
	Input          string
	Output         string
	InputExtension string
	Threads        int
	ScriptsDir     string
	Databases      config.Databases
}

// OptionsFromConfig seeds Options from the resolved configuration.
func OptionsFromConfig(cfg config.Config, input, output string) Options {
	return Options{
		Input:          input,
		Output:         output,
		InputExtension: cfg.InputExtension,
		Threads:        cfg.Threads,
		ScriptsDir:     cfg.ScriptsDir,
		Databases:      cfg.Databases,
	}
}

// normalize fills defaults and makes the folders absolute so that "." can be
// used as a task dependency.
func (o Options) normalize() (Options, error) {
	if o.Input == "" {
		return o, fmt.Errorf("%w: input folder", ErrMissingOption)
	}
	if o.Output == "" {
		return o, fmt.Errorf("%w: output folder", ErrMissingOption)
	}
	var err error
	if o.Input, err = filepath.Abs(o.Input); err != nil {
		return o, err
	}
	if o.Output, err = filepath.Abs(o.Output); err != nil {
		return o, err
	}
	if o.InputExtension == "" {
		o.InputExtension = config.DefaultInputExtension
	}
	o.InputExtension = strings.TrimPrefix(o.InputExtension, ".")
	if o.Threads < 1 {
		o.Threads = config.DefaultThreads
	}
	if o.ScriptsDir == "" {
		o.ScriptsDir = config.DefaultScriptsDir
	}
	return o, nil
}

// InputFiles lists the regular files in dir ending in .ext or .ext.gz, sorted.
func InputFiles(dir, ext string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing input folder: %w", err)
	}
	suffix := "." + strings.TrimPrefix(ext, ".")
	var out []string
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, suffix) || strings.HasSuffix(name, suffix+".gz") {
			out = append(out, filepath.Join(dir, name))
		}
	}
	sort.Strings(out)
	return out, nil
}

// RunConfig controls how a built graph is executed.
type RunConfig struct {
	Jobs   int
	Runner dag.TaskRunner
	Logger *zap.Logger
	Sink   trace.Sink
}

// Go executes the graph: serially when Jobs is 1, otherwise with up to Jobs
// tasks at once. Task failures are reported in the result, not as an error.
func Go(ctx context.Context, g *dag.TaskGraph, rc RunConfig) (*dag.GraphResult, error) {
	logger := rc.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if rc.Jobs < 1 {
		rc.Jobs = 1
	}

	if missing := missingInputs(g.ExternalInputs()); len(missing) > 0 {
		logger.Warn("external inputs not found; tasks reading them will fail",
			zap.Strings("missing", missing),
		)
	}

	exec, err := dag.NewExecutor(g, rc.Runner)
	if err != nil {
		return nil, err
	}
	exec.Logger = logger
	exec.Sink = trace.Tee(rc.Sink, trace.SinkFunc(func(ev trace.TraceEvent) {
		logger.Debug("trace event",
			zap.String("kind", string(ev.Kind)),
			zap.String("task", ev.TaskID),
			zap.String("reason", ev.Reason),
		)
	}))

	logger.Info("workflow starting",
		zap.String("graph_hash", g.Hash().String()),
		zap.Int("tasks", g.Len()),
		zap.Int("jobs", rc.Jobs),
	)
	if rc.Jobs == 1 {
		return exec.RunSerial(ctx)
	}
	return exec.RunParallel(ctx, rc.Jobs)
}

func missingInputs(paths []string) []string {
	var missing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, p)
		}
	}
	return missing
}

// DryRun writes the plan in topological order without running anything.
func DryRun(w io.Writer, g *dag.TaskGraph) error {
	if _, err := fmt.Fprintf(w, "# %d tasks, graph %s\n", g.Len(), g.Hash()); err != nil {
		return err
	}
	for _, p := range g.ExternalInputs() {
		if _, err := fmt.Fprintf(w, "# input %s\n", p); err != nil {
			return err
		}
	}
	for _, name := range g.TopologicalOrder() {
		node, _ := g.Node(name)
		if _, err := fmt.Fprintf(w, "%s\n  %s\n", name, node.Task.CommandLine()); err != nil {
			return err
		}
	}
	return nil
}
