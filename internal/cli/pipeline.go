package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bioweaver/internal/config"
	"bioweaver/internal/core"
	"bioweaver/internal/dag"
	"bioweaver/internal/state"
	"bioweaver/internal/trace"
	"bioweaver/internal/workflow"
)

// pipelineFlags are the flags shared by the workflow commands.
type pipelineFlags struct {
	input          string
	output         string
	inputExtension string
	scriptsDir     string
	threads        int
	jobs           int
	dryRun         bool
	force          bool
	tracePath      string
	dbs            config.Databases
}

func (f *pipelineFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVarP(&f.input, "input", "i", "", "folder containing the input files (required)")
	fs.StringVarP(&f.output, "output", "o", "", "folder to write the outputs to (required)")
	fs.StringVar(&f.inputExtension, "input-extension", config.DefaultInputExtension, "extension of the input files")
	fs.StringVar(&f.scriptsDir, "scripts-dir", config.DefaultScriptsDir, "folder holding the workflow helper scripts")
	fs.IntVarP(&f.threads, "threads", "t", config.DefaultThreads, "threads for each task")
	fs.IntVarP(&f.jobs, "jobs", "j", config.DefaultJobs, "tasks to run at the same time")
	fs.BoolVar(&f.dryRun, "dry-run", false, "print the tasks without running them")
	fs.BoolVar(&f.force, "force", false, "rerun every task even when its targets are up to date")
	fs.StringVar(&f.tracePath, "trace", "", "write the canonical execution trace to this file")
}

// resolve layers the flags the user set over the configuration.
func (f *pipelineFlags) resolve(cmd *cobra.Command, cfg config.Config) (workflow.Options, int, error) {
	if f.input == "" {
		return workflow.Options{}, 0, invalidInvocationf("--input is required")
	}
	if f.output == "" {
		return workflow.Options{}, 0, invalidInvocationf("--output is required")
	}

	opts := workflow.OptionsFromConfig(cfg, f.input, f.output)
	jobs := cfg.Jobs
	changed := cmd.Flags().Changed
	if changed("input-extension") {
		opts.InputExtension = f.inputExtension
	}
	if changed("scripts-dir") {
		opts.ScriptsDir = f.scriptsDir
	}
	if changed("threads") {
		opts.Threads = f.threads
	}
	if changed("jobs") {
		jobs = f.jobs
	}
	if changed("kneaddata-db") {
		opts.Databases.Kneaddata = f.dbs.Kneaddata
	}
	if changed("gg-path") {
		opts.Databases.Greengenes = f.dbs.Greengenes
	}
	if changed("silva-path") {
		opts.Databases.Silva = f.dbs.Silva
	}
	if changed("rdp-path") {
		opts.Databases.RDP = f.dbs.RDP
	}

	if opts.Threads < 1 {
		return workflow.Options{}, 0, invalidInvocationf("--threads must be >= 1, got %d", opts.Threads)
	}
	if jobs < 1 {
		return workflow.Options{}, 0, invalidInvocationf("--jobs must be >= 1, got %d", jobs)
	}
	return opts, jobs, nil
}

type declareFunc func(b *dag.Builder, opts workflow.Options) error

func (a *app) newMetagenomicCommand() *cobra.Command {
	f := &pipelineFlags{}
	wf := workflow.MetagenomicWorkflow
	cmd := &cobra.Command{
		Use:   wf.Name,
		Short: wf.Description,
		Long: wf.Description + `.

Runs kneaddata on each sample, profiles the cleaned reads with metaphlan2
and humann2, then merges the per-sample tables.`,
		Args: noPositionalArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runPipeline(cmd, wf, f, func(b *dag.Builder, opts workflow.Options) error {
				_, err := workflow.Metagenomic(b, opts)
				return err
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&f.dbs.Kneaddata, "kneaddata-db", "", "kneaddata reference database")
	return cmd
}

func (a *app) newAmpliconCommand() *cobra.Command {
	f := &pipelineFlags{}
	wf := workflow.AmpliconWorkflow
	cmd := &cobra.Command{
		Use:   wf.Name,
		Short: wf.Description,
		Long: wf.Description + `.

Filters and trims the reads, learns error rates, merges pairs, builds the
sequence table and tree, then assigns taxonomy with Greengenes (--gg-path)
or with SILVA and RDP (--silva-path and --rdp-path).`,
		Args: noPositionalArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runPipeline(cmd, wf, f, func(b *dag.Builder, opts workflow.Options) error {
				_, err := workflow.Amplicon(b, opts)
				return err
			})
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&f.dbs.Greengenes, "gg-path", "", "Greengenes database")
	cmd.Flags().StringVar(&f.dbs.Silva, "silva-path", "", "SILVA database")
	cmd.Flags().StringVar(&f.dbs.RDP, "rdp-path", "", "RDP species database")
	return cmd
}

// runPipeline declares the workflow, then runs it against the output folder's
// task records and run history.
func (a *app) runPipeline(cmd *cobra.Command, wf workflow.Workflow, f *pipelineFlags, declare declareFunc) error {
	opts, jobs, err := f.resolve(cmd, a.cfg)
	if err != nil {
		return err
	}
	runID := state.NewRunID()
	logger := a.logger.With(zap.String("run_id", runID), zap.String("workflow", wf.Name))

	output, err := filepath.Abs(opts.Output)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	b := dag.NewBuilder()
	g, err := buildGraph(b, opts, declare)
	if err != nil {
		if errors.Is(err, workflow.ErrMissingOption) {
			return withExitCode(ExitInvalidInvocation, err)
		}
		if !f.dryRun {
			history := startHistory(output, state.Run{RunID: runID, Workflow: wf.Name, Jobs: jobs}, logger)
			history.fail(state.Counts{}, graphFailure(err))
		}
		return withExitCode(ExitConfigError, err)
	}
	if f.dryRun {
		return workflow.DryRun(a.out, g)
	}

	if err := os.MkdirAll(output, 0o755); err != nil {
		return withExitCode(ExitConfigError, fmt.Errorf("creating output folder: %w", err))
	}

	cache, err := core.OpenSQLiteCache(a.cfg.CachePath(output))
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Warn("closing task records", zap.Error(err))
		}
	}()
	var records core.Cache = cache
	if f.force {
		records = refreshCache{cache}
	}

	runner, err := dag.NewCoreRunner(core.NewRunner(output, records).WithLogger(logger))
	if err != nil {
		return withExitCode(ExitInternalError, err)
	}

	history := startHistory(output, state.Run{
		RunID:     runID,
		Workflow:  wf.Name,
		GraphHash: g.Hash().String(),
		Jobs:      jobs,
	}, logger)

	rec := trace.NewRecorder()
	result, err := workflow.Go(cmd.Context(), g, workflow.RunConfig{
		Jobs:   jobs,
		Runner: runner,
		Logger: logger,
		Sink:   rec,
	})
	if err != nil {
		// The trace holds whatever finished before the engine stopped.
		if f.tracePath != "" {
			if werr := trace.WriteFile(f.tracePath, runID, rec.Trace(g.Hash().String())); werr != nil {
				logger.Warn("writing partial trace", zap.Error(werr))
			}
		}
		history.fail(state.Counts{}, &state.SystemFailureError{Code: "EngineError", Message: err.Error(), Cause: err})
		return withExitCode(ExitInternalError, err)
	}

	if f.tracePath != "" {
		if err := trace.WriteFile(f.tracePath, runID, rec.Trace(g.Hash().String())); err != nil {
			return withExitCode(ExitInternalError, fmt.Errorf("writing trace: %w", err))
		}
	}
	if err := renderSummary(a.out, runID, g, result); err != nil {
		return withExitCode(ExitInternalError, err)
	}

	counts := countsOf(result)
	if failed := result.Failed(); len(failed) > 0 {
		cause := &state.ExecutionFailureError{
			TaskID:  failed[0],
			Code:    "TaskFailed",
			Message: fmt.Sprintf("exit code %d", result.ExitCode[failed[0]]),
		}
		history.fail(counts, cause)
		return &InvocationError{
			ExitCode: ExitTaskFailure,
			Message:  fmt.Sprintf("%d of %d tasks failed: %s", len(failed), g.Len(), strings.Join(failed, ", ")),
			Cause:    cause,
		}
	}
	history.succeed(counts)
	return nil
}

func buildGraph(b *dag.Builder, opts workflow.Options, declare declareFunc) (*dag.TaskGraph, error) {
	if err := declare(b, opts); err != nil {
		return nil, err
	}
	return b.Build()
}

// graphFailure classifies a declaration or validation error for the run
// history.
func graphFailure(err error) *state.GraphFailureError {
	code := "DeclarationFailed"
	switch {
	case errors.Is(err, dag.ErrCycleFound):
		code = "CycleFound"
	case errors.Is(err, dag.ErrInvalidGraph):
		code = "InvalidGraph"
	case errors.Is(err, core.ErrInvalidTask):
		code = "InvalidTask"
	}
	return &state.GraphFailureError{Code: code, Message: err.Error(), Cause: err}
}

// refreshCache never reports a record, so every task runs, but still stores
// the new records for the next invocation.
type refreshCache struct {
	core.Cache
}

func (refreshCache) Has(core.TaskHash) (bool, error)             { return false, nil }
func (refreshCache) Get(core.TaskHash) (*core.CacheEntry, error) { return nil, nil }

func countsOf(r *dag.GraphResult) state.Counts {
	c := r.Counts()
	return state.Counts{
		Executed: c[dag.TaskCompleted],
		Cached:   c[dag.TaskCached],
		Failed:   c[dag.TaskFailed],
		Skipped:  c[dag.TaskSkipped],
	}
}

// runHistory records the run in the output folder. Recording problems are
// logged and never fail the run.
type runHistory struct {
	rec    *state.Recorder
	logger *zap.Logger
}

func startHistory(output string, run state.Run, logger *zap.Logger) *runHistory {
	h := &runHistory{logger: logger}
	store, err := state.NewStore(output)
	if err == nil {
		h.rec, err = state.Start(store, run)
	}
	if err != nil {
		logger.Warn("run history unavailable", zap.Error(err))
	}
	return h
}

func (h *runHistory) succeed(counts state.Counts) {
	if h.rec == nil {
		return
	}
	if err := h.rec.Succeed(counts); err != nil {
		h.logger.Warn("recording run", zap.Error(err))
	}
}

func (h *runHistory) fail(counts state.Counts, cause error) {
	if h.rec == nil {
		return
	}
	if err := h.rec.Fail(counts, cause); err != nil {
		h.logger.Warn("recording run failure", zap.Error(err))
	}
}
