package workflow

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bioweaver/internal/config"
	"bioweaver/internal/core"
	"bioweaver/internal/dag"
	"bioweaver/internal/trace"
)

func touch(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("@r\nACGT\n+\nIIII\n"), 0o644))
	}
}

func TestInputFiles_FiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	touch(t,
		filepath.Join(dir, "b.fastq"),
		filepath.Join(dir, "a.fastq.gz"),
		filepath.Join(dir, "notes.txt"),
		filepath.Join(dir, "c.fastqx"),
	)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "d.fastq"), 0o755))

	got, err := InputFiles(dir, "fastq")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.fastq.gz"), filepath.Join(dir, "b.fastq")}, got)

	_, err = InputFiles(filepath.Join(dir, "missing"), "fastq")
	assert.Error(t, err)
}

func TestMetagenomic_ChainsStages(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	touch(t, filepath.Join(in, "s1.fastq"), filepath.Join(in, "s2.fastq"))

	b := dag.NewBuilder()
	res, err := Metagenomic(b, Options{
		Input:     in,
		Output:    out,
		Threads:   3,
		Databases: config.Databases{Kneaddata: "/db/hg38"},
	})
	require.NoError(t, err)

	// Quality control reads the discovered inputs.
	qc, ok := b.Task("kneaddata_s1")
	require.True(t, ok)
	assert.Equal(t, []string{filepath.Join(in, "s1.fastq")}, qc.Depends)

	// Taxonomic profiling reads what quality control wrote.
	tax, ok := b.Task("metaphlan2_s1")
	require.True(t, ok)
	assert.Equal(t, []string{res.QC.Cleaned[0]}, tax.Depends)

	// Functional profiling reads the cleaned reads and the taxonomic profile.
	fn, ok := b.Task("humann2_s2")
	require.True(t, ok)
	assert.Equal(t, []string{res.QC.Cleaned[1], res.Taxonomy.Profiles[1]}, fn.Depends)

	g, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(in, "s1.fastq"), filepath.Join(in, "s2.fastq")}, g.ExternalInputs())
	// 2 kneaddata + count table + 2 metaphlan + merge + 2 humann2 + 2 regroup + 3 joins
	assert.Equal(t, 13, g.Len())
}

func TestMetagenomic_RequiresKneaddataDatabase(t *testing.T) {
	_, err := Metagenomic(dag.NewBuilder(), Options{Input: t.TempDir(), Output: t.TempDir()})
	assert.ErrorIs(t, err, ErrMissingOption)
}

func TestMetagenomic_NoInputs(t *testing.T) {
	_, err := Metagenomic(dag.NewBuilder(), Options{
		Input:     t.TempDir(),
		Output:    t.TempDir(),
		Databases: config.Databases{Kneaddata: "/db"},
	})
	assert.ErrorContains(t, err, "no .fastq files")
}

func TestAmplicon_ChainsStagesAndPicksDatabase(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()

	b := dag.NewBuilder()
	res, err := Amplicon(b, Options{Input: in, Output: out, Databases: config.Databases{Greengenes: "/db/gg"}})
	require.NoError(t, err)

	first, _ := b.Task("filter_and_trim")
	assert.Equal(t, []string{in}, first.Depends)
	assert.Equal(t, []string{in, out}, first.Args)

	merge, _ := b.Task("dereplicate_and_merge")
	assert.Equal(t, []string{out, out}, merge.Args)

	g, err := b.Build()
	require.NoError(t, err)
	order := g.TopologicalOrder()
	pos := make(map[string]int, len(order))
	for i, n := range order {
		pos[n] = i
	}
	chain := []string{"filter_and_trim", "learn_error_rates", "dereplicate_and_merge", "construct_sequence_table", "phylogeny", "fasttree"}
	for i := 1; i < len(chain); i++ {
		assert.Less(t, pos[chain[i-1]], pos[chain[i]], "%s before %s", chain[i-1], chain[i])
	}
	assert.Less(t, pos["construct_sequence_table"], pos["assign_taxonomy"])
	_, silva := b.Task("assign_silva_rdp")
	assert.False(t, silva)
	assert.Equal(t, filepath.Join(out, "closed_reference.tre"), res.Tree)

	b2 := dag.NewBuilder()
	_, err = Amplicon(b2, Options{Input: in, Output: out, Databases: config.Databases{Silva: "/db/silva", RDP: "/db/rdp"}})
	require.NoError(t, err)
	_, silva = b2.Task("assign_silva_rdp")
	assert.True(t, silva)

	_, err = Amplicon(dag.NewBuilder(), Options{Input: in, Output: out, Databases: config.Databases{Silva: "/db/silva"}})
	assert.ErrorIs(t, err, ErrMissingOption)
}

func TestDryRun_PrintsPlan(t *testing.T) {
	b := dag.NewBuilder()
	_, err := Amplicon(b, Options{Input: "/data/in", Output: "/data/out", Databases: config.Databases{Greengenes: "/db/gg"}})
	require.NoError(t, err)
	g, err := b.Build()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, DryRun(&buf, g))
	text := buf.String()
	assert.Contains(t, text, "# 7 tasks")
	assert.Contains(t, text, "# input /data/in\n")
	assert.Contains(t, text, "FastTree -gtr -nt /data/out/all_samples_clustalo_aligned_nonchimera.fasta > /data/out/closed_reference.tre")
	assert.Less(t, strings.Index(text, "filter_and_trim"), strings.Index(text, "learn_error_rates"))
}

// fakeTool writes an executable that creates each named file under the
// folder given by --output_dir=.
func fakeTool(t *testing.T, dir, name string, outputs ...string) {
	t.Helper()
	var script strings.Builder
	script.WriteString("#!/bin/sh\nfor a in \"$@\"; do case \"$a\" in --output_dir=*) out=\"${a#--output_dir=}\";; esac; done\n")
	for _, o := range outputs {
		fmt.Fprintf(&script, "echo %s > \"$out/%s\"\n", name, o)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(script.String()), 0o755))
}

func TestGo_AmpliconEndToEndWithFakeTools(t *testing.T) {
	layouts := map[string]func(t *testing.T) (in, out string){
		"separate folders": func(t *testing.T) (string, string) {
			return t.TempDir(), filepath.Join(t.TempDir(), "out")
		},
		"output inside input": func(t *testing.T) (string, string) {
			in := t.TempDir()
			return in, filepath.Join(in, "out")
		},
	}
	for name, layout := range layouts {
		t.Run(name, func(t *testing.T) {
			in, out := layout(t)
			runAmpliconTwice(t, in, out)
		})
	}
}

func runAmpliconTwice(t *testing.T, in, out string) {
	t.Helper()
	scripts := t.TempDir()
	fakeTool(t, scripts, "filter_and_trim.R", "Read_counts_after_filtering.tsv")
	fakeTool(t, scripts, "learn_error_rates.R", "error_rates_F.rds", "error_rates_R.rds")
	fakeTool(t, scripts, "merge_paired_ends.R", "mergers.rds")
	fakeTool(t, scripts, "const_seq_table.R", "Read_counts_at_each_step.tsv", "seqtab_final.rds")
	fakeTool(t, scripts, "phylogeny.R", "all_samples_clustalo_aligned_nonchimera.fasta")
	fakeTool(t, scripts, "assign_taxonomy.R", "all_samples_GG13-8-taxonomy.tsv", "all_samples_taxonomy_closed_reference.tsv")

	bin := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(bin, "FastTree"), []byte("#!/bin/sh\necho \"(tree:$3);\"\n"), 0o755))
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))

	touch(t, filepath.Join(in, "S1_R1.fastq"))

	build := func() *dag.TaskGraph {
		b := dag.NewBuilder()
		_, err := Amplicon(b, Options{Input: in, Output: out, ScriptsDir: scripts, Databases: config.Databases{Greengenes: "/db/gg"}})
		require.NoError(t, err)
		g, err := b.Build()
		require.NoError(t, err)
		return g
	}

	cache, err := core.OpenSQLiteCache(filepath.Join(out, config.DefaultCacheDB))
	require.NoError(t, err)
	defer cache.Close()
	runner, err := dag.NewCoreRunner(core.NewRunner("", cache))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	rec := trace.NewRecorder()
	first, err := Go(ctx, build(), RunConfig{Jobs: 2, Runner: runner, Sink: rec})
	require.NoError(t, err)
	require.True(t, first.Succeeded(), "states=%v stderr=%q", first.FinalState, first.Stderr)
	assert.Len(t, first.ExecutionOrder, 7)

	tree, err := os.ReadFile(filepath.Join(out, "closed_reference.tre"))
	require.NoError(t, err)
	assert.Contains(t, string(tree), "all_samples_clustalo_aligned_nonchimera.fasta")

	second, err := Go(ctx, build(), RunConfig{Jobs: 1, Runner: runner})
	require.NoError(t, err)
	assert.Empty(t, second.ExecutionOrder, "every task is up to date")
	assert.Equal(t, 7, second.Counts()[dag.TaskCached])
}
