package tasks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bioweaver/internal/dag"
)

func TestFilterTrim_TargetsAndTemplate(t *testing.T) {
	b := dag.NewBuilder()
	targets, err := FilterTrim(b, "", "raw", "X")
	require.NoError(t, err)
	assert.Equal(t, []string{"X/Read_counts_after_filtering.tsv"}, targets)

	task, ok := b.Task("filter_and_trim")
	require.True(t, ok)
	assert.Equal(t, []string{"raw"}, task.Depends)
	assert.Equal(t, []string{"raw", "X"}, task.Args)
	assert.Equal(t,
		"biobakery_workflows/scripts/filter_and_trim.R --input_dir=[args[0]] --output_dir=[args[1]]",
		task.Template())
	assert.Equal(t,
		[]string{"biobakery_workflows/scripts/filter_and_trim.R", "--input_dir=raw", "--output_dir=X"},
		task.Argv())
}

func TestFilterTrim_CurrentFolderAsInput(t *testing.T) {
	b := dag.NewBuilder()
	_, err := FilterTrim(b, "", ".", "out")
	require.NoError(t, err)

	task, _ := b.Task("filter_and_trim")
	assert.Equal(t, []string{"."}, task.Depends)
	assert.Equal(t, "--input_dir=.", task.Argv()[1])

	g, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"."}, g.ExternalInputs())
}

func TestAmpliconStages_FixedSuffixes(t *testing.T) {
	tests := []struct {
		name    string
		declare func(b *dag.Builder) ([]string, error)
		depends []string
		targets []string
	}{
		{
			name:    "learn_error_rates",
			declare: func(b *dag.Builder) ([]string, error) { return LearnError(b, "", "X") },
			depends: []string{"X/Read_counts_after_filtering.tsv"},
			targets: []string{"X/error_rates_F.rds", "X/error_rates_R.rds"},
		},
		{
			name:    "dereplicate_and_merge",
			declare: func(b *dag.Builder) ([]string, error) { return MergePairedEnds(b, "", "X", "X") },
			depends: []string{"X/error_rates_R.rds"},
			targets: []string{"X/mergers.rds"},
		},
		{
			name:    "construct_sequence_table",
			declare: func(b *dag.Builder) ([]string, error) { return ConstSeqTable(b, "", "X", "X") },
			depends: []string{"X/mergers.rds"},
			targets: []string{"X/Read_counts_at_each_step.tsv", "X/seqtab_final.rds"},
		},
		{
			name:    "phylogeny",
			declare: func(b *dag.Builder) ([]string, error) { return Phylogeny(b, "", "X") },
			depends: []string{"X/seqtab_final.rds"},
			targets: []string{"X/all_samples_clustalo_aligned_nonchimera.fasta"},
		},
		{
			name:    "fasttree",
			declare: func(b *dag.Builder) ([]string, error) { return FastTree(b, "X") },
			depends: []string{"X/all_samples_clustalo_aligned_nonchimera.fasta"},
			targets: []string{"X/closed_reference.tre"},
		},
		{
			name:    "assign_taxonomy",
			declare: func(b *dag.Builder) ([]string, error) { return AssignTaxonomy(b, "", "X", "/db/gg") },
			depends: []string{"X/seqtab_final.rds"},
			targets: []string{"X/all_samples_GG13-8-taxonomy.tsv", "X/all_samples_taxonomy_closed_reference.tsv"},
		},
		{
			name:    "assign_silva_rdp",
			declare: func(b *dag.Builder) ([]string, error) { return AssignSilvaRDP(b, "", "X", "/db/rdp", "/db/silva") },
			depends: []string{"X/seqtab_final.rds"},
			targets: []string{"X/all_samples_taxonomy_closed_reference_silva.tsv", "X/all_samples_taxonomy_closed_reference_rdp.tsv"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := dag.NewBuilder()
			targets, err := tc.declare(b)
			require.NoError(t, err)
			assert.Equal(t, tc.targets, targets)
			require.Equal(t, 1, b.Len(), "exactly one task per declaration")

			task, ok := b.Task(tc.name)
			require.True(t, ok)
			assert.Equal(t, tc.depends, task.Depends)
		})
	}
}

func TestFastTree_RedirectsStdout(t *testing.T) {
	b := dag.NewBuilder()
	_, err := FastTree(b, "out")
	require.NoError(t, err)

	task, _ := b.Task("fasttree")
	assert.Equal(t, "FastTree -gtr -nt [depends[0]] > [targets[0]]", task.Template())
	assert.Equal(t, []string{"FastTree", "-gtr", "-nt", "out/all_samples_clustalo_aligned_nonchimera.fasta"}, task.Argv())
	assert.Equal(t, "out/closed_reference.tre", task.StdoutPath())
}

func TestAssignSilvaRDP_ArgumentOrder(t *testing.T) {
	b := dag.NewBuilder()
	_, err := AssignSilvaRDP(b, "/opt/scripts", "out", "/db/rdp", "/db/silva")
	require.NoError(t, err)

	task, _ := b.Task("assign_silva_rdp")
	assert.Equal(t, []string{
		"/opt/scripts/assign_silva_rdp.R",
		"--output_dir=out",
		"--rdp_path=/db/rdp",
		"--silva_path=/db/silva",
	}, task.Argv())
}

func TestAmpliconChain_BuildsLinearGraph(t *testing.T) {
	b := dag.NewBuilder()
	_, err := FilterTrim(b, "", "in", "out")
	require.NoError(t, err)
	_, err = LearnError(b, "", "out")
	require.NoError(t, err)
	_, err = MergePairedEnds(b, "", "out", "out")
	require.NoError(t, err)
	_, err = ConstSeqTable(b, "", "out", "out")
	require.NoError(t, err)
	_, err = Phylogeny(b, "", "out")
	require.NoError(t, err)
	_, err = FastTree(b, "out")
	require.NoError(t, err)
	_, err = AssignTaxonomy(b, "", "out", "gg")
	require.NoError(t, err)

	g, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"in"}, g.ExternalInputs())
	// Phylogeny and taxonomy share a depth, so only the linear prefix is fixed.
	assert.Equal(t, []string{
		"filter_and_trim",
		"learn_error_rates",
		"dereplicate_and_merge",
		"construct_sequence_table",
	}, g.TopologicalOrder()[:4])
	assert.Equal(t, []string{"construct_sequence_table"}, g.Upstream("assign_taxonomy"))
	assert.Equal(t, []string{"phylogeny"}, g.Upstream("fasttree"))
}
