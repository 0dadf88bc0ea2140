// Package tasks declares the pipeline stages as tasks on a dag.Builder.
//
// Each function computes its fixed dependency and target paths from the
// folders it is given, registers exactly one task (or one per sample for the
// shotgun stages) and returns the target paths so the caller can thread them
// into the next stage. Nothing runs at declaration time.
package tasks

import (
	"path/filepath"

	"bioweaver/internal/core"
	"bioweaver/internal/dag"
)

// DefaultScriptsDir holds the DADA2 R scripts.
const DefaultScriptsDir = "biobakery_workflows/scripts"

// Files written by the DADA2 amplicon stages, relative to the output folder.
const (
	ReadCountsAfterFiltering = "Read_counts_after_filtering.tsv"
	ErrorRatesForward        = "error_rates_F.rds"
	ErrorRatesReverse        = "error_rates_R.rds"
	Mergers                  = "mergers.rds"
	ReadCountsAtEachStep     = "Read_counts_at_each_step.tsv"
	SeqTabFinal              = "seqtab_final.rds"
	AlignedFasta             = "all_samples_clustalo_aligned_nonchimera.fasta"
	ClosedReferenceTree      = "closed_reference.tre"
	GreengenesTaxonomy       = "all_samples_GG13-8-taxonomy.tsv"
	ClosedReferenceTaxonomy  = "all_samples_taxonomy_closed_reference.tsv"
	SilvaTaxonomy            = "all_samples_taxonomy_closed_reference_silva.tsv"
	RDPTaxonomy              = "all_samples_taxonomy_closed_reference_rdp.tsv"
)

func script(scripts, name string) string {
	if scripts == "" {
		scripts = DefaultScriptsDir
	}
	return filepath.Join(scripts, name)
}

func add(b *dag.Builder, name string, cmd *core.Command, depends, targets, args []string) ([]string, error) {
	t, err := b.AddTask(name, cmd, depends, targets, args)
	if err != nil {
		return nil, err
	}
	return t.Targets, nil
}

// FilterTrim filters reads by quality and trims them. It depends on the input
// folder itself and writes the per-sample read counts after filtering.
func FilterTrim(b *dag.Builder, scripts, in, out string) ([]string, error) {
	cmd := core.NewCommand(script(scripts, "filter_and_trim.R")).
		Join("--input_dir=", core.Arg(0)).
		Join("--output_dir=", core.Arg(1))
	return add(b, "filter_and_trim", cmd,
		[]string{in},
		[]string{filepath.Join(out, ReadCountsAfterFiltering)},
		[]string{in, out},
	)
}

// LearnError learns forward and reverse error rates.
func LearnError(b *dag.Builder, scripts, out string) ([]string, error) {
	cmd := core.NewCommand(script(scripts, "learn_error_rates.R")).
		Join("--output_dir=", core.Arg(0))
	return add(b, "learn_error_rates", cmd,
		[]string{filepath.Join(out, ReadCountsAfterFiltering)},
		[]string{filepath.Join(out, ErrorRatesForward), filepath.Join(out, ErrorRatesReverse)},
		[]string{out},
	)
}

// MergePairedEnds dereplicates and merges paired reads.
func MergePairedEnds(b *dag.Builder, scripts, in, out string) ([]string, error) {
	cmd := core.NewCommand(script(scripts, "merge_paired_ends.R")).
		Join("--input_dir=", core.Arg(0)).
		Join("--output_dir=", core.Arg(1))
	return add(b, "dereplicate_and_merge", cmd,
		[]string{filepath.Join(out, ErrorRatesReverse)},
		[]string{filepath.Join(out, Mergers)},
		[]string{in, out},
	)
}

// ConstSeqTable builds the sequence table and removes chimeras.
func ConstSeqTable(b *dag.Builder, scripts, in, out string) ([]string, error) {
	cmd := core.NewCommand(script(scripts, "const_seq_table.R")).
		Join("--input_dir=", core.Arg(0)).
		Join("--output_dir=", core.Arg(1))
	return add(b, "construct_sequence_table", cmd,
		[]string{filepath.Join(out, Mergers)},
		[]string{filepath.Join(out, ReadCountsAtEachStep), filepath.Join(out, SeqTabFinal)},
		[]string{in, out},
	)
}

// Phylogeny aligns the sequence variants.
func Phylogeny(b *dag.Builder, scripts, out string) ([]string, error) {
	cmd := core.NewCommand(script(scripts, "phylogeny.R")).
		Join("--output_dir=", core.Arg(0))
	return add(b, "phylogeny", cmd,
		[]string{filepath.Join(out, SeqTabFinal)},
		[]string{filepath.Join(out, AlignedFasta)},
		[]string{out},
	)
}

// FastTree builds the phylogenetic tree from the alignment.
func FastTree(b *dag.Builder, out string) ([]string, error) {
	cmd := core.NewCommand("FastTree").
		Lit("-gtr", "-nt").
		Ref(core.Depend(0)).
		StdoutTo(0)
	return add(b, "fasttree", cmd,
		[]string{filepath.Join(out, AlignedFasta)},
		[]string{filepath.Join(out, ClosedReferenceTree)},
		[]string{out},
	)
}

// AssignTaxonomy assigns taxonomy against the Greengenes database at gg.
func AssignTaxonomy(b *dag.Builder, scripts, out, gg string) ([]string, error) {
	cmd := core.NewCommand(script(scripts, "assign_taxonomy.R")).
		Join("--output_dir=", core.Arg(0)).
		Join("--gg_path=", core.Arg(1))
	return add(b, "assign_taxonomy", cmd,
		[]string{filepath.Join(out, SeqTabFinal)},
		[]string{filepath.Join(out, GreengenesTaxonomy), filepath.Join(out, ClosedReferenceTaxonomy)},
		[]string{out, gg},
	)
}

// AssignSilvaRDP assigns taxonomy against the SILVA and RDP databases.
func AssignSilvaRDP(b *dag.Builder, scripts, out, rdp, silva string) ([]string, error) {
	cmd := core.NewCommand(script(scripts, "assign_silva_rdp.R")).
		Join("--output_dir=", core.Arg(0)).
		Join("--rdp_path=", core.Arg(1)).
		Join("--silva_path=", core.Arg(2))
	return add(b, "assign_silva_rdp", cmd,
		[]string{filepath.Join(out, SeqTabFinal)},
		[]string{filepath.Join(out, SilvaTaxonomy), filepath.Join(out, RDPTaxonomy)},
		[]string{out, rdp, silva},
	)
}
