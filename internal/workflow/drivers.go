package workflow

import (
	"fmt"

	"bioweaver/internal/dag"
	"bioweaver/internal/tasks"
)

// MetagenomicOutput collects the final products of the shotgun workflow.
type MetagenomicOutput struct {
	QC         tasks.QCOutput
	Taxonomy   tasks.TaxonomyOutput
	Functional tasks.FunctionalOutput
}

// Metagenomic declares quality control, then taxonomic profiling of the
// cleaned reads, then functional profiling seeded with the taxonomic profiles.
func Metagenomic(b *dag.Builder, opts Options) (MetagenomicOutput, error) {
	opts, err := opts.normalize()
	if err != nil {
		return MetagenomicOutput{}, err
	}
	if opts.Databases.Kneaddata == "" {
		return MetagenomicOutput{}, fmt.Errorf("%w: kneaddata database", ErrMissingOption)
	}

	inputs, err := InputFiles(opts.Input, opts.InputExtension)
	if err != nil {
		return MetagenomicOutput{}, err
	}
	if len(inputs) == 0 {
		return MetagenomicOutput{}, fmt.Errorf("no .%s files in %s", opts.InputExtension, opts.Input)
	}

	var out MetagenomicOutput
	if out.QC, err = tasks.QualityControl(b, inputs, opts.Output, opts.InputExtension, opts.Threads, opts.Databases.Kneaddata); err != nil {
		return MetagenomicOutput{}, err
	}
	if out.Taxonomy, err = tasks.TaxonomicProfile(b, out.QC.Cleaned, opts.Output, opts.Threads); err != nil {
		return MetagenomicOutput{}, err
	}
	if out.Functional, err = tasks.FunctionalProfile(b, out.QC.Cleaned, opts.Output, opts.Threads, out.Taxonomy.Profiles); err != nil {
		return MetagenomicOutput{}, err
	}
	return out, nil
}

// AmpliconOutput collects the final products of the 16S workflow.
type AmpliconOutput struct {
	ReadCounts []string
	SeqTable   []string
	Tree       string
	Taxonomy   []string
}

// Amplicon declares the DADA2 stages in order. Greengenes is used when its
// path is set, otherwise SILVA and RDP must both be set.
func Amplicon(b *dag.Builder, opts Options) (AmpliconOutput, error) {
	opts, err := opts.normalize()
	if err != nil {
		return AmpliconOutput{}, err
	}
	db := opts.Databases
	useGG := db.Greengenes != ""
	if !useGG && (db.Silva == "" || db.RDP == "") {
		return AmpliconOutput{}, fmt.Errorf("%w: greengenes path, or both silva and rdp paths", ErrMissingOption)
	}

	in, out, scripts := opts.Input, opts.Output, opts.ScriptsDir
	var res AmpliconOutput

	filtered, err := tasks.FilterTrim(b, scripts, in, out)
	if err != nil {
		return AmpliconOutput{}, err
	}
	res.ReadCounts = append(res.ReadCounts, filtered...)
	if _, err := tasks.LearnError(b, scripts, out); err != nil {
		return AmpliconOutput{}, err
	}
	if _, err := tasks.MergePairedEnds(b, scripts, out, out); err != nil {
		return AmpliconOutput{}, err
	}
	if res.SeqTable, err = tasks.ConstSeqTable(b, scripts, out, out); err != nil {
		return AmpliconOutput{}, err
	}
	if _, err := tasks.Phylogeny(b, scripts, out); err != nil {
		return AmpliconOutput{}, err
	}
	tree, err := tasks.FastTree(b, out)
	if err != nil {
		return AmpliconOutput{}, err
	}
	res.Tree = tree[0]

	if useGG {
		res.Taxonomy, err = tasks.AssignTaxonomy(b, scripts, out, db.Greengenes)
	} else {
		res.Taxonomy, err = tasks.AssignSilvaRDP(b, scripts, out, db.RDP, db.Silva)
	}
	if err != nil {
		return AmpliconOutput{}, err
	}
	return res, nil
}
