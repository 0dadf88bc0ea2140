package tasks

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"bioweaver/internal/core"
	"bioweaver/internal/dag"
)

// Folders under the output folder used by the shotgun stages.
const (
	kneaddataMain   = "kneaddata/main"
	kneaddataMerged = "kneaddata/merged"
	metaphlanMain   = "metaphlan2/main"
	metaphlanMerged = "metaphlan2/merged"
	humannMain      = "humann2/main"
	humannMerged    = "humann2/merged"
)

// KneaddataReadCountTable is the merged read count table, relative to the
// output folder. The QC report reads it.
const KneaddataReadCountTable = kneaddataMerged + "/kneaddata_read_count_table.tsv"

// QCOutput is what QualityControl declares.
type QCOutput struct {
	// Cleaned holds one filtered fastq per input, in input order.
	Cleaned    []string
	CountTable string
}

// TaxonomyOutput is what TaxonomicProfile declares.
type TaxonomyOutput struct {
	Merged   string
	Profiles []string
	SAMs     []string
}

// FunctionalOutput is what FunctionalProfile declares.
type FunctionalOutput struct {
	GeneFamilies  string
	ECs           string
	PathAbundance string
}

// SampleName strips the folder, a trailing .gz and the extension ext from path.
// Without a matching ext the last extension is removed.
func SampleName(path, ext string) string {
	base := strings.TrimSuffix(filepath.Base(path), ".gz")
	if ext != "" {
		if trimmed := strings.TrimSuffix(base, "."+strings.TrimPrefix(ext, ".")); trimmed != base {
			return trimmed
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// QualityControl declares one kneaddata task per input and a final task that
// tallies the reads kept at each filtering step.
func QualityControl(b *dag.Builder, inputs []string, out, ext string, threads int, db string) (QCOutput, error) {
	if len(inputs) == 0 {
		return QCOutput{}, fmt.Errorf("quality control: no input files")
	}
	if db == "" {
		return QCOutput{}, fmt.Errorf("quality control: kneaddata database is required")
	}

	mainDir := filepath.Join(out, kneaddataMain)
	var res QCOutput
	for _, in := range inputs {
		sample := SampleName(in, ext)
		cmd := core.NewCommand("kneaddata").
			Pair("--input", core.Depend(0)).
			Pair("--output", core.Arg(0)).
			Pair("--threads", core.Arg(1)).
			Pair("--output-prefix", core.Arg(2)).
			Pair("--reference-db", core.Arg(3))
		targets, err := add(b, "kneaddata_"+sample, cmd,
			[]string{in},
			[]string{filepath.Join(mainDir, sample+".fastq")},
			[]string{mainDir, strconv.Itoa(threads), sample, db},
		)
		if err != nil {
			return QCOutput{}, err
		}
		res.Cleaned = append(res.Cleaned, targets[0])
	}

	cmd := core.NewCommand("kneaddata_read_count_table").
		Pair("--input", core.Arg(0)).
		Pair("--output", core.Target(0))
	targets, err := add(b, "kneaddata_read_count_table", cmd,
		res.Cleaned,
		[]string{filepath.Join(out, KneaddataReadCountTable)},
		[]string{mainDir},
	)
	if err != nil {
		return QCOutput{}, err
	}
	res.CountTable = targets[0]
	return res, nil
}

// TaxonomicProfile declares one MetaPhlAn2 task per cleaned file and a merge
// of all profiles into one table.
func TaxonomicProfile(b *dag.Builder, cleaned []string, out string, threads int) (TaxonomyOutput, error) {
	mainDir := filepath.Join(out, metaphlanMain)
	var res TaxonomyOutput
	for _, in := range cleaned {
		sample := SampleName(in, "fastq")
		cmd := core.NewCommand("metaphlan2.py").
			Ref(core.Depend(0)).
			Lit("--input_type", "fastq").
			Pair("--output_file", core.Target(0)).
			Pair("--samout", core.Target(1)).
			Pair("--nproc", core.Arg(0))
		targets, err := add(b, "metaphlan2_"+sample, cmd,
			[]string{in},
			[]string{
				filepath.Join(mainDir, sample+"_taxonomic_profile.tsv"),
				filepath.Join(mainDir, sample+"_bowtie2.sam"),
			},
			[]string{strconv.Itoa(threads)},
		)
		if err != nil {
			return TaxonomyOutput{}, err
		}
		res.Profiles = append(res.Profiles, targets[0])
		res.SAMs = append(res.SAMs, targets[1])
	}

	cmd := core.NewCommand("merge_metaphlan_tables.py").
		Ref(core.AllDepends()).
		StdoutTo(0)
	targets, err := add(b, "merge_metaphlan_tables", cmd,
		res.Profiles,
		[]string{filepath.Join(out, metaphlanMerged, "taxonomic_profiles.tsv")},
		nil,
	)
	if err != nil {
		return TaxonomyOutput{}, err
	}
	res.Merged = targets[0]
	return res, nil
}

// FunctionalProfile declares HUMAnN2 per sample, seeded with that sample's
// taxonomic profile, regroups gene families to ECs and joins each table kind.
// profiles must be parallel to cleaned.
func FunctionalProfile(b *dag.Builder, cleaned []string, out string, threads int, profiles []string) (FunctionalOutput, error) {
	if len(profiles) != len(cleaned) {
		return FunctionalOutput{}, fmt.Errorf("functional profile: %d taxonomic profiles for %d samples", len(profiles), len(cleaned))
	}

	mainDir := filepath.Join(out, humannMain)
	var genefamilies, pathabundance, ecs []string
	for i, in := range cleaned {
		sample := SampleName(in, "fastq")
		cmd := core.NewCommand("humann2").
			Pair("--input", core.Depend(0)).
			Pair("--output", core.Arg(0)).
			Pair("--output-basename", core.Arg(1)).
			Pair("--o-log", core.Target(3)).
			Pair("--threads", core.Arg(2)).
			Pair("--taxonomic-profile", core.Depend(1))
		targets, err := add(b, "humann2_"+sample, cmd,
			[]string{in, profiles[i]},
			[]string{
				filepath.Join(mainDir, sample+"_genefamilies.tsv"),
				filepath.Join(mainDir, sample+"_pathabundance.tsv"),
				filepath.Join(mainDir, sample+"_pathcoverage.tsv"),
				filepath.Join(mainDir, sample+".log"),
			},
			[]string{mainDir, sample, strconv.Itoa(threads)},
		)
		if err != nil {
			return FunctionalOutput{}, err
		}
		genefamilies = append(genefamilies, targets[0])
		pathabundance = append(pathabundance, targets[1])

		regroup := core.NewCommand("humann2_regroup_table").
			Pair("--input", core.Depend(0)).
			Pair("--output", core.Target(0)).
			Lit("--groups", "uniref90_level4ec")
		ec, err := add(b, "humann2_regroup_"+sample, regroup,
			[]string{targets[0]},
			[]string{filepath.Join(mainDir, sample+"_ecs.tsv")},
			nil,
		)
		if err != nil {
			return FunctionalOutput{}, err
		}
		ecs = append(ecs, ec[0])
	}

	var res FunctionalOutput
	for _, j := range []struct {
		kind  string
		files []string
		dst   *string
	}{
		{"genefamilies", genefamilies, &res.GeneFamilies},
		{"ecs", ecs, &res.ECs},
		{"pathabundance", pathabundance, &res.PathAbundance},
	} {
		cmd := core.NewCommand("humann2_join_tables").
			Pair("--input", core.Arg(0)).
			Pair("--output", core.Target(0)).
			Pair("--file_name", core.Arg(1))
		targets, err := add(b, "humann2_join_"+j.kind, cmd,
			j.files,
			[]string{filepath.Join(out, humannMerged, j.kind+".tsv")},
			[]string{mainDir, j.kind},
		)
		if err != nil {
			return FunctionalOutput{}, err
		}
		*j.dst = targets[0]
	}
	return res, nil
}
