package report

import (
	"fmt"
)

// Data files written by the QC report.
const (
	QCCountsPairedFile     = "qc_counts_pairs_table.tsv"
	QCCountsOrphanFile     = "qc_counts_orphans_table.tsv"
	MicrobialCountsFile    = "microbial_counts_table.tsv"
	RNAQCCountsPairedFile  = "rna_qc_counts_pairs_table.tsv"
	RNAQCCountsOrphanFile  = "rna_qc_counts_orphans_table.tsv"
	RNAMicrobialCountsFile = "rna_microbial_counts_table.tsv"
)

// readCounts selects columns of a kneaddata read count table and renames them.
type readCounts struct {
	cols  []int
	names []string
}

var (
	dnaPaired = readCounts{
		cols:  []int{0, 2, 6},
		names: []string{"Raw", "Trim", "hg38"},
	}
	dnaOrphan = readCounts{
		cols:  []int{4, 5, 8, 9},
		names: []string{"Trim orphan1", "Trim orphan2", "hg38 orphan1", "hg38 orphan2"},
	}
	rnaPaired = readCounts{
		cols:  []int{0, 2, 6, 14},
		names: []string{"Raw", "Trim", "hg38", "hg38 mRNA"},
	}
	rnaOrphan = readCounts{
		cols: []int{4, 5, 10, 11, 16, 17},
		names: []string{"Trim orphan1", "Trim orphan2", "hg38 orphan1", "hg38 orphan2",
			"mRNA orphan1", "mRNA orphan2"},
	}
)

func (rc readCounts) read(path string) (*Table, error) {
	t, err := ReadTable(path, rc.cols...)
	if err != nil {
		return nil, err
	}
	if err := t.Rename(rc.names...); err != nil {
		return nil, err
	}
	return t, nil
}

// nucleicAcid is one half of the paired DNA/RNA report.
type nucleicAcid struct {
	label        string
	countsVar    string
	paired       readCounts
	orphan       readCounts
	rna          bool
	pairedFile   string
	orphanFile   string
	microbesFile string
}

var (
	dnaSection = nucleicAcid{
		label: "DNA", countsVar: VarDNAReadCounts, paired: dnaPaired, orphan: dnaOrphan,
		pairedFile: QCCountsPairedFile, orphanFile: QCCountsOrphanFile, microbesFile: MicrobialCountsFile,
	}
	rnaSection = nucleicAcid{
		label: "RNA", countsVar: VarRNAReadCounts, paired: rnaPaired, orphan: rnaOrphan, rna: true,
		pairedFile: RNAQCCountsPairedFile, orphanFile: RNAQCCountsOrphanFile, microbesFile: RNAMicrobialCountsFile,
	}
)

type sectionData struct {
	paired, orphan *Table
}

// QualityControlPairedDNARNA renders the quality control report for paired
// DNA and RNA samples from the kneaddata read count tables named by the
// dna_read_counts and rna_read_counts variables.
func QualityControlPairedDNARNA(doc *Document) error {
	sections := []nucleicAcid{dnaSection, rnaSection}
	data := make([]sectionData, len(sections))
	total := 0
	for i, s := range sections {
		path, err := doc.Var(s.countsVar)
		if err != nil {
			return err
		}
		if data[i].paired, err = s.paired.read(path); err != nil {
			return err
		}
		if data[i].orphan, err = s.orphan.read(path); err != nil {
			return err
		}
		total += len(data[i].paired.Samples)
	}

	doc.Heading(1, "Quality Control")
	doc.Paragraph(fmt.Sprintf("This report section covers %d paired-end samples. "+
		"Reads were trimmed, then reads matching the human genome (hg38) were removed. "+
		"RNA reads were also filtered against the human transcriptome (hg38 mRNA).", total))
	doc.Paragraph("Counts are split into paired and orphan reads. When only one read of a " +
		"pair passes a filtering step the surviving read is an orphan. Columns are:")
	doc.Bullets(
		"raw: untouched fastq reads.",
		"trim: reads remaining after trimming bases with Phred score < 20; reads trimmed below 70% of their length are dropped.",
		"hg38: reads remaining after depletion against the human genome (hg38).",
		"mRNA: reads remaining after depletion against hg38 and the human transcriptome (RNA samples only).",
	)

	for i, s := range sections {
		if err := qcSection(doc, s, data[i]); err != nil {
			return err
		}
	}
	doc.PageBreak()
	return doc.Err()
}

func qcSection(doc *Document, s nucleicAcid, d sectionData) error {
	doc.Heading(2, s.label+" Samples Quality Control")
	doc.Heading(3, s.label+" Samples Tables of Filtered Reads")

	pairedTitle := s.label + " Paired end reads"
	orphanTitle := s.label + " Orphan reads"

	path, err := doc.WriteTable(s.pairedFile, d.paired)
	if err != nil {
		return err
	}
	doc.ShowTable(d.paired, pairedTitle, path, true)

	if path, err = doc.WriteTable(s.orphanFile, d.orphan); err != nil {
		return err
	}
	doc.ShowTable(d.orphan, orphanTitle, path, true)
	doc.PageBreak()

	microbes, err := MicrobialReadProportion(d.paired, d.orphan, s.rna)
	if err != nil {
		return err
	}
	if path, err = doc.WriteTable(s.microbesFile, microbes); err != nil {
		return err
	}
	doc.ShowTable(microbes, s.label+" microbial read proportion", path, false)
	doc.Paragraph("The microbial read proportion is the share of reads left after host " +
		"depletion relative to the trimmed and to the raw reads, counting both mates of each pair.")

	doc.Heading(3, s.label+" Samples Plots of Filtered Reads")
	for _, c := range []struct {
		t     *Table
		title string
	}{{d.paired, pairedTitle}, {d.orphan, orphanTitle}} {
		chart := ChartFromTable(c.t, c.title)
		chart.YLabel = "Read count (in millions)"
		chart.LegendTitle = "Filter"
		chart.YAxisInMillions = true
		if err := doc.PlotGroupedBarChart(chart); err != nil {
			return err
		}
	}
	return nil
}
