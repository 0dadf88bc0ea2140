package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"bioweaver/internal/report"
)

// QCReportFile is the markdown file written by "report qc".
const QCReportFile = "qc_report.md"

func (a *app) newReportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate reports from workflow outputs",
		Args:  noPositionalArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(a.newQCReportCommand())
	return cmd
}

type qcReportFlags struct {
	dnaReadCounts string
	rnaReadCounts string
	format        string
	output        string
}

func (a *app) newQCReportCommand() *cobra.Command {
	f := &qcReportFlags{}
	cmd := &cobra.Command{
		Use:   "qc",
		Short: "Quality control report for paired DNA and RNA samples",
		Long: `Reads the kneaddata read count tables of the DNA and RNA samples and writes
a markdown report with read count tables, microbial read proportions and
bar charts, plus the reshaped tables under data/ and the charts under
figures/ of the output folder.`,
		Args: noPositionalArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runQCReport(cmd, f)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&f.dnaReadCounts, "dna-read-counts", "", "kneaddata read count table of the DNA samples (required)")
	fs.StringVar(&f.rnaReadCounts, "rna-read-counts", "", "kneaddata read count table of the RNA samples (required)")
	fs.StringVar(&f.format, "format", "", "target document format, pdf or html (default from config)")
	fs.StringVarP(&f.output, "output", "o", "", "folder to write the report to (required)")
	return cmd
}

func (a *app) runQCReport(cmd *cobra.Command, f *qcReportFlags) error {
	switch {
	case f.dnaReadCounts == "":
		return invalidInvocationf("--dna-read-counts is required")
	case f.rnaReadCounts == "":
		return invalidInvocationf("--rna-read-counts is required")
	case f.output == "":
		return invalidInvocationf("--output is required")
	}
	format := a.cfg.Report.Format
	if cmd.Flags().Changed("format") {
		format = f.format
	}
	if format != "pdf" && format != "html" {
		return invalidInvocationf("--format must be pdf or html, got %q", format)
	}

	if err := os.MkdirAll(f.output, 0o755); err != nil {
		return withExitCode(ExitConfigError, fmt.Errorf("creating output folder: %w", err))
	}
	path := filepath.Join(f.output, QCReportFile)
	out, err := os.Create(path)
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	doc := report.NewDocument(map[string]string{
		report.VarFormat:        format,
		report.VarDNAReadCounts: f.dnaReadCounts,
		report.VarRNAReadCounts: f.rnaReadCounts,
	}, f.output, out)
	doc.MaxRows = a.cfg.Report.MaxRows
	doc.Logger = a.logger

	err = report.QualityControlPairedDNARNA(doc)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return withExitCode(ExitConfigError, fmt.Errorf("quality control report: %w", err))
	}
	a.logger.Info("report written", zap.String("path", path), zap.String("format", format))
	_, err = fmt.Fprintf(a.out, "report written to %s\n", path)
	return err
}
