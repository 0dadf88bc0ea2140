package report

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Document variable names.
const (
	VarFormat        = "format"
	VarDNAReadCounts = "dna_read_counts"
	VarRNAReadCounts = "rna_read_counts"
)

// Document accumulates a markdown report. Tables are written under
// DataFolder and figures under FiguresFolder; both are linked relative to
// the report.
type Document struct {
	Vars          map[string]string
	Dir           string
	DataFolder    string
	FiguresFolder string
	// FigureExt is the image format for charts.
	FigureExt string
	// MaxRows is the largest table rendered inline.
	MaxRows int

	Logger *zap.Logger

	w       io.Writer
	err     error
	figures int
	printer *message.Printer
}

// NewDocument creates a document writing markdown to w, with data and
// figures folders under dir.
func NewDocument(vars map[string]string, dir string, w io.Writer) *Document {
	return &Document{
		Vars:          vars,
		Dir:           dir,
		DataFolder:    filepath.Join(dir, "data"),
		FiguresFolder: filepath.Join(dir, "figures"),
		FigureExt:     "png",
		MaxRows:       20,
		Logger:        zap.NewNop(),
		w:             w,
		printer:       message.NewPrinter(language.English),
	}
}

// Var returns a document variable, failing when it is unset.
func (d *Document) Var(name string) (string, error) {
	v, ok := d.Vars[name]
	if !ok || v == "" {
		return "", fmt.Errorf("document variable %q is not set", name)
	}
	return v, nil
}

// IsPDF reports whether the document targets pdf.
func (d *Document) IsPDF() bool { return d.Vars[VarFormat] == "pdf" }

// Err returns the first write error.
func (d *Document) Err() error { return d.err }

func (d *Document) printf(format string, args ...any) {
	if d.err != nil {
		return
	}
	_, d.err = fmt.Fprintf(d.w, format, args...)
}

// Heading writes a markdown heading.
func (d *Document) Heading(level int, text string) {
	d.printf("%s %s\n\n", strings.Repeat("#", level), text)
}

// Paragraph writes one paragraph.
func (d *Document) Paragraph(text string) {
	d.printf("%s\n\n", strings.TrimSpace(text))
}

// Bullets writes a bullet list.
func (d *Document) Bullets(items ...string) {
	for _, it := range items {
		d.printf("* %s\n", it)
	}
	d.printf("\n")
}

// PageBreak emits \clearpage for pdf output and nothing otherwise.
func (d *Document) PageBreak() {
	if d.IsPDF() {
		d.printf("\\clearpage\n\n")
	}
}

// WriteTable writes t into the data folder and returns its path.
func (d *Document) WriteTable(name string, t *Table) (string, error) {
	path := filepath.Join(d.DataFolder, name)
	if err := WriteTable(path, t); err != nil {
		return "", err
	}
	d.Logger.Debug("table written", zap.String("path", path), zap.Int("rows", len(t.Samples)))
	return path, nil
}

// ShowTable renders t inline when it has at most MaxRows samples, otherwise
// points the reader at dataPath. commas formats values as integer counts
// with thousands separators; otherwise values print with five decimals.
func (d *Document) ShowTable(t *Table, title, dataPath string, commas bool) {
	rel := d.rel(dataPath)
	if len(t.Samples) > d.MaxRows {
		d.printf("The table %q is too large to include in the report (%d samples). "+
			"The data is written to the file %s.\n\n", title, len(t.Samples), rel)
		return
	}

	d.printf("**%s**\n\n", title)
	d.printf("| Sample | %s |\n", strings.Join(t.Columns, " | "))
	d.printf("|---|%s\n", strings.Repeat("---:|", len(t.Columns)))
	cells := make([]string, len(t.Columns))
	for i, s := range t.Samples {
		for j, v := range t.Data[i] {
			cells[j] = d.formatValue(v, commas)
		}
		d.printf("| %s | %s |\n", s, strings.Join(cells, " | "))
	}
	d.printf("\nData file: %s\n\n", rel)
}

func (d *Document) formatValue(v float64, commas bool) string {
	switch {
	case math.IsNaN(v):
		return "NA"
	case commas:
		return d.printer.Sprintf("%d", int64(math.Round(v)))
	default:
		return strconv.FormatFloat(v, 'f', 5, 64)
	}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9]+`)

// PlotGroupedBarChart renders c into the figures folder and links it. A
// chart without samples is replaced by a short note.
func (d *Document) PlotGroupedBarChart(c BarChart) error {
	if len(c.Categories) == 0 {
		d.Paragraph(fmt.Sprintf("No samples to plot for %s.", c.Title))
		return nil
	}
	d.figures++
	slug := strings.Trim(strings.ToLower(unsafeName.ReplaceAllString(c.Title, "_")), "_")
	path := filepath.Join(d.FiguresFolder, fmt.Sprintf("figure_%02d_%s.%s", d.figures, slug, d.FigureExt))
	if err := GroupedBarChart(path, c); err != nil {
		return err
	}
	d.Logger.Debug("figure written", zap.String("path", path))
	d.printf("![%s](%s)\n\n", c.Title, d.rel(path))
	return nil
}

func (d *Document) rel(path string) string {
	if r, err := filepath.Rel(d.Dir, path); err == nil {
		return filepath.ToSlash(r)
	}
	return path
}
