package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"bioweaver/internal/dag"
	"bioweaver/internal/state"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)

	stateColors = map[string]lipgloss.Color{
		string(dag.TaskCompleted):        lipgloss.Color("2"),
		string(state.RunStatusSucceeded): lipgloss.Color("2"),
		string(dag.TaskCached):           lipgloss.Color("8"),
		string(dag.TaskFailed):           lipgloss.Color("1"),
		string(state.RunStatusFailed):    lipgloss.Color("1"),
		string(dag.TaskSkipped):          lipgloss.Color("3"),
	}
)

// newTable renders rows under headers, coloring the column at stateCol by
// its value.
func newTable(headers []string, rows [][]string, stateCol int) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == stateCol && row >= 0 && row < len(rows) {
				if c, ok := stateColors[rows[row][col]]; ok {
					return cellStyle.Foreground(c)
				}
			}
			return cellStyle
		})
}

// renderSummary prints one row per task in topological order followed by the
// run totals.
func renderSummary(w io.Writer, runID string, g *dag.TaskGraph, r *dag.GraphResult) error {
	rows := make([][]string, 0, g.Len())
	for _, name := range g.TopologicalOrder() {
		st := r.FinalState[name]
		exit := ""
		if code, ok := r.ExitCode[name]; ok && st != dag.TaskCached {
			exit = strconv.Itoa(code)
		}
		elapsed := ""
		if d, ok := r.Duration[name]; ok {
			elapsed = d.Round(time.Millisecond).String()
		}
		rows = append(rows, []string{name, string(st), exit, elapsed})
	}

	c := countsOf(r)
	_, err := fmt.Fprintf(w, "%s\nrun %s: %d executed, %d cached, %d failed, %d skipped\n",
		newTable([]string{"TASK", "STATE", "EXIT", "DURATION"}, rows, 1).String(),
		runID, c.Executed, c.Cached, c.Failed, c.Skipped)
	return err
}
