package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"bioweaver/internal/state"
)

func (a *app) newRunsCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List the workflow runs recorded in an output folder",
		Args:  noPositionalArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				return invalidInvocationf("--output is required")
			}
			return a.listRuns(output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "workflow output folder (required)")
	return cmd
}

func (a *app) listRuns(output string) error {
	store, err := state.NewStore(output)
	if err != nil {
		return withExitCode(ExitInvalidInvocation, err)
	}
	runs, err := store.History()
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	if len(runs) == 0 {
		_, err := fmt.Fprintf(a.out, "no runs recorded in %s\n", output)
		return err
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		elapsed := ""
		if r.EndTime != nil {
			elapsed = r.EndTime.Sub(r.StartTime).Round(time.Second).String()
		}
		cause := ""
		if r.Status == state.RunStatusFailed {
			if f, err := store.LoadFailure(r.RunID); err == nil {
				cause = f.ErrorCode
				if f.TaskID != nil {
					cause += " " + *f.TaskID
				}
			}
		}
		rows = append(rows, []string{
			r.RunID,
			r.Workflow,
			r.StartTime.Local().Format(time.DateTime),
			elapsed,
			string(r.Status),
			strconv.Itoa(r.Counts.Executed),
			strconv.Itoa(r.Counts.Cached),
			strconv.Itoa(r.Counts.Failed),
			strconv.Itoa(r.Counts.Skipped),
			cause,
		})
	}
	headers := []string{"RUN", "WORKFLOW", "STARTED", "DURATION", "STATUS", "EXECUTED", "CACHED", "FAILED", "SKIPPED", "CAUSE"}
	_, err = fmt.Fprintln(a.out, newTable(headers, rows, 4).String())
	return err
}
