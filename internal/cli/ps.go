package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/danpasecinic/taskwarden/internal/types"
)

var (
	psTaskID string
)

var psCmd = &cobra.Command{
	Use:   "ps",
	Short: "List tasks",
	Long:  `List all supervised tasks or get details of a specific task.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(GetServerURL())
		out := cmd.OutOrStdout()

		if psTaskID != "" {
			id, err := types.ParseTaskID(psTaskID)
			if err != nil {
				return err
			}

			task, err := client.GetTask(id)
			if err != nil {
				return fmt.Errorf("failed to get task: %w", err)
			}

			printTask(out, task)
			return nil
		}

		tasks, err := client.ListTasks()
		if err != nil {
			return fmt.Errorf("failed to list tasks: %w", err)
		}

		if len(tasks) == 0 {
			_, _ = fmt.Fprintln(out, "No tasks found.")
			return nil
		}

		table := newTable(out, []string{"ID", "NAME", "STATE", "POLICY", "PRIORITY", "DEADLINE", "LAST BEAT", "AGE"})
		for _, task := range tasks {
			table.Append(
				[]string{
					task.TaskID.String(),
					task.Name,
					string(task.State),
					string(task.Policy),
					fmt.Sprintf("%d", task.Priority),
					formatDeadline(task.Deadline),
					formatDuration(time.Since(task.LastHeartbeat)),
					formatDuration(time.Since(task.CreatedAt)),
				},
			)
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(psCmd)

	psCmd.Flags().StringVarP(&psTaskID, "task", "t", "", "show details for specific task ID")
}

func printTask(out io.Writer, task *types.TaskInfo) {
	_, _ = fmt.Fprintln(out, "Task Details:")
	_, _ = fmt.Fprintf(out, "  ID:            %s\n", task.TaskID)
	_, _ = fmt.Fprintf(out, "  Name:          %s\n", task.Name)
	_, _ = fmt.Fprintf(out, "  State:         %s\n", task.State)
	_, _ = fmt.Fprintf(out, "  Policy:        %s\n", task.Policy)
	_, _ = fmt.Fprintf(out, "  Priority:      %d\n", task.Priority)
	_, _ = fmt.Fprintf(out, "  Stack:         %d KiB\n", task.StackSize/1024)
	_, _ = fmt.Fprintf(out, "  Deadline:      %s\n", formatDeadline(task.Deadline))
	if task.OSThreadID > 0 {
		_, _ = fmt.Fprintf(out, "  OS Thread:     %d\n", task.OSThreadID)
	}
	_, _ = fmt.Fprintf(out, "  Created:       %s\n", task.CreatedAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(out, "  Last Beat:     %s\n", task.LastHeartbeat.Format(time.RFC3339))
	if task.Timeouts > 0 {
		_, _ = fmt.Fprintf(out, "  Missed Beats:  %d\n", task.Timeouts)
	}
}

func newTable(out io.Writer, headers []string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("   ")
	table.SetNoWhiteSpace(true)
	return table
}

func formatDeadline(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.String()
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours()/24))
}
