package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	failuresLimit int
)

var failuresCmd = &cobra.Command{
	Use:   "failures",
	Short: "Show recorded task failures",
	Long:  `Show the failures reported by the watchdog, newest first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client := NewClient(GetServerURL())
		out := cmd.OutOrStdout()

		records, err := client.ListFailures(failuresLimit)
		if err != nil {
			return fmt.Errorf("failed to list failures: %w", err)
		}

		reboot, err := client.RebootRequested()
		if err != nil {
			return fmt.Errorf("failed to get reboot flag: %w", err)
		}
		if reboot {
			_, _ = fmt.Fprintln(out, "WARNING: a task with the reboot-system policy died, reboot requested")
		}

		if len(records) == 0 {
			_, _ = fmt.Fprintln(out, "No failures recorded.")
			return nil
		}

		table := newTable(out, []string{"TIME", "ID", "NAME", "REASON"})
		for _, rec := range records {
			table.Append(
				[]string{
					rec.Time.Local().Format(time.DateTime),
					rec.TaskID.String(),
					rec.Name,
					string(rec.Reason),
				},
			)
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(failuresCmd)

	failuresCmd.Flags().IntVarP(&failuresLimit, "limit", "n", 20, "number of failures to show (0 for all)")
}
