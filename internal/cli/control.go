package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danpasecinic/taskwarden/internal/types"
)

var pauseCmd = &cobra.Command{
	Use:   "pause [task-id]",
	Short: "Pause a running task",
	Long:  `Pause an alive task. It blocks at its next heartbeat until resumed.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseTaskID(args[0])
		if err != nil {
			return err
		}

		task, err := NewClient(GetServerURL()).PauseTask(id)
		if err != nil {
			return fmt.Errorf("failed to pause task: %w", err)
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Task %s (%s) is now %s\n", task.TaskID, task.Name, task.State)
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume [task-id]",
	Short: "Run a waiting task",
	Long:  `Start a task that was registered but not started, or resume a paused one.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseTaskID(args[0])
		if err != nil {
			return err
		}

		task, err := NewClient(GetServerURL()).ResumeTask(id)
		if err != nil {
			return fmt.Errorf("failed to resume task: %w", err)
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Task %s (%s) is now %s\n", task.TaskID, task.Name, task.State)
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop [task-id]",
	Short: "Stop a task",
	Long: `Stop a task and remove it from the registry.

The task is asked to exit at its next heartbeat. If it does not exit within
the daemon's stop window it is forcibly terminated.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := types.ParseTaskID(args[0])
		if err != nil {
			return err
		}

		if err := NewClient(GetServerURL()).StopTask(id); err != nil {
			return fmt.Errorf("failed to stop task: %w", err)
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Task %s stopped\n", id)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(pauseCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(stopCmd)
}
