package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danpasecinic/taskwarden/internal/types"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print client and server versions",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "Client: %s\n", types.Version)

		server, err := NewClient(GetServerURL()).ServerVersion()
		if err != nil {
			if IsVerbose() {
				_, _ = fmt.Fprintf(out, "Server: unavailable (%v)\n", err)
			} else {
				_, _ = fmt.Fprintln(out, "Server: unavailable")
			}
			return nil
		}

		_, _ = fmt.Fprintf(out, "Server: %s\n", server)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
