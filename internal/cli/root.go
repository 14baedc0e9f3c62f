package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/danpasecinic/taskwarden/internal/types"
)

const defaultServerURL = "http://localhost:8080"

var (
	serverURL string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "wardenctl",
	Short: "wardenctl - control a taskwarden daemon",
	Long: `wardenctl talks to the wardend control API.

It lists supervised tasks, pauses, resumes and stops them, and shows the
failures recorded by the watchdog.`,
	Version:       types.Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServerURL, "wardend API URL")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initConfig() {
	// Check environment variable for server URL
	if env := os.Getenv("WARDEN_URL"); env != "" && serverURL == defaultServerURL {
		serverURL = env
	}
}

// GetServerURL returns the configured server URL
func GetServerURL() string {
	return serverURL
}

// IsVerbose returns whether verbose mode is enabled
func IsVerbose() bool {
	return verbose
}
