package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// globalOpts holds the persistent flags shared by every subcommand.
type globalOpts struct {
	configPath string
	debug      bool
}

func newRootCmd() *cobra.Command {
	g := &globalOpts{}
	cmd := &cobra.Command{
		Use:   "flow",
		Short: "Ollama Flow: phased multi-drone research workflows",
		Long: "Flow runs research, fact-check and analysis drones against a query,\n" +
			"scores the combined result and keeps every run in a local store.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadDotEnv()
		},
	}
	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", defaultConfigPath, "path to flow config file")
	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable development logging")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd(g))
	cmd.AddCommand(newRunCmd(g))
	cmd.AddCommand(newServeCmd(g))
	cmd.AddCommand(newStatusCmd(g))
	cmd.AddCommand(newWorkflowCmd(g))
	cmd.AddCommand(newMessageCmd(g))
	cmd.AddCommand(newInboxCmd(g))
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "flow %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
