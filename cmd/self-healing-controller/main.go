package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "self-healing-controller",
	Short: "Self-healing controller - automated remediation for Kubernetes workloads and nodes",
	Long: `The self-healing controller polls pods and nodes, classifies failing
and crash-looping workloads and failed nodes, and remediates them:
pods are restarted, Helm releases are rolled back and failed nodes
are marked for reboot. Repeated actions against the same resource
are rate limited by a cooldown window.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runController,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "self-healing-controller version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime)
	},
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"self-healing-controller version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML configuration file")
	rootCmd.PersistentFlags().String("kubeconfig", "", "Path to kubeconfig (in-cluster config is tried first)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (console, json)")
	rootCmd.Flags().String("health-addr", "", "Address of the health and metrics server")
	rootCmd.Flags().Bool("once", false, "Run a single reconciliation cycle and exit")

	// Add subcommands
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(versionCmd)
}
