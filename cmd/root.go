package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	centralConfigPath = "central.yaml"
	nodeConfigPath    = "node.yaml"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gsqr",
	Short: "GSQR Adaptive Routing CLI",
	Long: `gsqr is an adaptive routing engine for mobile ad-hoc networks.
Each node learns from delivery feedback which neighbour makes the best next hop
towards every destination, and discovers its neighbours with periodic beacons.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "init",
		Title: "Initialize GSQR",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "gsqr",
		Title: "GSQR Commands",
	})
	rootCmd.PersistentFlags().StringVarP(&nodeConfigPath, "node-config", "n", nodeConfigPath, "node-specific config")
	rootCmd.PersistentFlags().StringVarP(&centralConfigPath, "central-config", "c", centralConfigPath, "network-global config")
}
