package cmd

import (
	"github.com/encodeous/gsqr/core"
	"github.com/encodeous/gsqr/state"
	"github.com/spf13/cobra"
)

var logPath string

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run gsqr",
	Long:  `This will run a gsqr node on the current host. The beacon transport binds a UDP multicast socket, so the host needs at least one usable network interface.`,
	Run: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		core.Bootstrap(centralConfigPath, nodeConfigPath, logPath, verbose)
	},
	GroupID: "gsqr",
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	runCmd.Flags().StringVarP(&logPath, "log", "l", "", "Also write logs to this file")
	runCmd.Flags().BoolVarP(&state.DBG_log_beacon, "lbeacon", "b", false, "Write sent/heard beacons to the console")
	runCmd.Flags().BoolVarP(&state.DBG_log_learning, "llearn", "e", false, "Write learning updates to the console")
	runCmd.Flags().BoolVar(&state.DBG_pprof, "pprof", false, "Serve pprof and expvar metrics on :6060")
	runCmd.Flags().BoolVar(&state.DBG_trace, "trace", false, "Write a runtime trace to trace.out")
}
