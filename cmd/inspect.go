package cmd

import (
	"fmt"

	"github.com/encodeous/gsqr/core"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:     "inspect [socket]",
	Aliases: []string{"i"},
	Short:   "Inspects the current state of a running gsqr node",
	Run: func(cmd *cobra.Command, args []string) {
		var sock string
		if len(args) > 1 {
			fmt.Println("Usage: gsqr inspect [socket]")
			return
		} else if len(args) == 1 {
			sock = args[0]
		} else {
			local := readLocal()
			sock = local.Socket()
		}
		result, err := core.IPCGet(sock)
		if err != nil {
			fmt.Println("Error:", err.Error())
			return
		}
		fmt.Print(result)
	},
	GroupID: "gsqr",
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
