package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/encodeous/gsqr/state"
	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

// initCmd scaffolds a starter central config for a set of node names plus a
// node config for the first of them. Ids are assigned in argument order.
var initCmd = &cobra.Command{
	Use:   "init [name]...",
	Short: "Create a starter network configuration",
	Long: `Writes a network-global central config listing the given nodes, and a
node config identifying this host as the first name. Copy the central config to
every node, and generate the remaining node configs by editing the id.`,
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) == 0 {
			_ = cmd.Usage()
			return
		}
		central := state.CentralCfg{}
		for i, name := range args {
			if err := state.NameValidator(name); err != nil {
				fmt.Printf("Invalid name: %s\n", name)
				os.Exit(-1)
			}
			central.Nodes = append(central.Nodes, state.NodeCfg{
				Name: name,
				Id:   state.NodeId(i + 1),
			})
		}
		state.ExpandCentralConfig(&central)
		if err := state.CentralConfigValidator(&central); err != nil {
			panic(err)
		}

		local := state.LocalCfg{Id: central.Nodes[0].Id}
		state.ExpandLocalConfig(&local)

		writeConfig(centralConfigPath, &central)
		writeConfig(nodeConfigPath, &local)
		fmt.Printf("Wrote %s and %s (node %s)\n", centralConfigPath, nodeConfigPath, args[0])
	},
	GroupID: "init",
}

func writeConfig(path string, cfg any) {
	out, err := yaml.Marshal(cfg)
	if err != nil {
		panic(err)
	}
	err = os.WriteFile(path, out, 0600)
	if err != nil {
		panic(err)
	}
}

func readCentral() state.CentralCfg {
	var central state.CentralCfg
	file, err := os.ReadFile(centralConfigPath)
	if err != nil {
		panic(err)
	}
	err = yaml.Unmarshal(file, &central)
	if err != nil {
		panic(err)
	}
	state.ExpandCentralConfig(&central)
	if err := state.CentralConfigValidator(&central); err != nil {
		panic(err)
	}
	return central
}

func readLocal() state.LocalCfg {
	var local state.LocalCfg
	file, err := os.ReadFile(nodeConfigPath)
	if err != nil {
		panic(err)
	}
	err = yaml.Unmarshal(file, &local)
	if err != nil {
		panic(err)
	}
	state.ExpandLocalConfig(&local)
	return local
}

func nodeList(central state.CentralCfg) string {
	names := make([]string, 0, len(central.Nodes))
	for _, n := range central.Nodes {
		names = append(names, n.Name)
	}
	return strings.Join(names, ", ")
}

func init() {
	rootCmd.AddCommand(initCmd)
}
