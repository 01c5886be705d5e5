package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/encodeous/gsqr/embedding"
	"github.com/spf13/cobra"
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Manage embedding files",
	Long: `Embeddings normally initialize lazily at random. These commands
pre-generate an embedding file for a whole network, or pretty-print one.`,
	GroupID: "init",
}

var embedNewCmd = &cobra.Command{
	Use:   "new [output]",
	Short: "Generate an embedding file for every node in the central config",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			_ = cmd.Usage()
			return
		}
		central := readCentral()
		seed, _ := cmd.Flags().GetUint64("seed")
		var store *embedding.Store
		if cmd.Flags().Changed("seed") {
			store = embedding.NewStoreSeeded(seed)
		} else {
			store = embedding.NewStore()
		}
		for _, node := range central.Nodes {
			store.GenerateOrGet(node.Id)
		}
		if err := store.Save(args[0]); err != nil {
			panic(err)
		}
		fmt.Printf("Wrote %d embeddings (%s) to %s\n", store.Len(), nodeList(central), args[0])
	},
}

var embedShowCmd = &cobra.Command{
	Use:   "show [file]",
	Short: "Pretty-print an embedding file",
	Run: func(cmd *cobra.Command, args []string) {
		if len(args) != 1 {
			_ = cmd.Usage()
			return
		}
		central := readCentral()
		store := embedding.NewStore()
		loaded, skipped, err := store.Load(args[0])
		if err != nil {
			panic(err)
		}
		fmt.Printf("%d nodes, %d malformed lines skipped, %.2f KB\n", loaded, skipped, store.MemoryKB())
		for _, id := range store.Ids() {
			vec := store.Get(id)
			parts := make([]string, 0, len(vec))
			for _, v := range vec {
				parts = append(parts, strconv.FormatFloat(v, 'f', 3, 64))
			}
			fmt.Printf("%s: [%s] bias=%.3f\n",
				central.NodeName(id), strings.Join(parts, " "), store.Bias(id))
		}
	},
}

func init() {
	rootCmd.AddCommand(embedCmd)
	embedCmd.AddCommand(embedNewCmd)
	embedCmd.AddCommand(embedShowCmd)
	embedNewCmd.Flags().Uint64("seed", 0, "seed the generator for reproducible embeddings")
}
