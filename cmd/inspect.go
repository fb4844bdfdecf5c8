package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/montiglio/graphbench/internal/config"
	"github.com/montiglio/graphbench/internal/graph"
	"github.com/montiglio/graphbench/internal/ui"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <graph>",
	Short: "Load a graph and print its statistics",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		viper.Set("graph", args[0])
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		g, err := graph.Open(cfg.Graph, loadOptions(cfg))
		if err != nil {
			return err
		}
		ui.New().GraphStats(g.Source, g.Stats())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
