package cmd

import (
	"github.com/montiglio/graphbench/internal/bench"
	"github.com/montiglio/graphbench/internal/config"
	"github.com/montiglio/graphbench/internal/device"
	"github.com/montiglio/graphbench/internal/graph"
	"github.com/montiglio/graphbench/internal/ppr"
	"github.com/montiglio/graphbench/internal/reference"
)

// loadOptions maps the load section of the config onto the graph loader.
func loadOptions(cfg config.Config) graph.LoadOptions {
	return graph.LoadOptions{
		Transpose:      cfg.Load.Transpose,
		DiscardWeights: cfg.Load.DiscardWeights,
		IndexBase:      cfg.Load.IndexBase,
		Sort:           cfg.Load.Sort,
	}
}

// benchOptions maps the config onto run options.
func benchOptions(cfg config.Config) bench.Options {
	return bench.Options{
		Solver: ppr.Options{
			Alpha:         cfg.Alpha,
			Threshold:     cfg.Threshold,
			MaxIterations: cfg.MaxIterations,
			HostWorkers:   cfg.HostWorkers,
			Device: device.Config{
				Geometry:    device.Geometry{Groups: cfg.Device.Groups, GroupSize: cfg.Device.GroupSize},
				MemoryBytes: cfg.Device.MemoryMB << 20,
			},
		},
		Reference: reference.Options{
			Tolerance:     cfg.Reference.Tolerance,
			MaxIterations: cfg.Reference.MaxIterations,
		},
		TopK:     cfg.TopK,
		MinScore: cfg.MinScore,
		Trials:   cfg.Trials,
		Seed:     cfg.Seed,
		Debug:    cfg.Debug,
	}
}
