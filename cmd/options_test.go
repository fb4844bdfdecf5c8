package cmd

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/viper"

	"github.com/montiglio/graphbench/internal/bench"
	"github.com/montiglio/graphbench/internal/config"
	"github.com/montiglio/graphbench/internal/graph"
)

func TestOptions_DefaultsMatchPackages(t *testing.T) {
	viper.Reset()

	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(graph.DefaultLoadOptions(), loadOptions(cfg)); diff != "" {
		t.Errorf("load options mismatch (-package +config):\n%s", diff)
	}
	// Faults and callbacks are not configurable; compare the rest.
	want := bench.DefaultOptions()
	got := benchOptions(cfg)
	if diff := cmp.Diff(want, got, cmp.FilterPath(func(p cmp.Path) bool {
		name := p.Last().String()
		return name == ".Faults" || name == ".OnIteration"
	}, cmp.Ignore())); diff != "" {
		t.Errorf("bench options mismatch (-package +config):\n%s", diff)
	}
}

func TestBenchOptions_MemoryLimit(t *testing.T) {
	viper.Reset()

	cfg, err := config.Load()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Device.MemoryMB = 3
	if got := benchOptions(cfg).Solver.Device.MemoryBytes; got != 3<<20 {
		t.Errorf("MemoryBytes = %d, want %d", got, 3<<20)
	}
}
