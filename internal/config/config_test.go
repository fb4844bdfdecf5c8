package config

import (
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

// resetViper clears all viper state between tests to avoid cross-contamination.
func resetViper() {
	viper.Reset()
}

func TestLoad_Defaults(t *testing.T) {
	resetViper()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned unexpected error: %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"Graph", cfg.Graph, ""},
		{"Load.Transpose", cfg.Load.Transpose, true},
		{"Load.DiscardWeights", cfg.Load.DiscardWeights, true},
		{"Load.IndexBase", cfg.Load.IndexBase, 1},
		{"Load.Sort", cfg.Load.Sort, false},
		{"Alpha", cfg.Alpha, 0.85},
		{"Threshold", cfg.Threshold, 1e-6},
		{"MaxIterations", cfg.MaxIterations, 50},
		{"TopK", cfg.TopK, 10},
		{"MinScore", cfg.MinScore, 0.9},
		{"Trials", cfg.Trials, 5},
		{"Seed", cfg.Seed, uint64(1)},
		{"Debug", cfg.Debug, false},
		{"HostWorkers", cfg.HostWorkers, 1},
		{"Device.Groups", cfg.Device.Groups, 32},
		{"Device.GroupSize", cfg.Device.GroupSize, 256},
		{"Device.MemoryMB", cfg.Device.MemoryMB, int64(0)},
		{"Reference.Tolerance", cfg.Reference.Tolerance, 1e-6},
		{"Reference.MaxIterations", cfg.Reference.MaxIterations, 100},
		{"Telemetry", cfg.Telemetry, ""},
		{"DB", cfg.DB, ""},
		{"Report", cfg.Report, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	resetViper()

	tests := []struct {
		name   string
		envKey string
		envVal string
		field  func(Config) any
		want   any
	}{
		{
			name:   "graph",
			envKey: "GRAPHBENCH_GRAPH",
			envVal: "/data/web-Google.mtx",
			field:  func(c Config) any { return c.Graph },
			want:   "/data/web-Google.mtx",
		},
		{
			name:   "alpha",
			envKey: "GRAPHBENCH_ALPHA",
			envVal: "0.9",
			field:  func(c Config) any { return c.Alpha },
			want:   0.9,
		},
		{
			name:   "trials",
			envKey: "GRAPHBENCH_TRIALS",
			envVal: "12",
			field:  func(c Config) any { return c.Trials },
			want:   12,
		},
		{
			name:   "nested device key",
			envKey: "GRAPHBENCH_DEVICE_GROUP_SIZE",
			envVal: "64",
			field:  func(c Config) any { return c.Device.GroupSize },
			want:   64,
		},
		{
			name:   "nested load key",
			envKey: "GRAPHBENCH_LOAD_INDEX_BASE",
			envVal: "0",
			field:  func(c Config) any { return c.Load.IndexBase },
			want:   0,
		},
		{
			name:   "debug",
			envKey: "GRAPHBENCH_DEBUG",
			envVal: "true",
			field:  func(c Config) any { return c.Debug },
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper()
			// Map GRAPHBENCH_* env vars, including nested keys, to config keys.
			viper.SetEnvPrefix("GRAPHBENCH")
			viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
			viper.AutomaticEnv()

			os.Setenv(tt.envKey, tt.envVal)
			defer os.Unsetenv(tt.envKey)

			cfg, err := Load()
			if err != nil {
				t.Fatalf("Load() returned unexpected error: %v", err)
			}
			got := tt.field(cfg)
			if got != tt.want {
				t.Errorf("%s: got %v (%T), want %v (%T)", tt.name, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestLoad_InvalidValueFails(t *testing.T) {
	resetViper()
	viper.Set("alpha", 1.5)

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "alpha") {
		t.Fatalf("Load() err = %v, want alpha validation error", err)
	}
}

func TestValidate_AggregatesErrors(t *testing.T) {
	resetViper()

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Alpha = 0
	cfg.Trials = 0
	cfg.Device.GroupSize = 48
	cfg.Load.IndexBase = 2

	err = cfg.Validate()
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		t.Fatalf("Validate() = %v, want *multierror.Error", err)
	}
	if len(merr.Errors) != 4 {
		t.Errorf("got %d errors, want 4: %v", len(merr.Errors), merr.Errors)
	}
	for _, key := range []string{"alpha", "trials", "device.group_size", "load.index_base"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error does not mention %s: %v", key, err)
		}
	}
}

func TestValidate_GroupSize(t *testing.T) {
	resetViper()

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		size int
		ok   bool
	}{
		{1, true},
		{256, true},
		{1024, true},
		{0, false},
		{3, false},
		{2048, false},
	}
	for _, tt := range tests {
		cfg.Device.GroupSize = tt.size
		if err := cfg.Validate(); (err == nil) != tt.ok {
			t.Errorf("group size %d: err = %v, want ok=%v", tt.size, err, tt.ok)
		}
	}
}
