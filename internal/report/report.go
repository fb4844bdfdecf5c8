// Package report writes the latest run to a TOML file and keeps condensed
// summaries of the runs before it.
package report

import (
	"fmt"
	"os"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/montiglio/graphbench/internal/bench"
)

// maxHistoryEntries is the maximum number of previous run summaries kept.
const maxHistoryEntries = 10

// reportFile is the TOML-serializable representation of the report file.
type reportFile struct {
	Current runRecord        `toml:"current"`
	History []historySummary `toml:"history"`
}

// runRecord is the TOML form of a run. time.Duration fields are stored as
// nanosecond int64 values since the TOML library does not natively support
// Go durations.
type runRecord struct {
	RunID       string        `toml:"run_id"`
	Graph       string        `toml:"graph"`
	Vertices    int           `toml:"vertices"`
	Edges       int           `toml:"edges"`
	Dangling    int           `toml:"dangling"`
	StartedAt   time.Time     `toml:"started_at"`
	ElapsedNs   int64         `toml:"elapsed_ns"`
	MeanScore   float64       `toml:"mean_score"`
	MeanNs      int64         `toml:"mean_ns"`
	MinNs       int64         `toml:"min_ns"`
	MaxNs       int64         `toml:"max_ns"`
	Launches    int           `toml:"launches"`
	BytesToDev  int64         `toml:"bytes_to_device"`
	BytesToHost int64         `toml:"bytes_to_host"`
	Preview     string        `toml:"preview"`
	Trials      []trialRecord `toml:"trials"`
}

type trialRecord struct {
	Number     int     `toml:"number"`
	Source     int     `toml:"source"`
	Status     string  `toml:"status"`
	Iterations int     `toml:"iterations"`
	Distance   float64 `toml:"distance"`
	ElapsedNs  int64   `toml:"elapsed_ns"`
	Score      float64 `toml:"score"`
	Error      string  `toml:"error,omitempty"`
	Mismatch   bool    `toml:"mismatch,omitempty"`

	ReferenceUnconverged bool `toml:"reference_unconverged,omitempty"`
	ReferenceIterations  int  `toml:"reference_iterations,omitempty"`
}

// historySummary captures a condensed record of a previous run.
type historySummary struct {
	RunID     string    `toml:"run_id"`
	Graph     string    `toml:"graph"`
	StartedAt time.Time `toml:"started_at"`
	ElapsedNs int64     `toml:"elapsed_ns"`
	Trials    int       `toml:"trials"`
	MeanScore float64   `toml:"mean_score"`
	MeanNs    int64     `toml:"mean_ns"`
}

// Run is a loaded run report.
type Run struct {
	RunID       string
	Graph       string
	Vertices    int
	Edges       int
	StartedAt   time.Time
	Elapsed     time.Duration
	MeanScore   float64
	MeanElapsed time.Duration
	Preview     string
	Trials      int
	Unverified  int // trials scored against an unconverged reference
}

// HistoryEntry is a summary of a previous run.
type HistoryEntry struct {
	RunID       string
	Graph       string
	StartedAt   time.Time
	Elapsed     time.Duration
	Trials      int
	MeanScore   float64
	MeanElapsed time.Duration
}

// Save writes rep as the current run of the report at path. A previous
// current run is rotated into the history, which keeps the most recent
// maxHistoryEntries entries. The file is replaced atomically.
func Save(path string, rep *bench.Report) error {
	existing, err := loadFile(path)
	if err != nil {
		return fmt.Errorf("report: loading existing report: %w", err)
	}

	var history []historySummary
	if existing != nil {
		history = append(existing.History, summarize(existing.Current))
	}
	if len(history) > maxHistoryEntries {
		history = history[len(history)-maxHistoryEntries:]
	}

	data, err := toml.Marshal(reportFile{Current: toRecord(rep), History: history})
	if err != nil {
		return fmt.Errorf("report: marshaling: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("report: writing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("report: renaming report file: %w", err)
	}
	return nil
}

// Load reads the report at path. If the file does not exist, both return
// values are nil (no error).
func Load(path string) (*Run, []HistoryEntry, error) {
	file, err := loadFile(path)
	if err != nil || file == nil {
		return nil, nil, err
	}

	c := file.Current
	run := &Run{
		RunID:       c.RunID,
		Graph:       c.Graph,
		Vertices:    c.Vertices,
		Edges:       c.Edges,
		StartedAt:   c.StartedAt,
		Elapsed:     time.Duration(c.ElapsedNs),
		MeanScore:   c.MeanScore,
		MeanElapsed: time.Duration(c.MeanNs),
		Preview:     c.Preview,
		Trials:      len(c.Trials),
	}
	for _, t := range c.Trials {
		if t.ReferenceUnconverged {
			run.Unverified++
		}
	}

	history := make([]HistoryEntry, len(file.History))
	for i, h := range file.History {
		history[i] = HistoryEntry{
			RunID:       h.RunID,
			Graph:       h.Graph,
			StartedAt:   h.StartedAt,
			Elapsed:     time.Duration(h.ElapsedNs),
			Trials:      h.Trials,
			MeanScore:   h.MeanScore,
			MeanElapsed: time.Duration(h.MeanNs),
		}
	}
	return run, history, nil
}

// loadFile reads and parses the raw report file. Returns nil, nil if the
// file does not exist.
func loadFile(path string) (*reportFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("report: reading %s: %w", path, err)
	}

	var file reportFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("report: parsing %s: %w", path, err)
	}
	return &file, nil
}

func toRecord(rep *bench.Report) runRecord {
	sum := rep.Summary()
	trials := make([]trialRecord, len(rep.Trials))
	for i, t := range rep.Trials {
		tr := trialRecord{
			Number:     t.Number,
			Source:     t.Source,
			Status:     t.Status.String(),
			Iterations: t.Iterations,
			Distance:   t.Distance,
			ElapsedNs:  int64(t.Elapsed),
			Score:      t.Score,
			Mismatch:   t.Mismatch != nil,

			ReferenceUnconverged: t.ReferenceErr() != nil,
			ReferenceIterations:  t.ReferenceIterations,
		}
		if t.Err != nil {
			tr.Status = "failed"
			tr.Error = t.Err.Error()
		}
		trials[i] = tr
	}
	return runRecord{
		RunID:       rep.RunID,
		Graph:       rep.Graph,
		Vertices:    rep.Stats.Vertices,
		Edges:       rep.Stats.Edges,
		Dangling:    rep.Stats.Dangling,
		StartedAt:   rep.StartedAt,
		ElapsedNs:   int64(rep.Elapsed),
		MeanScore:   sum.MeanScore,
		MeanNs:      int64(sum.MeanElapsed),
		MinNs:       int64(sum.MinElapsed),
		MaxNs:       int64(sum.MaxElapsed),
		Launches:    rep.Device.Launches,
		BytesToDev:  rep.Device.BytesToDevice,
		BytesToHost: rep.Device.BytesToHost,
		Preview:     rep.Long(),
		Trials:      trials,
	}
}

func summarize(r runRecord) historySummary {
	return historySummary{
		RunID:     r.RunID,
		Graph:     r.Graph,
		StartedAt: r.StartedAt,
		ElapsedNs: r.ElapsedNs,
		Trials:    len(r.Trials),
		MeanScore: r.MeanScore,
		MeanNs:    r.MeanNs,
	}
}
