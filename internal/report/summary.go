package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Stats aggregates counters across a full pipeline run
type Stats struct {
	Total         int           `json:"total"`
	Matched       int           `json:"matched"`
	Analyzed      int           `json:"analyzed"`
	Merged        int           `json:"merged"`
	Loaded        int           `json:"loaded"`
	FailedTotal   int           `json:"failed"`
	FailedByStage map[Stage]int `json:"failed_per_stage"`
	SpotifyCalls  int           `json:"spotify_calls"`
	ElapsedSec    float64       `json:"elapsed_sec"`
}

// NewStats returns an empty stats record
func NewStats() *Stats {
	return &Stats{FailedByStage: make(map[Stage]int)}
}

// RecordFailure increments the failure counter for a stage
func (s *Stats) RecordFailure(stage Stage) {
	s.FailedTotal++
	s.FailedByStage[stage]++
}

// Render writes the human-readable run summary
func (s *Stats) Render(w io.Writer) {
	fmt.Fprintln(w, "===== IMPORT SUMMARY =====")
	fmt.Fprintf(w, "Tracks processed: %d\n", s.Total)
	fmt.Fprintf(w, "Matched:          %d\n", s.Matched)
	fmt.Fprintf(w, "Analyzed:         %d\n", s.Analyzed)
	fmt.Fprintf(w, "Merged:           %d\n", s.Merged)
	fmt.Fprintf(w, "Loaded:           %d\n", s.Loaded)
	fmt.Fprintf(w, "Failed:           %d\n", s.FailedTotal)
	for _, stage := range []Stage{StageMatch, StageAnalyze, StageMerge, StageLoad} {
		if n := s.FailedByStage[stage]; n > 0 {
			fmt.Fprintf(w, "  %-8s failures: %d\n", stage, n)
		}
	}
	fmt.Fprintf(w, "Spotify calls:    %d\n", s.SpotifyCalls)
	fmt.Fprintf(w, "Elapsed:          %s\n", time.Duration(s.ElapsedSec*float64(time.Second)).Round(100*time.Millisecond))
}

// WriteJSON emits the stats record as indented JSON (for --info)
func (s *Stats) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
