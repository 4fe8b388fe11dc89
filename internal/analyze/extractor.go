// Package analyze implements the ANALYZE stage: run the acoustic feature
// extractor over an audio file and record the result as a visible sidecar
// next to it.
package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/franz/zmusic-organizer/internal/sidecar"
)

// Result is the payload an extractor produces for one audio file
type Result struct {
	Features    sidecar.Features    `json:"features"`
	Genre       sidecar.Genre       `json:"genre"`
	Mood        sidecar.Mood        `json:"mood"`
	Instruments sidecar.Instruments `json:"instruments"`
	Embedding   []float64           `json:"embedding,omitempty"`
}

// Extractor computes acoustic features for an audio file
type Extractor interface {
	Extract(ctx context.Context, audioPath string) (*Result, error)
}

// ExecExtractor shells out to an external analyzer command. The command is
// given the audio path as its last argument and must print a single JSON
// object on stdout.
type ExecExtractor struct {
	command []string
}

// NewExecExtractor builds an extractor from a command line, e.g.
// "python3 analyzer.py --json"
func NewExecExtractor(commandLine string) (*ExecExtractor, error) {
	fields := strings.Fields(commandLine)
	if len(fields) == 0 {
		return nil, fmt.Errorf("analyzer command is empty")
	}
	return &ExecExtractor{command: fields}, nil
}

// Extract runs the analyzer command and decodes its stdout
func (e *ExecExtractor) Extract(ctx context.Context, audioPath string) (*Result, error) {
	args := append(append([]string{}, e.command[1:]...), audioPath)
	cmd := exec.CommandContext(ctx, e.command[0], args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return nil, fmt.Errorf("analyzer failed: %w: %s", err, firstLine(msg))
		}
		return nil, fmt.Errorf("analyzer failed: %w", err)
	}

	var res Result
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		return nil, fmt.Errorf("analyzer produced invalid JSON: %w", err)
	}
	return &res, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
