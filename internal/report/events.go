package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Stage identifies a pipeline stage for event routing
type Stage string

const (
	StageMatch    Stage = "match"
	StageAnalyze  Stage = "analyze"
	StageMerge    Stage = "merge"
	StageLoad     Stage = "load"
	StageDownload Stage = "download"
)

// EventLevel represents the severity level
type EventLevel string

const (
	LevelDebug   EventLevel = "debug"
	LevelInfo    EventLevel = "info"
	LevelWarning EventLevel = "warning"
	LevelError   EventLevel = "error"
)

// Event represents a single event in the pipeline
type Event struct {
	Timestamp  time.Time  `json:"ts"`
	Level      EventLevel `json:"level"`
	Stage      Stage      `json:"stage"`
	Hash       string     `json:"hash_sha256,omitempty"`
	Path       string     `json:"path,omitempty"`
	Action     string     `json:"action,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	MatchScore float64    `json:"match_score,omitempty"`
	Duration   int64      `json:"duration_ms,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// EventLogger writes pipeline events to per-stage JSONL files.
// One file per stage per run, under <logDir>/<stage>/.
type EventLogger struct {
	mu      sync.Mutex
	logDir  string
	stamp   string
	writers map[Stage]*json.Encoder
	files   []*os.File
}

// NewEventLogger creates an event logger rooted at logDir. Stage
// subdirectories and files are created lazily on first event.
func NewEventLogger(logDir string) *EventLogger {
	return &EventLogger{
		logDir:  logDir,
		stamp:   time.Now().Format("20060102-150405"),
		writers: make(map[Stage]*json.Encoder),
	}
}

func (l *EventLogger) encoder(stage Stage) (*json.Encoder, error) {
	if enc, ok := l.writers[stage]; ok {
		return enc, nil
	}

	dir := filepath.Join(l.logDir, string(stage))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("%s-%s.jsonl", stage, l.stamp))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}

	enc := json.NewEncoder(file)
	l.writers[stage] = enc
	l.files = append(l.files, file)
	return enc, nil
}

// Log writes an event to its stage stream. Logging failures are swallowed:
// a broken log file must not fail the track being processed.
func (l *EventLogger) Log(ev *Event) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	enc, err := l.encoder(ev.Stage)
	if err != nil {
		return
	}
	_ = enc.Encode(ev)
}

// LogFailure records a categorized per-track failure
func (l *EventLogger) LogFailure(stage Stage, path, hash, reason string, err error) {
	ev := &Event{
		Level:  LevelError,
		Stage:  stage,
		Path:   path,
		Hash:   hash,
		Action: "fail",
		Reason: reason,
	}
	if err != nil {
		ev.Error = err.Error()
	}
	l.Log(ev)
}

// Close closes all open stage streams
func (l *EventLogger) Close() error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var firstErr error
	for _, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	l.files = nil
	l.writers = make(map[Stage]*json.Encoder)
	return firstErr
}

// RateLimitEvent records a single HTTP 429 response from the catalog
// service. No secret material is ever written here.
type RateLimitEvent struct {
	Timestamp  time.Time `json:"ts"`
	Operation  string    `json:"operation"`
	RetryAfter int       `json:"retry_after_sec"`
}

// RateLimitLogger appends 429 events to a dedicated JSONL file
type RateLimitLogger struct {
	mu   sync.Mutex
	path string
}

// NewRateLimitLogger creates a rate-limit logger writing to
// <logDir>/ratelimit.jsonl
func NewRateLimitLogger(logDir string) *RateLimitLogger {
	return &RateLimitLogger{path: filepath.Join(logDir, "ratelimit.jsonl")}
}

// Log appends one 429 observation
func (l *RateLimitLogger) Log(operation string, retryAfterSec int) {
	if l == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	defer f.Close()

	_ = json.NewEncoder(f).Encode(&RateLimitEvent{
		Timestamp:  time.Now(),
		Operation:  operation,
		RetryAfter: retryAfterSec,
	})
}

// Path returns the location of the rate-limit log file
func (l *RateLimitLogger) Path() string {
	return l.path
}
