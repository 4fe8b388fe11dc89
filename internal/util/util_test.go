package util

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestHashFileSHA256(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "file.bin")
	content := []byte("some file content")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	got, err := HashFileSHA256(path)
	if err != nil {
		t.Fatalf("HashFileSHA256() failed: %v", err)
	}

	sum := sha256.Sum256(content)
	if expected := hex.EncodeToString(sum[:]); got != expected {
		t.Errorf("hash = %s, expected %s", got, expected)
	}
}

func TestHashFileSHA256MissingFile(t *testing.T) {
	if _, err := HashFileSHA256(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestAtomicWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.json")

	if err := AtomicWriteFile(path, []byte("first"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := AtomicWriteFile(path, []byte("second"), 0644); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "second" {
		t.Errorf("content = %q", data)
	}

	// No temp files left behind
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("directory has %d entries, expected 1", len(entries))
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.mp3")
	dest := filepath.Join(dir, "nested", "dir", "dest.mp3")

	if err := os.WriteFile(src, []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := MoveFile(src, dest); err != nil {
		t.Fatalf("MoveFile() failed: %v", err)
	}

	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source still exists after move")
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "audio" {
		t.Errorf("destination content = %q, %v", data, err)
	}
}

func TestStageErrorKind(t *testing.T) {
	base := errors.New("boom")
	err := NewStageError(KindAnalyzeExtractor, base)

	if KindOf(err) != KindAnalyzeExtractor {
		t.Errorf("KindOf = %s", KindOf(err))
	}
	if !errors.Is(err, base) {
		t.Error("StageError does not unwrap to its cause")
	}

	wrapped := fmt.Errorf("stage failed: %w", err)
	if KindOf(wrapped) != KindAnalyzeExtractor {
		t.Error("KindOf does not see through wrapping")
	}
	if KindOf(base) != "" {
		t.Errorf("KindOf on a plain error = %s", KindOf(base))
	}
}

func TestIsFatal(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected bool
	}{
		{"auth sentinel", fmt.Errorf("op: %w", ErrAuthFatal), true},
		{"schema sentinel", fmt.Errorf("op: %w", ErrSchemaMismatch), true},
		{"auth kind", NewStageError(KindAuthFatal, errors.New("x")), true},
		{"schema kind", NewStageError(KindLoadSchema, errors.New("x")), true},
		{"per-track failure", NewStageError(KindMatchNetwork, errors.New("x")), false},
		{"rate limit", NewStageError(KindRateLimitExhausted, errors.New("x")), false},
		{"plain error", errors.New("x"), false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsFatal(tc.err); got != tc.expected {
				t.Errorf("IsFatal() = %v, expected %v", got, tc.expected)
			}
		})
	}
}

func TestRetryWithBackoff(t *testing.T) {
	cfg := &RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: time.Millisecond}

	attempts := 0
	result, err := RetryWithBackoff(context.Background(), cfg, nil, func() (int, error) {
		attempts++
		if attempts < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	}, "test op")
	if err != nil {
		t.Fatalf("RetryWithBackoff() failed: %v", err)
	}
	if result != 42 || attempts != 3 {
		t.Errorf("result = %d after %d attempts", result, attempts)
	}
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	cfg := &RetryConfig{MaxAttempts: 5, InitialWait: time.Millisecond, MaxWait: time.Millisecond}
	permanent := errors.New("permanent")

	attempts := 0
	err := Retry(context.Background(), cfg, func(err error) bool { return false }, func() error {
		attempts++
		return permanent
	}, "test op")

	if !errors.Is(err, permanent) {
		t.Fatalf("expected the permanent error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("retried a non-retryable error %d times", attempts)
	}
}

func TestRetryExhaustsAttempts(t *testing.T) {
	cfg := &RetryConfig{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: time.Millisecond}

	attempts := 0
	err := Retry(context.Background(), cfg, nil, func() error {
		attempts++
		return errors.New("always")
	}, "test op")

	if err == nil {
		t.Fatal("expected failure after exhausted attempts")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, expected 3", attempts)
	}
}
