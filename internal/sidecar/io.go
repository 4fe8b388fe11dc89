package sidecar

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/franz/zmusic-organizer/internal/util"
)

// WriteJSON marshals v and writes it atomically (temp file + rename).
// Sidecars are never modified in place; a re-run rewrites the whole file.
func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sidecar: %w", err)
	}
	data = append(data, '\n')

	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write sidecar %s: %w", path, err)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid sidecar JSON %s: %w", path, err)
	}
	return nil
}

// ReadSpotify loads a MATCH sidecar
func ReadSpotify(path string) (*Spotify, error) {
	var sc Spotify
	if err := readJSON(path, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// ReadAudio loads an ANALYZE sidecar
func ReadAudio(path string) (*Audio, error) {
	var sc Audio
	if err := readJSON(path, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// ReadFinal loads a MERGE sidecar
func ReadFinal(path string) (*Final, error) {
	var sc Final
	if err := readJSON(path, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Exists reports whether a sidecar file is present
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// MTime returns the last-modified time of a sidecar, or the zero time when
// it does not exist
func MTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// NewerThan reports whether a is strictly newer than b. Missing files are
// treated as infinitely old.
func NewerThan(a, b string) bool {
	return MTime(a).After(MTime(b))
}

// NewFileInfo stats the audio file and computes its identity hash
func NewFileInfo(audioPath string) (FileInfo, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return FileInfo{}, fmt.Errorf("failed to stat audio file: %w", err)
	}

	hash, err := util.HashFileSHA256(audioPath)
	if err != nil {
		return FileInfo{}, err
	}

	return FileInfo{
		Path:       audioPath,
		Stem:       Stem(audioPath),
		Extension:  filepath.Ext(audioPath),
		SizeBytes:  info.Size(),
		MTime:      info.ModTime().Unix(),
		HashSHA256: hash,
	}, nil
}
