package sidecar

import (
	"path/filepath"
	"strings"
)

// Sidecar filename suffixes. The orchestrator excludes sidecars from the
// walk by suffix test, not by leading-dot test, so a dotted audio filename
// is never misclassified.
const (
	SpotifySuffix  = ".spotify.json"
	AnalysisSuffix = ".analysis.json"
	FinalSuffix    = ".final.json"
)

// Stem returns the audio filename without its extension.
// "/foo/bar/Track.flac" -> "Track"
func Stem(audioPath string) string {
	base := filepath.Base(audioPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SpotifyPath returns the hidden MATCH sidecar path.
// "/foo/Track.flac" -> "/foo/.Track.spotify.json"
func SpotifyPath(audioPath string) string {
	return filepath.Join(filepath.Dir(audioPath), "."+Stem(audioPath)+SpotifySuffix)
}

// AnalysisPath returns the visible ANALYZE sidecar path. The full audio
// filename (with extension) is kept so tracks differing only in extension
// do not collide.
// "/foo/Track.flac" -> "/foo/Track.flac.analysis.json"
func AnalysisPath(audioPath string) string {
	return audioPath + AnalysisSuffix
}

// FinalPath returns the hidden MERGE sidecar path.
// "/foo/Track.flac" -> "/foo/.Track.final.json"
func FinalPath(audioPath string) string {
	return filepath.Join(filepath.Dir(audioPath), "."+Stem(audioPath)+FinalSuffix)
}

// IsSidecar reports whether path names any pipeline sidecar
func IsSidecar(path string) bool {
	return strings.HasSuffix(path, SpotifySuffix) ||
		strings.HasSuffix(path, AnalysisSuffix) ||
		strings.HasSuffix(path, FinalSuffix)
}
