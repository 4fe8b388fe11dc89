// Package pipeline orchestrates the per-track import pipeline: MATCH,
// ANALYZE, MERGE, LOAD over every audio file under the library root.
package pipeline

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/franz/zmusic-organizer/internal/sidecar"
)

// AudioExtensions are the default supported audio file extensions
var AudioExtensions = []string{
	".flac",
	".mp3",
	".wav",
	".ogg",
	".m4a",
	".aac",
}

// CollectAudioFiles walks the library root and returns the absolute paths
// of all audio files, sorted, so processing order is deterministic across
// runs. Sidecar files are excluded by suffix, never by a leading-dot test.
func CollectAudioFiles(root string, extensions []string) ([]string, error) {
	if len(extensions) == 0 {
		extensions = AudioExtensions
	}
	extSet := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		extSet[strings.ToLower(ext)] = true
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve library root: %w", err)
	}

	var files []string
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if sidecar.IsSidecar(path) {
			return nil
		}
		if !extSet[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk library root: %w", err)
	}

	sort.Strings(files)
	return files, nil
}
