package download

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/franz/zmusic-organizer/internal/report"
	"github.com/franz/zmusic-organizer/internal/util"
)

// sanitizeReplacer maps the characters that are unsafe in path components
// on at least one supported filesystem to "-". NUL is dropped entirely.
var sanitizeReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "-",
	"\"", "-",
	"<", "-",
	">", "-",
	"|", "-",
	"\x00", "",
)

// SanitizeComponent makes a tag value safe to use as one path component
func SanitizeComponent(s string) string {
	s = sanitizeReplacer.Replace(s)
	s = strings.Trim(s, " .")
	if s == "" {
		return "_"
	}
	return s
}

// Downloader acquires one wanted track at a time through an external
// downloader command and relocates the result into the library
type Downloader struct {
	libraryRoot string
	stagingDir  string
	command     []string
	extensions  map[string]bool
	logger      *report.EventLogger
}

// Config holds downloader configuration
type Config struct {
	LibraryRoot string
	StagingDir  string
	Command     string   // downloader command line; the search query is appended
	Extensions  []string // audio extensions recognized in the staging diff
	Logger      *report.EventLogger
}

// New creates a Downloader
func New(cfg *Config) (*Downloader, error) {
	fields := strings.Fields(cfg.Command)
	if len(fields) == 0 {
		return nil, fmt.Errorf("downloader command is empty")
	}
	if cfg.LibraryRoot == "" || cfg.StagingDir == "" {
		return nil, fmt.Errorf("%w: library root and staging dir are required", util.ErrInvalidConfig)
	}

	exts := make(map[string]bool)
	for _, ext := range cfg.Extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[strings.ToLower(ext)] = true
	}

	return &Downloader{
		libraryRoot: cfg.LibraryRoot,
		stagingDir:  cfg.StagingDir,
		command:     fields,
		extensions:  exts,
		logger:      cfg.Logger,
	}, nil
}

// CanonicalDir returns the library directory a wanted track belongs in:
// <root>/<artist>/<year>/<album>. A missing year or album collapses to the
// artist directory.
func (d *Downloader) CanonicalDir(w *Want) string {
	dir := filepath.Join(d.libraryRoot, SanitizeComponent(w.Artist))
	if w.Year > 0 {
		dir = filepath.Join(dir, strconv.Itoa(w.Year))
	}
	if w.Album != "" {
		dir = filepath.Join(dir, SanitizeComponent(w.Album))
	}
	return dir
}

// canonicalStem is the destination filename without extension:
// "<artist> - <title>"
func (d *Downloader) canonicalStem(w *Want) string {
	return SanitizeComponent(w.Artist + " - " + w.Title)
}

// Exists reports whether the wanted track is already present at its
// canonical location under any recognized extension
func (d *Downloader) Exists(w *Want) (string, bool) {
	dir := d.CanonicalDir(w)
	stem := d.canonicalStem(w)
	for ext := range d.extensions {
		path := filepath.Join(dir, stem+ext)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, true
		}
	}
	return "", false
}

// Fetch downloads one wanted track. The staging directory is snapshotted
// before and after the downloader runs; exactly one new audio file must
// appear, and that file is moved atomically to the canonical location. Any
// other diff is ambiguous and fails the track without relocating anything.
func (d *Downloader) Fetch(ctx context.Context, w *Want, dryRun bool) (string, error) {
	if path, ok := d.Exists(w); ok {
		util.InfoLog("Already present: %s", path)
		return path, nil
	}

	dest := filepath.Join(d.CanonicalDir(w), d.canonicalStem(w))
	if dryRun {
		util.InfoLog("Would download: %s — %s  ->  %s.*", w.Artist, w.Title, dest)
		return "", nil
	}

	if err := os.MkdirAll(d.stagingDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create staging dir: %w", err)
	}

	before, err := d.snapshot()
	if err != nil {
		return "", err
	}

	if err := d.runCommand(ctx, w); err != nil {
		return "", err
	}

	after, err := d.snapshot()
	if err != nil {
		return "", err
	}

	var added []string
	for path := range after {
		if !before[path] {
			added = append(added, path)
		}
	}

	switch len(added) {
	case 0:
		return "", util.NewStageError(util.KindDownloadAmbiguous,
			fmt.Errorf("downloader produced no new audio file for %s — %s", w.Artist, w.Title))
	case 1:
	default:
		return "", util.NewStageError(util.KindDownloadAmbiguous,
			fmt.Errorf("downloader produced %d new audio files for %s — %s, cannot attribute",
				len(added), w.Artist, w.Title))
	}

	staged := added[0]
	final := dest + strings.ToLower(filepath.Ext(staged))

	if err := os.MkdirAll(filepath.Dir(final), 0755); err != nil {
		return "", fmt.Errorf("failed to create destination dir: %w", err)
	}
	if err := util.MoveFile(staged, final); err != nil {
		return "", fmt.Errorf("failed to relocate %s: %w", staged, err)
	}

	size := int64(0)
	if info, err := os.Stat(final); err == nil {
		size = info.Size()
	}
	util.InfoLog("Downloaded %s — %s (%s) -> %s",
		w.Artist, w.Title, humanize.Bytes(uint64(size)), final)

	if d.logger != nil {
		d.logger.Log(&report.Event{
			Level:  report.LevelInfo,
			Stage:  report.StageDownload,
			Path:   final,
			Action: "downloaded",
		})
	}

	return final, nil
}

// snapshot lists the audio files currently in the staging directory,
// recursively. Partial files and non-audio noise the downloader leaves
// behind are ignored.
func (d *Downloader) snapshot() (map[string]bool, error) {
	files := make(map[string]bool)
	err := filepath.WalkDir(d.stagingDir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if d.extensions[strings.ToLower(filepath.Ext(path))] {
			files[path] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan staging dir: %w", err)
	}
	return files, nil
}

func (d *Downloader) runCommand(ctx context.Context, w *Want) error {
	// A catalog URL pins the exact recording; the free-text query is the
	// fallback for wants without an id
	query := w.SpotifyURL()
	if query == "" {
		query = w.Artist + " - " + w.Title
	}
	args := append(append([]string{}, d.command[1:]...), query)
	cmd := exec.CommandContext(ctx, d.command[0], args...)
	cmd.Dir = d.stagingDir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return fmt.Errorf("downloader failed for %q: %w: %s", query, err, msg)
		}
		return fmt.Errorf("downloader failed for %q: %w", query, err)
	}
	return nil
}
