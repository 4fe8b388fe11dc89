package util

import (
	"bufio"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// hashBufSize is the streaming read chunk size (1 MiB)
const hashBufSize = 1 << 20

// HashFileSHA256 computes the SHA-256 content hash of a file in streaming
// mode. The hex digest is the track's identity through the entire pipeline:
// it is stable across renames and every sidecar records it.
func HashFileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file for hashing: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, bufio.NewReaderSize(f, hashBufSize)); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
