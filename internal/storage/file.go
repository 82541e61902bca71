// Package storage provides export sinks and atomic file helpers.
package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bobmcallan/surveylens/internal/common"
)

// FileSink writes exports into a local directory.
type FileSink struct {
	dir    string
	logger *common.Logger
}

// NewFileSink creates a FileSink rooted at dir, creating it if needed.
func NewFileSink(logger *common.Logger, dir string) (*FileSink, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory %s: %w", dir, err)
	}
	logger.Debug().Str("dir", dir).Msg("FileSink opened")
	return &FileSink{dir: dir, logger: logger}, nil
}

// Dir returns the export directory.
func (s *FileSink) Dir() string {
	return s.dir
}

// Put writes data to <dir>/<sanitised name> atomically and returns the path.
func (s *FileSink) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	target := filepath.Join(s.dir, sanitizeName(name))
	if err := WriteFileAtomic(target, data, 0o644); err != nil {
		return "", err
	}
	s.logger.Info().Str("path", target).Str("content_type", contentType).Int("bytes", len(data)).Msg("Export written")
	return target, nil
}

// sanitizeName makes a name safe for use as a filename.
// Replaces /, \, : with _ and collapses ".." to "_" to prevent path traversal.
func sanitizeName(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "..", "_")
	name = r.Replace(name)
	if name == "" || name == "." {
		return "_"
	}
	return name
}

// WriteFileAtomic writes data to a temp file in the target directory, then
// renames it over path.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Chmod(perm); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
