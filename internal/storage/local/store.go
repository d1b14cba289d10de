// Package local implements a local filesystem movements store.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JakeFAU/harbour-movements/internal/storage"
)

// Config captures the parameters for the local filesystem store.
type Config struct {
	// BaseDir is the root directory of the date-partitioned tree.
	BaseDir string
}

// Store writes movement files under BaseDir.
type Store struct {
	baseDir string
}

// New creates a new local filesystem-backed store.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	// Check if the directory exists and is writable.
	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
				return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
			}
		} else {
			return nil, fmt.Errorf("failed to stat base directory: %w", err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &Store{baseDir: cfg.BaseDir}, nil
}

// EnsureDayDir creates BaseDir/YYYY/MM/DD for at if needed and returns it.
// Calling it again for the same day is a no-op.
func (s *Store) EnsureDayDir(at time.Time) (string, error) {
	dir := filepath.FromSlash(storage.DayDir(s.baseDir, at))
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create day directory %s: %w", dir, err)
	}
	return dir, nil
}

// Create ensures the day directory and opens the run's file, truncating any
// previous content. The returned URI uses the file:// scheme.
func (s *Store) Create(ctx context.Context, at time.Time) (io.WriteCloser, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", fmt.Errorf("context canceled: %w", err)
	}
	dir, err := s.EnsureDayDir(at)
	if err != nil {
		return nil, "", err
	}
	fullPath := filepath.Join(dir, storage.FileName(at))
	// #nosec G302 G304 -- output files are meant to be world readable; path is built from the clock.
	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("create %s: %w", fullPath, err)
	}
	return f, fmt.Sprintf("file://%s", fullPath), nil
}
