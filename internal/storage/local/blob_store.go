// Package local implements a filesystem artifact store, one text file per
// dictionary.
package local

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JakeFAU/dictgen/internal/dictionary"
)

const artifactExt = ".txt"

// Config captures the parameters for the local filesystem store.
type Config struct {
	// BaseDir is the root directory where artifacts will be stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// Store writes dictionaries to <BaseDir>/<id>.txt.
type Store struct {
	baseDir string
}

// New creates the base directory if needed and checks it is writable.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat base directory: %w", err)
		}
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
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

func (s *Store) path(id string) (string, error) {
	if err := dictionary.ValidateID(id); err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.baseDir, id+artifactExt)
	cleanBaseDir := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(fullPath), cleanBaseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: path traversal detected", dictionary.ErrInvalidArgument)
	}
	return fullPath, nil
}

// Write stores records via a temp file and rename so readers never observe
// a partial artifact.
func (s *Store) Write(_ context.Context, id string, records []dictionary.Record) error {
	fullPath, err := s.path(id)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(s.baseDir, "."+id+"-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %w", dictionary.ErrIOFailure, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(dictionary.EncodeRecords(records)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: write file: %w", dictionary.ErrIOFailure, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: close file: %w", dictionary.ErrIOFailure, err)
	}
	if err := os.Rename(tmpName, fullPath); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: rename file: %w", dictionary.ErrIOFailure, err)
	}
	return nil
}

// Read returns the raw artifact bytes.
func (s *Store) Read(_ context.Context, id string) ([]byte, error) {
	fullPath, err := s.path(id)
	if err != nil {
		return nil, err
	}
	// #nosec G304 -- path is validated and confined to baseDir.
	data, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, dictionary.NotFoundf("no artifact for %q", id)
		}
		return nil, fmt.Errorf("%w: read file: %w", dictionary.ErrIOFailure, err)
	}
	return data, nil
}

// ReadAll loads every artifact in the base directory, ordered by id.
func (s *Store) ReadAll(ctx context.Context) ([]dictionary.Artifact, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("%w: list directory: %w", dictionary.ErrIOFailure, err)
	}
	var artifacts []dictionary.Artifact
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, artifactExt) {
			continue
		}
		id := strings.TrimSuffix(name, artifactExt)
		if dictionary.ValidateID(id) != nil {
			continue
		}
		data, err := s.Read(ctx, id)
		if err != nil {
			return nil, err
		}
		records, err := dictionary.ParseRecords(data)
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s: %w", dictionary.ErrIOFailure, name, err)
		}
		artifacts = append(artifacts, dictionary.Artifact{ID: id, Records: records})
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].ID < artifacts[j].ID })
	return artifacts, nil
}

// Delete removes the artifact for id.
func (s *Store) Delete(_ context.Context, id string) error {
	fullPath, err := s.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return dictionary.NotFoundf("no artifact for %q", id)
		}
		return fmt.Errorf("%w: remove file: %w", dictionary.ErrIOFailure, err)
	}
	return nil
}
