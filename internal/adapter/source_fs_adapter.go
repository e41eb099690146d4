// Package adapter contains the infrastructure adapters of faultline: Go syntax,
// file system, build, test harness, predicate sources and persistence.
package adapter

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	m "faultline.dev/pkg/faultline/internal/model"
)

// SourceFSAdapter abstracts filesystem-specific operations that the domain layer
// relies on when rewriting subject sources. It hides direct `os` access so the
// validation logic can be tested without touching the disk.
//
//nolint:interfacebloat // A richer interface keeps domain logic decoupled from os/fs.
type SourceFSAdapter interface {
	// ReadFile loads a file from disk and returns its contents.
	ReadFile(ctx context.Context, path m.Path) ([]byte, error)

	// WriteFile writes content to a file with the given permissions.
	WriteFile(ctx context.Context, path m.Path, content []byte, perm os.FileMode) error

	// Remove deletes a single file. A missing file is not an error.
	Remove(ctx context.Context, path m.Path) error

	// HashFile returns a stable fingerprint (SHA-256) for the file at path.
	HashFile(ctx context.Context, path m.Path) (string, error)

	// FindProjectRoot searches for the go.mod file walking up the directory tree.
	FindProjectRoot(ctx context.Context, startPath m.Path) (m.Path, error)

	// CreateTempDir creates a temporary directory.
	CreateTempDir(ctx context.Context, pattern string) (m.Path, error)

	// RemoveAll removes a directory and all its contents.
	RemoveAll(ctx context.Context, path m.Path) error

	// CopyDir recursively copies a directory tree.
	CopyDir(ctx context.Context, src, dst m.Path) error

	// RelPath returns the relative path from base to target.
	RelPath(ctx context.Context, base, target m.Path) (m.Path, error)

	// JoinPath joins path elements into a single path.
	JoinPath(ctx context.Context, elem ...string) m.Path

	// Snapshot captures the current bytes of every path; missing files are recorded
	// as absent so Restore removes them.
	Snapshot(ctx context.Context, paths ...m.Path) (*Snapshot, error)

	// Restore writes every captured file back byte-for-byte.
	Restore(ctx context.Context, snapshot *Snapshot) error
}

// Snapshot is a byte-for-byte copy of a set of files.
type Snapshot struct {
	files map[m.Path]snapshotEntry
}

type snapshotEntry struct {
	content []byte
	mode    os.FileMode
	exists  bool
}

// Paths returns the captured paths in sorted order.
func (s *Snapshot) Paths() []m.Path {
	paths := make([]m.Path, 0, len(s.files))
	for path := range s.files {
		paths = append(paths, path)
	}

	sort.Slice(paths, func(i, j int) bool { return paths[i] < paths[j] })

	return paths
}

// Content returns the captured bytes of path and whether the file existed.
func (s *Snapshot) Content(path m.Path) ([]byte, bool) {
	entry, ok := s.files[path]
	if !ok || !entry.exists {
		return nil, false
	}

	return entry.content, true
}

// LocalSourceFSAdapter is the os-backed SourceFSAdapter.
type LocalSourceFSAdapter struct{}

// NewLocalSourceFSAdapter constructs a LocalSourceFSAdapter.
func NewLocalSourceFSAdapter() *LocalSourceFSAdapter {
	return &LocalSourceFSAdapter{}
}

// ReadFile loads file contents from disk.
func (a *LocalSourceFSAdapter) ReadFile(_ context.Context, path m.Path) ([]byte, error) {
	return os.ReadFile(string(path))
}

// WriteFile writes content to a file with the given permissions.
func (a *LocalSourceFSAdapter) WriteFile(_ context.Context, path m.Path, content []byte, perm os.FileMode) error {
	return os.WriteFile(string(path), content, perm)
}

// Remove deletes a single file.
func (a *LocalSourceFSAdapter) Remove(_ context.Context, path m.Path) error {
	err := os.Remove(string(path))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}

// HashFile returns the SHA-256 hash of the file at the provided path.
func (a *LocalSourceFSAdapter) HashFile(_ context.Context, path m.Path) (string, error) {
	f, err := os.Open(string(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// FindProjectRoot searches for go.mod file walking up the directory tree.
func (a *LocalSourceFSAdapter) FindProjectRoot(_ context.Context, startPath m.Path) (m.Path, error) {
	dir, err := filepath.Abs(string(startPath))
	if err != nil {
		return "", err
	}

	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		dir = filepath.Dir(dir)
	}

	for {
		goModPath := filepath.Join(dir, "go.mod")
		if _, err := os.Stat(goModPath); err == nil {
			return m.Path(dir), nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found in any parent directory of %s", startPath)
		}

		dir = parent
	}
}

// CreateTempDir creates a temporary directory.
func (a *LocalSourceFSAdapter) CreateTempDir(_ context.Context, pattern string) (m.Path, error) {
	tmpDir, err := os.MkdirTemp("", pattern)
	if err != nil {
		return "", err
	}

	return m.Path(tmpDir), nil
}

// RemoveAll removes a directory and all its contents.
func (a *LocalSourceFSAdapter) RemoveAll(_ context.Context, path m.Path) error {
	return os.RemoveAll(string(path))
}

// CopyDir recursively copies a directory tree.
func (a *LocalSourceFSAdapter) CopyDir(ctx context.Context, src, dst m.Path) error {
	return filepath.Walk(string(src), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		relPath, err := filepath.Rel(string(src), path)
		if err != nil {
			return err
		}

		// Skip directories that are never needed to build and test the subject.
		if info.IsDir() {
			baseName := filepath.Base(path)
			if baseName == ".git" || baseName == "node_modules" || baseName == workDirName {
				return filepath.SkipDir
			}
		}

		targetPath := filepath.Join(string(dst), relPath)

		if info.IsDir() {
			return os.MkdirAll(targetPath, info.Mode()|0o700)
		}

		if !info.Mode().IsRegular() {
			return nil
		}

		return a.copyFile(path, targetPath, info.Mode())
	})
}

// copyFile copies a single file.
func (a *LocalSourceFSAdapter) copyFile(src, dst string, mode os.FileMode) error {
	// #nosec G304 - src is internal project file path, not user input
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}

	defer func() { _ = sourceFile.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}

	// #nosec G304 - dst is internal destination path, not user input
	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}

	defer func() { _ = destFile.Close() }()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return os.Chmod(dst, mode)
}

// RelPath returns the relative path from base to target.
func (a *LocalSourceFSAdapter) RelPath(_ context.Context, base, target m.Path) (m.Path, error) {
	rel, err := filepath.Rel(string(base), string(target))
	if err != nil {
		return "", err
	}

	return m.Path(rel), nil
}

// JoinPath joins path elements into a single path.
func (a *LocalSourceFSAdapter) JoinPath(_ context.Context, elem ...string) m.Path {
	return m.Path(filepath.Join(elem...))
}

// Snapshot captures the bytes and permissions of every path.
func (a *LocalSourceFSAdapter) Snapshot(_ context.Context, paths ...m.Path) (*Snapshot, error) {
	snapshot := &Snapshot{files: make(map[m.Path]snapshotEntry, len(paths))}

	for _, path := range paths {
		info, err := os.Stat(string(path))
		if errors.Is(err, fs.ErrNotExist) {
			snapshot.files[path] = snapshotEntry{exists: false}
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("%w: stat %s: %v", m.ErrInfrastructure, path, err)
		}

		content, err := os.ReadFile(string(path))
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", m.ErrInfrastructure, path, err)
		}

		snapshot.files[path] = snapshotEntry{content: content, mode: info.Mode().Perm(), exists: true}
	}

	return snapshot, nil
}

// Restore writes every captured file back and removes files that did not exist
// when the snapshot was taken. All paths are attempted even if one fails.
func (a *LocalSourceFSAdapter) Restore(_ context.Context, snapshot *Snapshot) error {
	if snapshot == nil {
		return nil
	}

	var errs []error

	for _, path := range snapshot.Paths() {
		entry := snapshot.files[path]

		if !entry.exists {
			if err := os.Remove(string(path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
			}

			continue
		}

		if err := os.WriteFile(string(path), entry.content, entry.mode); err != nil {
			errs = append(errs, fmt.Errorf("restore %s: %w", path, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", m.ErrInfrastructure, errors.Join(errs...))
	}

	return nil
}
