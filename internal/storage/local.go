package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

type LocalStorage struct {
	inboxDir  string
	doneDir   string
	failedDir string
	extension string

	rename func(oldpath, newpath string) error
}

func NewLocalStorage(inboxDir, doneDir, failedDir, extension string) *LocalStorage {
	return &LocalStorage{
		inboxDir:  inboxDir,
		doneDir:   doneDir,
		failedDir: failedDir,
		extension: strings.ToLower(extension),
		rename:    os.Rename,
	}
}

func (s *LocalStorage) DoneDir() string   { return s.doneDir }
func (s *LocalStorage) FailedDir() string { return s.failedDir }

// ListCandidates returns up to limit inbox files carrying the video
// extension, in English collation order.
func (s *LocalStorage) ListCandidates(limit int) ([]string, error) {
	if limit <= 0 {
		return []string{}, nil
	}

	entries, err := os.ReadDir(s.inboxDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(entry.Name()), s.extension) {
			names = append(names, entry.Name())
		}
	}

	collate.New(language.English).SortStrings(names)

	if len(names) > limit {
		names = names[:limit]
	}

	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(s.inboxDir, name)
	}
	return paths, nil
}

// Relocate moves path into targetDir, keeping its base name, and returns
// the new path. A file of the same name in targetDir is replaced. Across
// filesystems the file is copied to a temporary file in targetDir, synced
// and renamed over the destination before the source is removed.
func (s *LocalStorage) Relocate(path, targetDir string) (string, error) {
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return "", fmt.Errorf("%w: creating %s: %w", ErrRelocate, targetDir, err)
	}

	dest := filepath.Join(targetDir, filepath.Base(path))

	err := s.rename(path, dest)
	if err == nil {
		return dest, nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return "", fmt.Errorf("%w: %w", ErrRelocate, err)
	}

	if err := copyReplace(path, dest); err != nil {
		return "", fmt.Errorf("%w: copying %s: %w", ErrRelocate, path, err)
	}
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("%w: removing source %s: %w", ErrRelocate, path, err)
	}

	return dest, nil
}

// copyReplace copies src next to dst and renames the copy over dst. Only
// the temporary copy is removed on failure; an existing dst is left as is.
func copyReplace(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	done := false
	defer func() {
		if !done {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(info.Mode().Perm()); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		return err
	}

	done = true
	return nil
}

func (s *LocalStorage) EnsureDirectories() error {
	for _, dir := range []string{s.inboxDir, s.doneDir, s.failedDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
