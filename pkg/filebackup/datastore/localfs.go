// Copyright 2025 Oppie Thunder Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package datastore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/davidbrownell/FileBackup/pkg/filebackup/types"
)

// LocalFileSystemDataStore implements FileBasedDataStore directly against
// the local filesystem (recovered from original_source's FileSystemDataStore.py).
//
// NonLocal switches off the "same drive, reject overlapping inputs"
// optimization — the `[nonlocal]` destination-URL prefix from spec §6.1
// exists purely so tests can exercise a destination that looks remote.
type LocalFileSystemDataStore struct {
	workingDir string
	NonLocal   bool
}

// NewLocalFileSystemDataStore roots a store at dir.
func NewLocalFileSystemDataStore(dir string) (*LocalFileSystemDataStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &LocalFileSystemDataStore{workingDir: abs}, nil
}

func (s *LocalFileSystemDataStore) abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(s.workingDir, p)
}

// ValidateBackupInputs rejects a destination that is nested under (or is
// identical to) one of the source inputs, when running against the local
// filesystem (spec §7 InvalidInput/Overlap).
func (s *LocalFileSystemDataStore) ValidateBackupInputs(paths []string) error {
	if s.NonLocal {
		return nil
	}
	dest := s.workingDir
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		if isDescendant(dest, abs) || isDescendant(abs, dest) || abs == dest {
			return fmt.Errorf("destination %q overlaps with input %q", dest, abs)
		}
	}
	return nil
}

func isDescendant(candidate, ancestor string) bool {
	rel, err := filepath.Rel(ancestor, candidate)
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..")
}

// SnapshotPathToDestPath implements the flattening rules of spec §6.4.
func (s *LocalFileSystemDataStore) SnapshotPathToDestPath(absPath string) string {
	return FlattenSnapshotPath(absPath)
}

// FlattenSnapshotPath implements spec §6.4's path-flattening rules
// independent of which store applies them: on Windows a leading drive
// letter "C:" becomes "C_"; on POSIX the leading "/" is dropped.
func FlattenSnapshotPath(absPath string) string {
	p := filepath.ToSlash(absPath)

	if len(p) >= 2 && p[1] == ':' && isDriveLetter(p[0]) {
		rest := strings.TrimPrefix(p[2:], "/")
		return string(p[0]) + "_/" + rest
	}

	return strings.TrimPrefix(p, "/")
}

func isDriveLetter(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

// BytesAvailable reports free space on the filesystem backing the working
// directory. Returns ok=false on platforms where it cannot be determined
// (spec §4.5.1 step 5 treats that as "unknown" and skips the size gate).
func (s *LocalFileSystemDataStore) BytesAvailable() (int64, bool) {
	return bytesAvailable(s.workingDir)
}

func (s *LocalFileSystemDataStore) GetWorkingDir() string { return s.workingDir }

func (s *LocalFileSystemDataStore) SetWorkingDir(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	s.workingDir = abs
	return nil
}

func (s *LocalFileSystemDataStore) ItemType(p string) (types.ItemType, error) {
	fi, err := os.Lstat(s.abs(p))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.ItemNone, nil
		}
		return types.ItemNone, err
	}
	switch {
	case fi.Mode()&os.ModeSymlink != 0:
		return types.ItemSymLink, nil
	case fi.IsDir():
		return types.ItemDir, nil
	default:
		return types.ItemFile, nil
	}
}

func (s *LocalFileSystemDataStore) FileSize(p string) (int64, error) {
	fi, err := os.Stat(s.abs(p))
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (s *LocalFileSystemDataStore) RemoveDir(p string) error {
	return os.RemoveAll(s.abs(p))
}

func (s *LocalFileSystemDataStore) RemoveFile(p string) error {
	return os.Remove(s.abs(p))
}

// MakeDirs is idempotent recursive mkdir.
func (s *LocalFileSystemDataStore) MakeDirs(p string) error {
	return os.MkdirAll(s.abs(p), 0o755)
}

func (s *LocalFileSystemDataStore) Open(_ context.Context, p string, flag int) (io.ReadWriteCloser, error) {
	return os.OpenFile(s.abs(p), flag, 0o644)
}

// Rename replaces any existing entry at newPath.
func (s *LocalFileSystemDataStore) Rename(oldPath, newPath string) error {
	np := s.abs(newPath)
	if fi, err := os.Lstat(np); err == nil {
		if fi.IsDir() {
			if err := os.RemoveAll(np); err != nil {
				return err
			}
		} else if err := os.Remove(np); err != nil {
			return err
		}
	}
	return os.Rename(s.abs(oldPath), np)
}

func (s *LocalFileSystemDataStore) Walk(ctx context.Context, root string) (<-chan WalkEntry, <-chan error) {
	entries := make(chan WalkEntry)
	errs := make(chan error, 1)

	go func() {
		defer close(entries)
		defer close(errs)

		base := s.abs(root)
		byDir := map[string]*WalkEntry{}
		var order []string

		err := filepath.WalkDir(base, func(p string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			// Every directory, root and empty ones included, gets its own entry.
			if d.IsDir() {
				if own, relErr := filepath.Rel(s.workingDir, p); relErr == nil {
					own = filepath.ToSlash(own)
					if _, ok := byDir[own]; !ok {
						byDir[own] = &WalkEntry{Root: own}
						order = append(order, own)
					}
				}
			}
			if p == base {
				return nil
			}

			dir := filepath.Dir(p)
			rel, relErr := filepath.Rel(s.workingDir, dir)
			if relErr != nil {
				rel = dir
			}
			rel = filepath.ToSlash(rel)

			entry, ok := byDir[rel]
			if !ok {
				entry = &WalkEntry{Root: rel}
				byDir[rel] = entry
				order = append(order, rel)
			}
			if d.IsDir() {
				entry.Dirs = append(entry.Dirs, d.Name())
			} else {
				entry.Files = append(entry.Files, d.Name())
			}
			return nil
		})
		if err != nil {
			errs <- err
			return
		}

		for _, dir := range order {
			select {
			case entries <- *byDir[dir]:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return entries, errs
}

// ExecuteInParallel reports true: the local filesystem is assumed to be an
// SSD capable of concurrent I/O (spec §5, recovered from FileSystemDataStore.py).
func (s *LocalFileSystemDataStore) ExecuteInParallel() bool { return true }

var _ FileBasedDataStore = (*LocalFileSystemDataStore)(nil)
