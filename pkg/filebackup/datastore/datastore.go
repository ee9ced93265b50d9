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

// Package datastore implements the data store abstraction (spec §3.5, §4.1):
// a uniform interface over a hierarchical byte-addressed store, with two
// shapes — file-based (random access) and bulk (append-only upload).
package datastore

import (
	"context"
	"io"

	"github.com/davidbrownell/FileBackup/pkg/filebackup/types"
)

// WalkEntry is one (root, dirs, files) triple yielded by Walk, mirroring
// os.ReadDir-style results but relative to a FileBasedDataStore's cwd.
type WalkEntry struct {
	Root  string
	Dirs  []string
	Files []string
}

// FileBasedDataStore is a random-access store: walk, open, rename, mkdir,
// remove, stat (spec §3.5, §4.1). Every operation is relative to the
// store's current working directory.
type FileBasedDataStore interface {
	// ValidateBackupInputs performs store-specific sanity checks on the
	// proposed source inputs (e.g. the destination must not overlap inputs
	// on the local filesystem).
	ValidateBackupInputs(paths []string) error

	// SnapshotPathToDestPath flattens an absolute source path into a
	// destination-relative path (spec §6.4).
	SnapshotPathToDestPath(absPath string) string

	// BytesAvailable reports free space at the store's working directory.
	// ok is false when the store cannot determine available space (e.g. a
	// remote store with no quota API).
	BytesAvailable() (bytes int64, ok bool)

	GetWorkingDir() string
	SetWorkingDir(path string) error

	ItemType(path string) (types.ItemType, error)
	FileSize(path string) (int64, error)

	RemoveDir(path string) error
	RemoveFile(path string) error
	MakeDirs(path string) error

	// Open opens path for the given flags (os.O_RDONLY, os.O_WRONLY|os.O_CREATE, ...).
	Open(ctx context.Context, path string, flag int) (io.ReadWriteCloser, error)

	// Rename atomically replaces any existing entry at newPath with oldPath.
	Rename(oldPath, newPath string) error

	Walk(ctx context.Context, root string) (<-chan WalkEntry, <-chan error)

	// ExecuteInParallel advises whether concurrent I/O against this store is
	// beneficial (true iff local SSD; false for network/remote stores).
	ExecuteInParallel() bool
}

// BulkStorageDataStore exposes only whole-tree upload; no random access
// (spec §4.1).
type BulkStorageDataStore interface {
	Upload(ctx context.Context, localTree string) error
}
