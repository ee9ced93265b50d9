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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidbrownell/FileBackup/pkg/filebackup/types"
)

func TestLocalFileSystemDataStore_ItemTypeAndFileSize(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dir"), 0o755))

	store, err := NewLocalFileSystemDataStore(root)
	require.NoError(t, err)

	it, err := store.ItemType("a.txt")
	require.NoError(t, err)
	assert.Equal(t, types.ItemFile, it)

	it, err = store.ItemType("dir")
	require.NoError(t, err)
	assert.Equal(t, types.ItemDir, it)

	it, err = store.ItemType("missing")
	require.NoError(t, err)
	assert.Equal(t, types.ItemNone, it)

	size, err := store.FileSize("a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)
}

func TestLocalFileSystemDataStore_RenameReplacesExisting(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "old"), []byte("new-content"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "existing"), []byte("stale"), 0o644))

	store, err := NewLocalFileSystemDataStore(root)
	require.NoError(t, err)

	require.NoError(t, store.Rename("old", "existing"))

	data, err := os.ReadFile(filepath.Join(root, "existing"))
	require.NoError(t, err)
	assert.Equal(t, "new-content", string(data))

	_, err = os.Stat(filepath.Join(root, "old"))
	assert.True(t, os.IsNotExist(err))
}

func TestLocalFileSystemDataStore_ValidateBackupInputsRejectsOverlap(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))

	store, err := NewLocalFileSystemDataStore(filepath.Join(root, "sub"))
	require.NoError(t, err)

	assert.Error(t, store.ValidateBackupInputs([]string{root}))
}

func TestLocalFileSystemDataStore_NonLocalSkipsValidation(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalFileSystemDataStore(root)
	require.NoError(t, err)
	store.NonLocal = true

	assert.NoError(t, store.ValidateBackupInputs([]string{root}))
}

func TestLocalFileSystemDataStore_WalkGroupsByDirectory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "f1.txt"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "b", "f2.txt"), []byte("2"), 0o644))

	store, err := NewLocalFileSystemDataStore(root)
	require.NoError(t, err)

	entries, errs := store.Walk(context.Background(), "a")
	seen := map[string][]string{}
	for e := range entries {
		seen[e.Root] = e.Files
	}
	require.NoError(t, <-errs)

	assert.Equal(t, []string{"f1.txt"}, seen["a"])
	assert.Equal(t, []string{"f2.txt"}, seen["a/b"])
}

func TestFlattenSnapshotPath_PosixDropsLeadingSlash(t *testing.T) {
	assert.Equal(t, "home/user/file.txt", FlattenSnapshotPath("/home/user/file.txt"))
}

func TestFlattenSnapshotPath_WindowsDriveLetter(t *testing.T) {
	assert.Equal(t, "C_/Users/file.txt", FlattenSnapshotPath(`C:\Users\file.txt`))
}
