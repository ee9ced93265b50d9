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

package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidbrownell/FileBackup/pkg/filebackup/datastore"
)

func TestIncludeExclude_Matches(t *testing.T) {
	f := IncludeExclude{Include: []string{"**/*.txt"}, Exclude: []string{"**/secret.txt"}}
	assert.True(t, f.Matches("a/b.txt"))
	assert.False(t, f.Matches("a/secret.txt"))
	assert.False(t, f.Matches("a/b.bin"))
}

func TestIncludeExclude_EmptyMatchesEverything(t *testing.T) {
	var f IncludeExclude
	assert.True(t, f.Matches("anything/at/all.bin"))
}

func TestCalculate_DiscoversFilesAndEmptyDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "empty"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "x.txt"), []byte("hello"), 0o644))

	store, err := datastore.NewLocalFileSystemDataStore(root)
	require.NoError(t, err)

	snap, err := Calculate(context.Background(), []string{"a"}, store, CalculateOptions{CalculateHashes: true})
	require.NoError(t, err)

	leaf := snap.ByPath("a/x.txt")
	require.NotNil(t, leaf)
	assert.True(t, leaf.IsFile())
	assert.Equal(t, int64(5), leaf.FileSize())
	assert.NotEmpty(t, leaf.Hash())

	empty := snap.ByPath("a/empty")
	require.NotNil(t, empty)
	assert.True(t, empty.IsDir())
}

func TestCalculate_AppliesFilter(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "keep.txt"), []byte("k"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "skip.bin"), []byte("s"), 0o644))

	store, err := datastore.NewLocalFileSystemDataStore(root)
	require.NoError(t, err)

	snap, err := Calculate(context.Background(), []string{"a"}, store, CalculateOptions{
		CalculateHashes: true,
		Filter:          &IncludeExclude{Include: []string{"**/*.txt"}},
	})
	require.NoError(t, err)

	assert.NotNil(t, snap.ByPath("a/keep.txt"))
	assert.Nil(t, snap.ByPath("a/skip.bin"))
}

func TestCalculate_RejectsOverlappingInputs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b"), 0o755))

	store, err := datastore.NewLocalFileSystemDataStore(root)
	require.NoError(t, err)

	_, err = Calculate(context.Background(), []string{"a", "a/b"}, store, CalculateOptions{})
	assert.Error(t, err)
}

func TestCalculate_RejectsEmptyInputs(t *testing.T) {
	root := t.TempDir()
	store, err := datastore.NewLocalFileSystemDataStore(root)
	require.NoError(t, err)

	_, err = Calculate(context.Background(), nil, store, CalculateOptions{})
	assert.Error(t, err)
}
