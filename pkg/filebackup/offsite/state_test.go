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

package offsite

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidbrownell/FileBackup/pkg/filebackup/snapshot"
)

func TestStateDir_PrefersExplicitEnvVar(t *testing.T) {
	t.Setenv("FILEBACKUP_STATE_DIR", "/custom/state")
	dir, err := StateDir()
	require.NoError(t, err)
	assert.Equal(t, "/custom/state", dir)
}

func TestStateDir_FallsBackToXDGStateHome(t *testing.T) {
	t.Setenv("FILEBACKUP_STATE_DIR", "")
	t.Setenv("XDG_STATE_HOME", "/xdg/state")
	dir, err := StateDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/xdg/state", "filebackup"), dir)
}

func TestLoadCommitted_MissingReturnsNilNotError(t *testing.T) {
	n, err := LoadCommitted(t.TempDir(), "myset")
	require.NoError(t, err)
	assert.Nil(t, n)
}

func TestSaveAndLoadCommitted_RoundTrips(t *testing.T) {
	stateDir := t.TempDir()
	root := snapshot.NewRoot()
	root.AddFile("a.txt", "hash1", 5, false)

	require.NoError(t, SaveCommitted(stateDir, "myset", root))

	loaded, err := LoadCommitted(stateDir, "myset")
	require.NoError(t, err)
	require.NotNil(t, loaded)

	child := loaded.ByPath("a.txt")
	require.NotNil(t, child)
	assert.Equal(t, "hash1", child.Hash())
}

func TestPendingLifecycle_SaveExistsDeleteCommit(t *testing.T) {
	stateDir := t.TempDir()
	root := snapshot.NewRoot()
	root.AddFile("a.txt", "hash1", 5, false)

	exists, err := PendingExists(stateDir, "myset")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, SavePending(stateDir, "myset", root))

	exists, err = PendingExists(stateDir, "myset")
	require.NoError(t, err)
	assert.True(t, exists)

	pending, err := LoadPending(stateDir, "myset")
	require.NoError(t, err)
	require.NotNil(t, pending)

	require.NoError(t, Commit(stateDir, "myset"))

	exists, err = PendingExists(stateDir, "myset")
	require.NoError(t, err)
	assert.False(t, exists)

	committed, err := LoadCommitted(stateDir, "myset")
	require.NoError(t, err)
	require.NotNil(t, committed)
	assert.NotNil(t, committed.ByPath("a.txt"))
}

func TestCommit_NoPendingErrors(t *testing.T) {
	err := Commit(t.TempDir(), "myset")
	assert.Error(t, err)
}

func TestDeletePending_MissingIsNotAnError(t *testing.T) {
	assert.NoError(t, DeletePending(t.TempDir(), "myset"))
}

func TestSaveSnapshotFile_WritesAtomicallyViaTempRename(t *testing.T) {
	stateDir := t.TempDir()
	root := snapshot.NewRoot()
	require.NoError(t, SaveCommitted(stateDir, "myset", root))

	entries, err := os.ReadDir(stateDir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp")
	}
	_, err = os.Stat(committedPath(stateDir, "myset"))
	require.NoError(t, err)
}
