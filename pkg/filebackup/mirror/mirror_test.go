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

package mirror

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidbrownell/FileBackup/internal/metrics"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/datastore"
)

func newStore(t *testing.T, dir string) *datastore.LocalFileSystemDataStore {
	t.Helper()
	s, err := datastore.NewLocalFileSystemDataStore(dir)
	require.NoError(t, err)
	return s
}

func TestBackup_FirstRunCopiesEverything(t *testing.T) {
	srcRoot := t.TempDir()
	destRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(srcRoot, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "data", "a.txt"), []byte("hello"), 0o644))

	source := newStore(t, srcRoot)
	dest := newStore(t, destRoot)
	m := metrics.NewEngineMetrics()

	result, err := Backup(context.Background(), []string{"data"}, source, dest, Options{
		CalculateHashes: true,
		Metrics:         m,
	})
	require.NoError(t, err)
	assert.Len(t, result.Diffs, 1)

	content, err := os.ReadFile(filepath.Join(destRoot, ContentDir, "data", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(content))

	_, err = os.Stat(filepath.Join(destRoot, "BackupSnapshot.json"))
	require.NoError(t, err)

	snap := m.Snapshot(OperationName)
	assert.GreaterOrEqual(t, snap.P50, int64(0))
}

func TestBackup_SecondRunAppliesOnlyTheDiff(t *testing.T) {
	srcRoot := t.TempDir()
	destRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "a.txt"), []byte("v1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "b.txt"), []byte("keep"), 0o644))

	source := newStore(t, srcRoot)
	dest := newStore(t, destRoot)

	_, err := Backup(context.Background(), []string{"a.txt", "b.txt"}, source, dest, Options{CalculateHashes: true})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "a.txt"), []byte("v2"), 0o644))
	require.NoError(t, os.Remove(filepath.Join(srcRoot, "b.txt")))

	result, err := Backup(context.Background(), []string{"a.txt"}, source, dest, Options{CalculateHashes: true})
	require.NoError(t, err)
	require.Len(t, result.Diffs, 2) // remove b.txt, modify a.txt

	data, err := os.ReadFile(filepath.Join(destRoot, ContentDir, "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestBackup_NoChangesProducesEmptyDiff(t *testing.T) {
	srcRoot := t.TempDir()
	destRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "a.txt"), []byte("same"), 0o644))

	source := newStore(t, srcRoot)
	dest := newStore(t, destRoot)

	_, err := Backup(context.Background(), []string{"a.txt"}, source, dest, Options{CalculateHashes: true})
	require.NoError(t, err)

	result, err := Backup(context.Background(), []string{"a.txt"}, source, dest, Options{CalculateHashes: true})
	require.NoError(t, err)
	assert.Empty(t, result.Diffs)
}

func TestBackup_RejectsOverlappingDestination(t *testing.T) {
	root := t.TempDir()
	source := newStore(t, root)
	dest := newStore(t, root)

	_, err := Backup(context.Background(), []string{root}, source, dest, Options{})
	assert.Error(t, err)
}

func TestCleanup_RestoresPendingDeleteAndRemovesPendingCommit(t *testing.T) {
	destRoot := t.TempDir()
	contentDir := filepath.Join(destRoot, ContentDir)
	require.NoError(t, os.MkdirAll(contentDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(contentDir, "a.txt"+pendingDeleteSuffix), []byte("orig"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(contentDir, "b.txt"+pendingCommitSuffix), []byte("half-written"), 0o644))

	dest := newStore(t, destRoot)
	require.NoError(t, Cleanup(context.Background(), dest, nil))

	_, err := os.Stat(filepath.Join(contentDir, "a.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(contentDir, "a.txt"+pendingDeleteSuffix))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(contentDir, "b.txt"+pendingCommitSuffix))
	assert.True(t, os.IsNotExist(err))
}
