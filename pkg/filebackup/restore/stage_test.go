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

package restore

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidbrownell/FileBackup/pkg/filebackup/datastore"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/offsite"
)

func hashOf(data []byte) string {
	sum := sha512.Sum512(data)
	return hex.EncodeToString(sum[:])
}

func TestTransferEntry_PreservesRelativeLayout(t *testing.T) {
	srcRoot := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(srcRoot, "entry", "ab"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "entry", "ab", "blob"), []byte("payload"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "entry", offsite.IndexFileName), []byte("[]"), 0o644))

	source, err := datastore.NewLocalFileSystemDataStore(srcRoot)
	require.NoError(t, err)

	destDir := filepath.Join(t.TempDir(), "transferred")
	require.NoError(t, transferEntry(context.Background(), source, "entry", destDir))

	data, err := os.ReadFile(filepath.Join(destDir, "ab", "blob"))
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	_, err = os.Stat(filepath.Join(destDir, offsite.IndexFileName))
	require.NoError(t, err)
}

func TestVerifyPayload_AcceptsCorrectlyHashedContent(t *testing.T) {
	dir := t.TempDir()
	blobData := []byte("content")
	blobHash := hashOf(blobData)
	require.NoError(t, os.WriteFile(filepath.Join(dir, blobHash), blobData, 0o644))

	indexData := []byte(`[{"operation":"add","path":"a.txt"}]`)
	indexHash := hashOf(indexData)
	require.NoError(t, os.WriteFile(filepath.Join(dir, offsite.IndexFileName), indexData, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, offsite.IndexHashFileName), []byte(indexHash), 0o644))

	assert.NoError(t, verifyPayload(dir, false, slog.Default()))
}

func TestVerifyPayload_RejectsCorruptedContentByDefault(t *testing.T) {
	dir := t.TempDir()
	blobHash := hashOf([]byte("content"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, blobHash), []byte("tampered"), 0o644))

	err := verifyPayload(dir, false, slog.Default())
	assert.Error(t, err)
}

func TestVerifyPayload_ContinueOnErrorsSwallowsMismatch(t *testing.T) {
	dir := t.TempDir()
	blobHash := hashOf([]byte("content"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, blobHash), []byte("tampered"), 0o644))

	assert.NoError(t, verifyPayload(dir, true, slog.Default()))
}

func TestStageIntoPool_SymlinksNewContentAndSkipsExisting(t *testing.T) {
	finalDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(finalDir, "ab", "cd"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(finalDir, "ab", "cd", "hash1"), []byte("one"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(finalDir, "ab", "cd", "hash0"), []byte("zero"), 0o644))

	stagingDir := t.TempDir()
	// Pre-stage a file at the same relative path to exercise the
	// already-present skip branch.
	require.NoError(t, os.MkdirAll(filepath.Join(stagingDir, "ab", "cd"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(stagingDir, "ab", "cd", "hash0"), []byte("pre-existing"), 0o644))

	require.NoError(t, stageIntoPool(finalDir, stagingDir))

	data, err := os.ReadFile(filepath.Join(stagingDir, "ab", "cd", "hash1"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))

	fi, err := os.Lstat(filepath.Join(stagingDir, "ab", "cd", "hash1"))
	require.NoError(t, err)
	assert.True(t, fi.Mode()&os.ModeSymlink != 0)

	data, err = os.ReadFile(filepath.Join(stagingDir, "ab", "cd", "hash0"))
	require.NoError(t, err)
	assert.Equal(t, "pre-existing", string(data))
}
