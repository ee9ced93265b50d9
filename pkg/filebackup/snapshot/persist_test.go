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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidbrownell/FileBackup/pkg/filebackup/datastore"
)

func TestPersist_LoadRoundTrip(t *testing.T) {
	store, err := datastore.NewLocalFileSystemDataStore(t.TempDir())
	require.NoError(t, err)

	root := NewRoot()
	require.NoError(t, root.AddFile("a.txt", "h1", 5, false))

	ctx := context.Background()
	require.NoError(t, Persist(ctx, store, root, ""))

	loaded, err := LoadPersisted(ctx, store, "")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.True(t, root.Equal(loaded))
}

func TestPersist_LoadMissingFileReturnsNilNoError(t *testing.T) {
	store, err := datastore.NewLocalFileSystemDataStore(t.TempDir())
	require.NoError(t, err)

	loaded, err := LoadPersisted(context.Background(), store, "")
	require.NoError(t, err)
	assert.Nil(t, loaded)
}
