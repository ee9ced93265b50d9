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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidbrownell/FileBackup/pkg/filebackup/types"
)

func TestDiff_AgainstEmptyOtherIsAllAdds(t *testing.T) {
	local := NewRoot()
	require.NoError(t, local.AddFile("a.txt", "h1", 1, false))
	require.NoError(t, local.AddFile("dir/b.txt", "h2", 2, false))

	diffs := local.Diff(nil, DiffOptions{CompareHashes: true})
	require.Len(t, diffs, 2)
	for _, d := range diffs {
		assert.Equal(t, types.DiffAdd, d.Operation)
	}
}

func TestDiff_IdenticalTreesIsEmpty(t *testing.T) {
	a := NewRoot()
	require.NoError(t, a.AddFile("a.txt", "h1", 1, false))
	b := NewRoot()
	require.NoError(t, b.AddFile("a.txt", "h1", 1, false))

	assert.Empty(t, a.Diff(b, DiffOptions{CompareHashes: true}))
}

func TestDiff_ModifiedFileHash(t *testing.T) {
	a := NewRoot()
	require.NoError(t, a.AddFile("a.txt", "h2", 1, false))
	b := NewRoot()
	require.NoError(t, b.AddFile("a.txt", "h1", 1, false))

	diffs := a.Diff(b, DiffOptions{CompareHashes: true})
	require.Len(t, diffs, 1)
	assert.Equal(t, types.DiffModify, diffs[0].Operation)
	assert.Equal(t, "h2", diffs[0].ThisHash)
	assert.Equal(t, "h1", diffs[0].OtherHash)
}

func TestDiff_RemovedFile(t *testing.T) {
	a := NewRoot()
	b := NewRoot()
	require.NoError(t, b.AddFile("gone.txt", "h1", 1, false))

	diffs := a.Diff(b, DiffOptions{CompareHashes: true})
	require.Len(t, diffs, 1)
	assert.Equal(t, types.DiffRemove, diffs[0].Operation)
	assert.Equal(t, "gone.txt", diffs[0].Path)
}

func TestDiff_WholeDirectoryRemovalIsAtomic(t *testing.T) {
	a := NewRoot()
	b := NewRoot()
	require.NoError(t, b.AddFile("dir/a.txt", "h1", 1, false))
	require.NoError(t, b.AddFile("dir/b.txt", "h2", 2, false))

	diffs := a.Diff(b, DiffOptions{CompareHashes: true})
	require.Len(t, diffs, 1)
	assert.Equal(t, types.DiffRemove, diffs[0].Operation)
	assert.Equal(t, "dir", diffs[0].Path)
}

func TestDiff_ExplicitlyAddedDirKeepsPerChildRemoves(t *testing.T) {
	a := NewRoot()
	require.NoError(t, a.AddDir("dir", false))
	b := NewRoot()
	require.NoError(t, b.AddDir("dir", false))
	require.NoError(t, b.AddFile("dir/a.txt", "h1", 1, true))

	diffs := a.Diff(b, DiffOptions{CompareHashes: true})
	require.Len(t, diffs, 1)
	assert.Equal(t, types.DiffRemove, diffs[0].Operation)
	assert.Equal(t, "dir/a.txt", diffs[0].Path)
}

func TestDiff_FileToDirTypeChange(t *testing.T) {
	a := NewRoot()
	require.NoError(t, a.AddFile("p/x.txt", "h1", 1, false))
	b := NewRoot()
	require.NoError(t, b.AddFile("p", "h0", 0, false))

	diffs := a.Diff(b, DiffOptions{CompareHashes: true})
	require.Len(t, diffs, 2)
	assert.Equal(t, types.DiffRemove, diffs[0].Operation)
	assert.Equal(t, types.DiffAdd, diffs[1].Operation)
}

func TestGroup_PartitionsByOperation(t *testing.T) {
	diffs := []Diff{
		{Operation: types.DiffAdd, Path: "a"},
		{Operation: types.DiffRemove, Path: "b"},
		{Operation: types.DiffModify, Path: "c"},
	}
	g := Group(diffs)
	assert.Len(t, g.Add, 1)
	assert.Len(t, g.Remove, 1)
	assert.Len(t, g.Modify, 1)
}

func TestSortByPath(t *testing.T) {
	diffs := []Diff{{Path: "z"}, {Path: "a"}, {Path: "m"}}
	SortByPath(diffs)
	assert.Equal(t, []string{"a", "m", "z"}, []string{diffs[0].Path, diffs[1].Path, diffs[2].Path})
}
