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
	"crypto/sha512"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidbrownell/FileBackup/pkg/filebackup/snapshot"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/types"
)

func TestEncodeIndex_OrdersGroupsAndSortsWithinGroup(t *testing.T) {
	diffs := []snapshot.Diff{
		{Operation: types.DiffModify, Path: "z.txt", ThisHash: "h1", OtherHash: "h0"},
		{Operation: types.DiffAdd, Path: "b.txt", ThisHash: "h2"},
		{Operation: types.DiffAdd, Path: "a.txt", ThisHash: "h3"},
		{Operation: types.DiffRemove, Path: "c.txt", OtherHash: "h4"},
	}

	data, hash, err := EncodeIndex(diffs)
	require.NoError(t, err)

	sum := sha512.Sum512(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), hash)

	decoded, err := DecodeIndex(data)
	require.NoError(t, err)
	require.Len(t, decoded, 4)
	assert.Equal(t, "a.txt", decoded[0].Path) // add group, sorted
	assert.Equal(t, "b.txt", decoded[1].Path)
	assert.Equal(t, "z.txt", decoded[2].Path) // modify group
	assert.Equal(t, "c.txt", decoded[3].Path) // remove group
}

func TestDecodeIndex_RoundTripsFieldsPerOperation(t *testing.T) {
	diffs := []snapshot.Diff{
		{Operation: types.DiffAdd, Path: "a.txt", ThisHash: "h1", ThisFileSize: 10},
		{Operation: types.DiffModify, Path: "b.txt", ThisHash: "h2", ThisFileSize: 20, OtherHash: "h3", OtherFileSize: 15},
		{Operation: types.DiffRemove, Path: "c.txt", OtherHash: "h4", OtherFileSize: 5},
	}

	data, _, err := EncodeIndex(diffs)
	require.NoError(t, err)

	decoded, err := DecodeIndex(data)
	require.NoError(t, err)
	require.Len(t, decoded, 3)

	assert.Equal(t, "h1", decoded[0].ThisHash)
	assert.Equal(t, int64(10), decoded[0].ThisFileSize)

	assert.Equal(t, "h2", decoded[1].ThisHash)
	assert.Equal(t, "h3", decoded[1].OtherHash)

	assert.Equal(t, "h4", decoded[2].OtherHash)
	assert.Equal(t, int64(5), decoded[2].OtherFileSize)
}

func TestDecodeIndex_UnknownOperationErrors(t *testing.T) {
	_, err := DecodeIndex([]byte(`[{"operation":"bogus","path":"x"}]`))
	assert.Error(t, err)
}

func TestNewDirName_FormatAndDeltaSuffix(t *testing.T) {
	ts := time.Date(2026, 3, 5, 10, 30, 0, 123456000, time.UTC)

	primary := NewDirName(ts, false)
	assert.Equal(t, "2026.03.05.10.30.00-123456", primary)
	assert.True(t, DirNamePattern.MatchString(primary))
	assert.False(t, IsDelta(primary))

	delta := NewDirName(ts, true)
	assert.Equal(t, "2026.03.05.10.30.00-123456.delta", delta)
	assert.True(t, DirNamePattern.MatchString(delta))
	assert.True(t, IsDelta(delta))
}

func TestContentPath_SplitsHashIntoTwoLevelPrefix(t *testing.T) {
	assert.Equal(t, "ab/cd/abcdef0123", ContentPath("abcdef0123"))
}
