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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDestinationURL_None(t *testing.T) {
	dest, err := ParseDestinationURL("None")
	require.NoError(t, err)
	assert.True(t, dest.None)
}

func TestParseDestinationURL_LocalPath(t *testing.T) {
	dest, err := ParseDestinationURL(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, dest.File)
	store, ok := dest.File.(*LocalFileSystemDataStore)
	require.True(t, ok)
	assert.False(t, store.NonLocal)
}

func TestParseDestinationURL_NonLocalPrefix(t *testing.T) {
	dest, err := ParseDestinationURL("[nonlocal]" + t.TempDir())
	require.NoError(t, err)
	store, ok := dest.File.(*LocalFileSystemDataStore)
	require.True(t, ok)
	assert.True(t, store.NonLocal)
}

func TestParseDestinationURL_FastGlacier(t *testing.T) {
	dest, err := ParseDestinationURL("fast_glacier://myaccount@us-east-1/backups")
	require.NoError(t, err)
	require.NotNil(t, dest.Bulk)
	fg, ok := dest.Bulk.(*FastGlacierDataStore)
	require.True(t, ok)
	assert.Equal(t, "myaccount", fg.Account)
	assert.Equal(t, "us-east-1", fg.Region)
	assert.Equal(t, "backups", fg.Dir)
}

func TestParseDestinationURL_S3Browser(t *testing.T) {
	dest, err := ParseDestinationURL("s3_browser://myaccount@my-bucket/path/to/dir")
	require.NoError(t, err)
	require.NotNil(t, dest.Bulk)
	s3, ok := dest.Bulk.(*S3BrowserDataStore)
	require.True(t, ok)
	assert.Equal(t, "myaccount", s3.Account)
	assert.Equal(t, "my-bucket", s3.Bucket)
	assert.Equal(t, "path/to/dir", s3.Dir)
}

func TestParseDestinationURL_UnsupportedScheme(t *testing.T) {
	_, err := ParseDestinationURL("ftp://example.com/x")
	assert.Error(t, err)
}

func TestParseDestinationURL_SFTPMissingUserErrors(t *testing.T) {
	_, err := ParseDestinationURL("sftp://host.example.com/dir")
	assert.Error(t, err)
}

func TestSplitAccountHostDir_MissingAccount(t *testing.T) {
	_, _, _, err := splitAccountHostDir("justhost/dir")
	assert.Error(t, err)
}

func TestSplitAccountHostDir_MissingHost(t *testing.T) {
	_, _, _, err := splitAccountHostDir("account@")
	assert.Error(t, err)
}
