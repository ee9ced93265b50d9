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
	"fmt"
	"os/exec"
)

// FastGlacierDataStore is a BulkStorageDataStore for the "fast_glacier"
// destination scheme (spec §6.1): upload-only, no random access. The actual
// upload is delegated to the FastGlacierCmd CLI tool (GUI-driven on Windows
// normally, but scriptable via its command-line companion), matching how
// the archive Tool shells out to 7z rather than reimplementing Glacier's
// multipart protocol — both are explicitly out of scope for the core per
// spec §1.
type FastGlacierDataStore struct {
	Account string
	Region  string
	Dir     string

	// Bin overrides the resolved binary name, primarily for tests.
	Bin string
}

// Upload hands localTree, as given, to the fast_glacier CLI. The offsite
// engine passes the parent of its staged directory, so the staged tree
// appears as a sibling at the remote, per spec §4.6.1 step 7.
func (s *FastGlacierDataStore) Upload(ctx context.Context, localTree string) error {
	bin := s.Bin
	if bin == "" {
		bin = "FastGlacierCmd"
	}
	args := []string{"upload", "--account", s.Account, "--region", s.Region, "--dir", s.Dir, localTree}
	cmd := exec.CommandContext(ctx, bin, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("datastore: fast_glacier upload: %w: %s", err, out)
	}
	return nil
}

// S3BrowserDataStore is a BulkStorageDataStore for the "s3_browser"
// destination scheme (spec §6.1), delegating to the s3browser-cli
// companion tool for the same reason as FastGlacierDataStore.
type S3BrowserDataStore struct {
	Account string
	Bucket  string
	Dir     string

	Bin string
}

func (s *S3BrowserDataStore) Upload(ctx context.Context, localTree string) error {
	bin := s.Bin
	if bin == "" {
		bin = "s3browser-cli"
	}
	args := []string{"upload", "--account", s.Account, "--bucket", s.Bucket, "--dir", s.Dir, localTree}
	cmd := exec.CommandContext(ctx, bin, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("datastore: s3_browser upload: %w: %s", err, out)
	}
	return nil
}

var (
	_ BulkStorageDataStore = (*FastGlacierDataStore)(nil)
	_ BulkStorageDataStore = (*S3BrowserDataStore)(nil)
)
