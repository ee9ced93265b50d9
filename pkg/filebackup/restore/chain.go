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
	"fmt"
	"path"
	"sort"

	"github.com/davidbrownell/FileBackup/pkg/filebackup/datastore"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/ferrors"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/offsite"
)

// discoverChain implements spec §4.6.3 steps 1-2: list and validate every
// directory under name/, locate the single most recent primary, and slice
// the chain from there forward.
func discoverChain(ctx context.Context, source datastore.FileBasedDataStore, name string) ([]string, error) {
	names, err := listSubdirs(ctx, source, name)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, &ferrors.InvalidInput{Reason: "no directories were found"}
	}

	for _, n := range names {
		if !offsite.DirNamePattern.MatchString(n) {
			return nil, &ferrors.InvalidInput{Reason: fmt.Sprintf("%q is not a recognized backup directory name", n)}
		}
	}

	sort.Strings(names)

	primaryIdx := -1
	primaryCount := 0
	for i, n := range names {
		if !offsite.IsDelta(n) {
			primaryCount++
			primaryIdx = i
		}
	}
	switch {
	case primaryCount == 0:
		return nil, &ferrors.InvalidInput{Reason: "no primary directories were found"}
	case primaryCount > 1:
		return nil, &ferrors.InvalidInput{Reason: "multiple primary directories were found"}
	}

	return names[primaryIdx:], nil
}

// listSubdirs returns the immediate subdirectory names of root on source.
func listSubdirs(ctx context.Context, source datastore.FileBasedDataStore, root string) ([]string, error) {
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	want := path.Clean(root)
	entries, errs := source.Walk(cctx, root)

	var dirs []string
	for entry := range entries {
		if path.Clean(entry.Root) == want {
			dirs = append(dirs, entry.Dirs...)
			cancel()
			for range entries {
				// Drain so the producer goroutine observes cancellation and exits.
			}
			break
		}
	}

	if err := <-errs; err != nil && err != context.Canceled {
		return nil, err
	}
	return dirs, nil
}
