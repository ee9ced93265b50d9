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
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/davidbrownell/FileBackup/internal/hashstream"
	"github.com/davidbrownell/FileBackup/internal/workerpool"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/datastore"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/ferrors"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/types"
)

// IncludeExclude implements the "filter functions" rule of spec §9: include
// is an allow-list (must match at least one pattern) and exclude is a
// deny-list (must match none); if both lists are empty, no filter is
// applied. Patterns are doublestar globs matched in posix form, recovered
// from original_source's Impl/Common.py two-list filter.
type IncludeExclude struct {
	Include []string
	Exclude []string
}

// Matches reports whether path should be kept.
func (f IncludeExclude) Matches(path string) bool {
	path = filepath.ToSlash(path)

	if len(f.Include) > 0 {
		ok := false
		for _, pat := range f.Include {
			if m, _ := doublestar.PathMatch(pat, path); m {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}

	for _, pat := range f.Exclude {
		if m, _ := doublestar.PathMatch(pat, path); m {
			return false
		}
	}

	return true
}

// CalculateOptions configures Calculate (spec §4.3).
type CalculateOptions struct {
	RunInParallel   bool
	CalculateHashes bool
	Filter          *IncludeExclude
	MaxParallel     int
	Logger          *slog.Logger
}

type discoveredFile struct{ path string }
type discoveredEmptyDir struct{ path string }

// Calculate performs a fresh scan of inputs against a data store and
// returns the resulting Snapshot tree (spec §4.3).
func Calculate(ctx context.Context, inputs []string, store datastore.FileBasedDataStore, opts CalculateOptions) (*Node, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if err := validateInputs(inputs, store); err != nil {
		return nil, err
	}

	degree := workerpool.Degree(opts.RunInParallel && store.ExecuteInParallel(), opts.MaxParallel)

	// --- Discover: one task per input ---
	var (
		discoverMu sync.Mutex
		files      []discoveredFile
		emptyDirs  []discoveredEmptyDir
	)
	discoverTasks := make([]func(ctx context.Context) error, len(inputs))
	for i, input := range inputs {
		input := input
		discoverTasks[i] = func(ctx context.Context) error {
			f, d, err := discover(ctx, store, input, opts.Filter, logger)
			if err != nil {
				return err
			}
			discoverMu.Lock()
			files = append(files, f...)
			emptyDirs = append(emptyDirs, d...)
			discoverMu.Unlock()
			return nil
		}
	}
	if err := workerpool.RunAll(ctx, degree, discoverTasks); err != nil {
		return nil, &ferrors.ScanFailed{Errors: []error{err}}
	}

	// --- Hash: one task per discovered file ---
	type hashResult struct {
		path string
		hash string
		size int64
		ok   bool
	}
	results := make([]hashResult, len(files))
	hashTasks := make([]func(ctx context.Context) error, len(files))
	for i, f := range files {
		i, f := i, f
		hashTasks[i] = func(ctx context.Context) error {
			itemType, err := store.ItemType(f.path)
			if err != nil {
				return err
			}
			if itemType == types.ItemNone {
				// Disappeared since discovery: not an error (spec §4.3 step 3, §7).
				return nil
			}

			if !opts.CalculateHashes {
				size, err := store.FileSize(f.path)
				if err != nil {
					return err
				}
				results[i] = hashResult{f.path, types.NotCalculatedHash, size, true}
				return nil
			}

			rc, err := store.Open(ctx, f.path, 0)
			if err != nil {
				return err
			}
			defer rc.Close()

			hash, size, err := hashstream.Hash(ctx, rc, nil)
			if err != nil {
				return err
			}
			results[i] = hashResult{f.path, hash, size, true}
			return nil
		}
	}
	if err := workerpool.RunAll(ctx, degree, hashTasks); err != nil {
		return nil, &ferrors.ScanFailed{Errors: []error{err}}
	}

	// --- Organize ---
	root := NewRoot()
	for _, r := range results {
		if !r.ok {
			continue
		}
		if err := root.AddFile(r.path, r.hash, r.size, false); err != nil {
			return nil, err
		}
	}
	for _, d := range emptyDirs {
		if err := root.AddDir(d.path, false); err != nil {
			return nil, err
		}
	}

	return root, nil
}

func validateInputs(inputs []string, store datastore.FileBasedDataStore) error {
	if len(inputs) == 0 {
		return &ferrors.InvalidInput{Reason: "no inputs provided"}
	}

	for _, in := range inputs {
		t, err := store.ItemType(in)
		if err != nil {
			return err
		}
		if t != types.ItemFile && t != types.ItemDir {
			return &ferrors.InvalidInput{Reason: fmt.Sprintf("%q is not a file or directory", in)}
		}
	}

	sorted := append([]string(nil), inputs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return depthOf(sorted[i]) < depthOf(sorted[j])
	})

	for i := 1; i < len(sorted); i++ {
		for j := 0; j < i; j++ {
			if isPathDescendant(sorted[i], sorted[j]) {
				return &ferrors.InvalidInput{Reason: fmt.Sprintf("input %q overlaps with %q", sorted[i], sorted[j])}
			}
		}
	}

	return nil
}

func depthOf(p string) int {
	clean := filepath.ToSlash(filepath.Clean(p))
	n := 0
	for _, r := range clean {
		if r == '/' {
			n++
		}
	}
	return n
}

func isPathDescendant(candidate, ancestor string) bool {
	rel, err := filepath.Rel(ancestor, candidate)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	return rel != "." && rel[0] != '.'
}

// discover walks one input via the store, applying the filter to files, and
// returns the discovered files and empty directories (spec §4.3 step 2).
// Non-file, non-directory entries are skipped with an info log line.
func discover(ctx context.Context, store datastore.FileBasedDataStore, input string, filter *IncludeExclude, logger *slog.Logger) ([]discoveredFile, []discoveredEmptyDir, error) {
	itemType, err := store.ItemType(input)
	if err != nil {
		return nil, nil, err
	}

	if itemType == types.ItemFile {
		if filter != nil && !filter.Matches(input) {
			return nil, nil, nil
		}
		return []discoveredFile{{input}}, nil, nil
	}

	var files []discoveredFile
	var emptyDirs []discoveredEmptyDir

	entries, errs := store.Walk(ctx, input)
	for entry := range entries {
		if len(entry.Dirs) == 0 && len(entry.Files) == 0 {
			emptyDirs = append(emptyDirs, discoveredEmptyDir{entry.Root})
		}
		for _, name := range entry.Files {
			p := filepath.ToSlash(filepath.Join(entry.Root, name))
			it, err := store.ItemType(p)
			if err != nil {
				return nil, nil, err
			}
			switch it {
			case types.ItemFile:
				if filter == nil || filter.Matches(p) {
					files = append(files, discoveredFile{p})
				}
			case types.ItemSymLink:
				logger.Info("skipping symlink during discovery", "path", p)
			}
		}
	}
	if err := <-errs; err != nil {
		return nil, nil, err
	}

	return files, emptyDirs, nil
}
