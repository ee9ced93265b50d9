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
	"fmt"
	"log/slog"
	"strings"

	"github.com/davidbrownell/FileBackup/pkg/filebackup/datastore"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/ferrors"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/snapshot"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/types"
)

// Cleanup restores a destination left in a partial state by a crashed or
// cancelled Backup (spec §4.5.2): every .__pending_commit__ descendant of
// Content/ is deleted (the commit did not finish, so roll-forward isn't
// possible); every .__pending_delete__ descendant is renamed back to its
// stripped name (restoring the pre-backup state).
func Cleanup(ctx context.Context, dest datastore.FileBasedDataStore, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	if t, err := dest.ItemType(ContentDir); err != nil {
		return err
	} else if t == types.ItemNone {
		return nil
	}

	var toDelete, toRestore []string

	entries, errs := dest.Walk(ctx, ContentDir)
	for e := range entries {
		for _, name := range append(append([]string{}, e.Dirs...), e.Files...) {
			p := e.Root + "/" + name
			switch {
			case strings.HasSuffix(name, pendingCommitSuffix):
				toDelete = append(toDelete, p)
			case strings.HasSuffix(name, pendingDeleteSuffix):
				toRestore = append(toRestore, p)
			}
		}
	}
	if err := <-errs; err != nil {
		return err
	}

	for _, p := range toDelete {
		t, err := dest.ItemType(p)
		if err != nil {
			return err
		}
		if t == types.ItemDir {
			if err := dest.RemoveDir(p); err != nil {
				return &ferrors.IO{Op: "cleanup-delete-pending-commit", Path: p, Cause: err}
			}
		} else if err := dest.RemoveFile(p); err != nil {
			return &ferrors.IO{Op: "cleanup-delete-pending-commit", Path: p, Cause: err}
		}
		logger.Info("cleanup: removed orphaned pending-commit entry", "path", p)
	}

	for _, p := range toRestore {
		stripped := strings.TrimSuffix(p, pendingDeleteSuffix)
		if err := dest.Rename(p, stripped); err != nil {
			return &ferrors.IO{Op: "cleanup-restore-pending-delete", Path: p, Cause: err}
		}
		logger.Info("cleanup: restored pending-delete entry", "path", stripped)
	}

	return nil
}

// ValidateMode selects how Validate rescans Content/ (spec §4.5.4).
type ValidateMode int

const (
	// ValidateComplete rescans with full hashing.
	ValidateComplete ValidateMode = iota
	// ValidateSizesOnly rescans comparing file sizes only (faster, weaker).
	ValidateSizesOnly
)

// ValidationFailure describes one path where the committed snapshot and the
// live scan of Content/ disagree.
type ValidationFailure struct {
	Path      string
	Operation types.DiffOperation
}

// Validate loads the committed snapshot, runs Cleanup, rescans Content/,
// and diffs the two; any nonzero diff is a validation failure (spec §4.5.4).
func Validate(ctx context.Context, dest datastore.FileBasedDataStore, mode ValidateMode, opts Options) ([]ValidationFailure, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	persisted, err := snapshot.LoadPersisted(ctx, dest, snapshot.PersistedFileName)
	if err != nil {
		return nil, err
	}
	if persisted == nil {
		return nil, &ferrors.MissingSnapshot{Path: snapshot.PersistedFileName}
	}

	if err := Cleanup(ctx, dest, logger); err != nil {
		return nil, err
	}

	canonical := canonicalize(persisted, dest)

	live, err := snapshot.Calculate(ctx, []string{ContentDir}, dest, snapshot.CalculateOptions{
		RunInParallel:   opts.RunInParallel,
		CalculateHashes: mode == ValidateComplete,
		MaxParallel:     opts.MaxParallel,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}

	compareHashes := mode == ValidateComplete
	diffs := canonical.Diff(live, snapshot.DiffOptions{CompareHashes: compareHashes})

	failures := make([]ValidationFailure, 0, len(diffs))
	for _, d := range diffs {
		failures = append(failures, ValidationFailure{Path: d.Path, Operation: d.Operation})
	}
	return failures, nil
}

// canonicalize rewrites every path in persisted through
// SnapshotPathToDestPath and roots the result under ContentDir, so it is
// directly comparable to a live scan of Content/ (spec §4.5.4).
func canonicalize(persisted *snapshot.Node, dest datastore.FileBasedDataStore) *snapshot.Node {
	root := snapshot.NewRoot()
	for _, n := range persisted.EnumSlice() {
		destPath := fmt.Sprintf("%s/%s", ContentDir, dest.SnapshotPathToDestPath(n.FullPath()))
		if n.IsFile() {
			_ = root.AddFile(destPath, n.Hash(), n.FileSize(), true)
		} else if len(n.Children()) == 0 {
			_ = root.AddDir(destPath, true)
		}
	}
	return root
}
