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

// Package mirror implements the two-phase, rename-based commit that
// reshapes a file-based destination to match a source snapshot (spec §4.5).
package mirror

import (
	"context"
	"log/slog"
	"time"

	"github.com/davidbrownell/FileBackup/internal/metrics"
	"github.com/davidbrownell/FileBackup/internal/workerpool"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/datastore"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/ferrors"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/snapshot"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/types"
)

// OperationName is the metrics.EngineMetrics operation key recorded by Backup.
const OperationName = "mirror.backup"

const (
	// ContentDir is the mirrored tree root under the destination (spec §4.5).
	ContentDir = "Content"

	pendingCommitSuffix = ".__pending_commit__"
	pendingDeleteSuffix = ".__pending_delete__"
	tempInfix           = "__temp__"
)

// SpaceGateRatio is the fraction of BytesAvailable that add+modify sizes
// must not exceed (spec §4.5.1 step 5, §7 InsufficientSpace).
const SpaceGateRatio = 0.85

// Options configures a Backup run.
type Options struct {
	// Force treats the destination as empty regardless of any persisted
	// snapshot, and on commit renames every existing Content/ child to
	// pending-delete (spec §4.5.1 step 3 and step 7).
	Force bool

	RunInParallel   bool
	CalculateHashes bool
	Filter          *snapshot.IncludeExclude
	MaxParallel     int

	Logger *slog.Logger

	// Metrics, when set, records Backup's wall-clock latency and the bytes
	// of new content written (spec §4.5.1 step 7's copy-pending phase).
	Metrics *metrics.EngineMetrics
}

// Result summarizes a completed Backup.
type Result struct {
	Diffs        []snapshot.Diff
	BytesWritten int64
}

// Backup reshapes dest (rooted such that BackupSnapshot.json and Content/
// live directly under dest's working directory) to match the snapshot
// computed from inputs against source (spec §4.5.1).
func Backup(ctx context.Context, inputs []string, source, dest datastore.FileBasedDataStore, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	start := time.Now()
	if opts.Metrics != nil {
		defer func() { opts.Metrics.ObserveLatency(OperationName, time.Since(start)) }()
	}

	if err := dest.ValidateBackupInputs(inputs); err != nil {
		return nil, &ferrors.Overlap{Destination: dest.GetWorkingDir()}
	}

	local, err := snapshot.Calculate(ctx, inputs, source, snapshot.CalculateOptions{
		RunInParallel:   opts.RunInParallel,
		CalculateHashes: opts.CalculateHashes,
		Filter:          opts.Filter,
		MaxParallel:     opts.MaxParallel,
		Logger:          logger,
	})
	if err != nil {
		return nil, err
	}

	var destSnap *snapshot.Node
	if !opts.Force {
		destSnap, err = snapshot.LoadPersisted(ctx, dest, snapshot.PersistedFileName)
		if err != nil {
			return nil, err
		}
	}
	if destSnap == nil {
		destSnap = snapshot.NewRoot()
	}

	diffs := local.Diff(destSnap, snapshot.DiffOptions{CompareHashes: true})
	grouped := snapshot.Group(diffs)

	var addModifyBytes int64
	for _, d := range append(append([]snapshot.Diff{}, grouped.Add...), grouped.Modify...) {
		if d.ThisHash != "" { // a directory add/modify carries no hash and no bytes
			addModifyBytes += d.ThisFileSize
		}
	}
	if avail, ok := dest.BytesAvailable(); ok {
		if float64(addModifyBytes) > SpaceGateRatio*float64(avail) {
			return nil, &ferrors.InsufficientSpace{Required: addModifyBytes, Available: avail}
		}
	}

	if err := Cleanup(ctx, dest, logger); err != nil {
		return nil, err
	}

	degree := workerpool.Degree(opts.RunInParallel && source.ExecuteInParallel() && dest.ExecuteInParallel(), opts.MaxParallel)

	if err := commit(ctx, local, grouped, source, dest, opts.Force, degree, logger); err != nil {
		return nil, err
	}

	if err := snapshot.Persist(ctx, dest, local, snapshot.PersistedFileName+pendingCommitSuffix); err != nil {
		return nil, err
	}
	if err := dest.Rename(snapshot.PersistedFileName+pendingCommitSuffix, snapshot.PersistedFileName); err != nil {
		return nil, err
	}

	if opts.Metrics != nil {
		opts.Metrics.AddNewObjects(uint64(len(grouped.Add) + len(grouped.Modify)))
		opts.Metrics.AddNewBytes(uint64(addModifyBytes))
	}

	return &Result{Diffs: diffs, BytesWritten: addModifyBytes}, nil
}

// commit performs the two-phase rename-based commit of spec §4.5.1 step 7:
// mark-delete -> copy-pending -> commit-renames -> purge-deletes. The
// pending snapshot rename itself happens in the caller, last.
func commit(ctx context.Context, local *snapshot.Node, grouped snapshot.GroupedDiffs, source, dest datastore.FileBasedDataStore, force bool, degree int, logger *slog.Logger) error {
	if force {
		if err := renameAllChildrenToPendingDelete(ctx, dest); err != nil {
			return err
		}
	} else {
		for _, d := range append(grouped.Remove, grouped.Modify...) {
			destPath := ContentDir + "/" + dest.SnapshotPathToDestPath(d.Path)
			if t, err := dest.ItemType(destPath); err != nil {
				return err
			} else if t == types.ItemNone {
				continue
			}
			if err := dest.Rename(destPath, destPath+pendingDeleteSuffix); err != nil {
				return &ferrors.IO{Op: "mark-delete", Path: destPath, Cause: err}
			}
		}
	}

	addModify := append(append([]snapshot.Diff{}, grouped.Add...), grouped.Modify...)
	tasks := make([]func(ctx context.Context) error, 0, len(addModify))
	for _, d := range addModify {
		d := d
		tasks = append(tasks, func(ctx context.Context) error {
			return copyPending(ctx, local, source, dest, d.Path)
		})
	}
	if err := workerpool.RunAll(ctx, degree, tasks); err != nil {
		return err
	}

	for _, d := range addModify {
		destPath := ContentDir + "/" + dest.SnapshotPathToDestPath(d.Path)
		if err := dest.Rename(destPath+pendingCommitSuffix, destPath); err != nil {
			return &ferrors.IO{Op: "commit-rename", Path: destPath, Cause: err}
		}
	}

	for _, d := range grouped.Remove {
		destPath := ContentDir + "/" + dest.SnapshotPathToDestPath(d.Path)
		if err := purgePendingDelete(dest, destPath, d.OtherHash == ""); err != nil {
			return err
		}
	}
	if force {
		if err := purgeAllPendingDeletes(ctx, dest); err != nil {
			return err
		}
	}
	for _, d := range grouped.Modify {
		destPath := ContentDir + "/" + dest.SnapshotPathToDestPath(d.Path)
		_ = purgePendingDelete(dest, destPath, false)
	}

	logger.Info("mirror commit complete", "added", len(grouped.Add), "modified", len(grouped.Modify), "removed", len(grouped.Remove))
	return nil
}

func purgePendingDelete(dest datastore.FileBasedDataStore, destPath string, isDir bool) error {
	pending := destPath + pendingDeleteSuffix
	t, err := dest.ItemType(pending)
	if err != nil {
		return err
	}
	switch t {
	case types.ItemNone:
		return nil
	case types.ItemDir:
		return dest.RemoveDir(pending)
	default:
		return dest.RemoveFile(pending)
	}
}

