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
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/davidbrownell/FileBackup/internal/dedupcache"
	"github.com/davidbrownell/FileBackup/internal/hashstream"
	"github.com/davidbrownell/FileBackup/internal/metrics"
	"github.com/davidbrownell/FileBackup/internal/workerpool"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/archive"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/datastore"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/ferrors"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/snapshot"
)

// OperationName is the metrics.EngineMetrics operation key recorded by Backup.
const OperationName = "offsite.backup"

// Options configures a Backup run (spec §4.6.1).
type Options struct {
	Name    string
	StateDir string

	WorkingDir string // local staging directory for <TS>[.delta]

	Force                 bool
	IgnorePendingSnapshot bool

	RunInParallel   bool
	CalculateHashes bool
	Filter          *snapshot.IncludeExclude
	MaxParallel     int

	// Compress / EncryptionPassword trigger the optional packaging step
	// (spec §4.6.1 step 6). A non-empty EncryptionPassword implies packaging
	// even if Compress is false.
	Compress           bool
	EncryptionPassword string
	ArchiveVolumeSize  int64
	ArchiveTool        archive.Tool

	// Destination is nil to mean "stage locally, don't deliver" (spec
	// §6.1 "None"). Bulk is used when Destination is a BulkStorageDataStore.
	Destination datastore.FileBasedDataStore
	Bulk        datastore.BulkStorageDataStore

	Logger *slog.Logger

	// Metrics, when set, records Backup's wall-clock latency and the count
	// of new content blobs written (spec §4.6.1 step 4's dedup copy).
	Metrics *metrics.EngineMetrics

	now func() time.Time
}

// Result summarizes a completed offsite Backup.
type Result struct {
	// Empty is true when local and the last committed snapshot are
	// identical — no directory was produced (spec §4.6.1 step 2).
	Empty     bool
	Primary   bool
	DirName   string
	Diffs     []snapshot.Diff
	NewBlobs  int
}

// Backup produces a new <TS>[.delta] directory for inputs against the last
// committed snapshot for opts.Name (spec §4.6.1).
func Backup(ctx context.Context, inputs []string, source datastore.FileBasedDataStore, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.now
	if now == nil {
		now = time.Now
	}

	start := time.Now()
	if opts.Metrics != nil {
		defer func() { opts.Metrics.ObserveLatency(OperationName, time.Since(start)) }()
	}

	pendingExists, err := PendingExists(opts.StateDir, opts.Name)
	if err != nil {
		return nil, err
	}
	if pendingExists {
		if !opts.IgnorePendingSnapshot {
			return nil, &ferrors.PendingSnapshotConflict{Name: opts.Name}
		}
		if err := DeletePending(opts.StateDir, opts.Name); err != nil {
			return nil, err
		}
	} else if opts.IgnorePendingSnapshot {
		return nil, fmt.Errorf("offsite: ignore_pending_snapshot set but no pending snapshot exists for %q", opts.Name)
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

	var committed *snapshot.Node
	primary := true
	if !opts.Force {
		committed, err = LoadCommitted(opts.StateDir, opts.Name)
		if err != nil {
			return nil, err
		}
		primary = committed == nil
	}
	if committed == nil {
		committed = snapshot.NewRoot()
	}

	diffs := local.Diff(committed, snapshot.DiffOptions{CompareHashes: true})
	if len(diffs) == 0 {
		return &Result{Empty: true}, nil
	}

	dirName := NewDirName(now(), !primary)
	// Staged under <WorkingDir>/<name>/<TS>[.delta] so a bulk destination can
	// upload the <name> parent directory wholesale and a file-based
	// destination can mirror the same <name>/<TS>/... layout (spec §4.6,
	// §4.6.1 step 7).
	stageDir := filepath.Join(opts.WorkingDir, opts.Name, dirName)
	if err := os.MkdirAll(stageDir, 0o755); err != nil {
		return nil, &ferrors.IO{Op: "mkdir-stage", Path: stageDir, Cause: err}
	}

	newBlobs, err := dedupCopy(ctx, local, committed, source, stageDir, opts, logger)
	if err != nil {
		return nil, err
	}

	indexJSON, indexHash, err := EncodeIndex(diffs)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(stageDir+"/"+IndexFileName, indexJSON, 0o644); err != nil {
		return nil, &ferrors.IO{Op: "write-index", Path: stageDir, Cause: err}
	}
	if err := os.WriteFile(stageDir+"/"+IndexHashFileName, []byte(indexHash), 0o644); err != nil {
		return nil, &ferrors.IO{Op: "write-index-hash", Path: stageDir, Cause: err}
	}

	if opts.Compress || opts.EncryptionPassword != "" {
		if err := pack(ctx, stageDir, opts); err != nil {
			return nil, err
		}
	}

	if err := deliver(ctx, stageDir, dirName, opts, local, logger); err != nil {
		return nil, err
	}

	if opts.Metrics != nil {
		var newBytes int64
		for _, d := range diffs {
			if d.ThisHash != "" {
				newBytes += d.ThisFileSize
			}
		}
		opts.Metrics.AddNewObjects(uint64(newBlobs))
		opts.Metrics.AddNewBytes(uint64(newBytes))
	}

	return &Result{Primary: primary, DirName: dirName, Diffs: diffs, NewBlobs: newBlobs}, nil
}

// dedupCopy implements spec §4.6.1 step 4: copy every add/modify file whose
// hash is not already present in the chain into the content-addressed
// store under stageDir, updating the dedup set as it goes so two tasks
// with the same hash serialize (the loser skips) per spec §5.
func dedupCopy(ctx context.Context, local, committed *snapshot.Node, source datastore.FileBasedDataStore, stageDir string, opts Options, logger *slog.Logger) (int, error) {
	seen := map[string]struct{}{}
	for _, n := range committed.EnumSlice() {
		if n.IsFile() {
			seen[n.Hash()] = struct{}{}
		}
	}

	var cache *dedupcache.Cache
	if opts.StateDir != "" {
		c, err := dedupcache.Open(opts.StateDir + "/dedup-" + opts.Name)
		if err == nil {
			// Reset the cache to the committed snapshot's hashes so entries
			// from a discarded or forced-over run cannot suppress a copy.
			hashes := make([]string, 0, len(seen))
			for h := range seen {
				hashes = append(hashes, h)
			}
			if rerr := c.Rebuild(hashes); rerr != nil {
				logger.Warn("dedup accelerator cache could not be rebuilt, continuing without it", "error", rerr)
				c.Close()
			} else {
				cache = c
				defer cache.Close()
			}
		} else {
			logger.Warn("dedup accelerator cache unavailable, continuing without it", "error", err)
		}
	}

	diffs := local.Diff(committed, snapshot.DiffOptions{CompareHashes: true})
	grouped := snapshot.Group(diffs)
	candidates := append(append([]snapshot.Diff{}, grouped.Add...), grouped.Modify...)

	var (
		mu       sync.Mutex
		newBlobs int
	)
	degree := workerpool.Degree(opts.RunInParallel && source.ExecuteInParallel(), opts.MaxParallel)

	tasks := make([]func(ctx context.Context) error, 0, len(candidates))
	for _, d := range candidates {
		d := d
		if d.ThisHash == "" {
			continue // directory entries carry no content blob
		}
		tasks = append(tasks, func(ctx context.Context) error {
			mu.Lock()
			_, already := seen[d.ThisHash]
			if !already {
				seen[d.ThisHash] = struct{}{}
			}
			mu.Unlock()
			if already {
				return nil
			}
			if cache != nil {
				if has, _ := cache.Has(d.ThisHash); has {
					return nil
				}
			}

			if err := copyBlob(ctx, source, d.Path, stageDir, d.ThisHash); err != nil {
				return err
			}
			if cache != nil {
				_ = cache.Add(d.ThisHash)
			}
			mu.Lock()
			newBlobs++
			mu.Unlock()
			return nil
		})
	}

	if err := workerpool.RunAll(ctx, degree, tasks); err != nil {
		return 0, err
	}
	return newBlobs, nil
}

func copyBlob(ctx context.Context, source datastore.FileBasedDataStore, srcPath, stageDir, hash string) error {
	dest := stageDir + "/" + ContentPath(hash)
	if err := os.MkdirAll(dest[:len(dest)-len(hash)-1], 0o755); err != nil {
		return &ferrors.IO{Op: "mkdir-content", Path: dest, Cause: err}
	}

	r, err := source.Open(ctx, srcPath, os.O_RDONLY)
	if err != nil {
		return &ferrors.IO{Op: "open-source", Path: srcPath, Cause: err}
	}
	defer r.Close()

	w, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return &ferrors.IO{Op: "open-content", Path: dest, Cause: err}
	}
	if _, err := hashstream.Copy(ctx, w, r, nil); err != nil {
		w.Close()
		return &ferrors.IO{Op: "copy-content", Path: dest, Cause: err}
	}
	return w.Close()
}

func pack(ctx context.Context, stageDir string, opts Options) error {
	tool := opts.ArchiveTool
	if tool == nil {
		tool = archive.NewSevenZipTool()
	}

	if err := tool.CreatePacked(ctx, archive.PackOptions{
		SourceDir:  stageDir,
		DestDir:    stageDir,
		Password:   opts.EncryptionPassword,
		VolumeSize: opts.ArchiveVolumeSize,
	}); err != nil {
		return err
	}

	// Only data.7z.* remains; the loose content + index files are removed
	// (spec §4.6.1 step 6).
	entries, err := os.ReadDir(stageDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if len(name) >= 7 && name[:7] == "data.7z" {
			continue
		}
		path := stageDir + "/" + name
		if e.IsDir() {
			if err := os.RemoveAll(path); err != nil {
				return err
			}
		} else if err := os.Remove(path); err != nil {
			return err
		}
	}
	return nil
}
