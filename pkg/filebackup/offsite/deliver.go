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
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/davidbrownell/FileBackup/internal/hashstream"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/datastore"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/ferrors"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/snapshot"
)

// deliver implements spec §4.6.1 step 7: either leave the produced
// directory local (opts.Destination == nil, the "None" store of spec §6.1),
// hand it whole to a BulkStorageDataStore, or stream every file into a
// FileBasedDataStore. A successful delivery to a bulk or file-based
// destination persists local directly as the new committed snapshot; only
// the local-staging ("None") branch leaves a pending snapshot for a later
// Commit to confirm.
func deliver(ctx context.Context, stageDir, dirName string, opts Options, local *snapshot.Node, logger *slog.Logger) error {
	switch {
	case opts.Bulk != nil:
		// stageDir is <WorkingDir>/<name>/<TS>[.delta]; upload its parent so
		// <name>/ is what lands at the remote, with <TS> as its child.
		if err := opts.Bulk.Upload(ctx, filepath.Dir(stageDir)); err != nil {
			return err
		}
		return SaveCommitted(opts.StateDir, opts.Name, local)

	case opts.Destination != nil:
		if err := opts.Destination.MakeDirs(opts.Name); err != nil {
			return err
		}
		if err := uploadTree(ctx, opts.Destination, stageDir, opts.Name, dirName); err != nil {
			return err
		}
		return SaveCommitted(opts.StateDir, opts.Name, local)

	default:
		logger.Info("offsite backup staged locally, no destination configured", "dir", stageDir)
		return SavePending(opts.StateDir, opts.Name, local)
	}
}

// uploadTree copies every regular file under stageDir into dest at
// <name>/<dirName>/<relative path>, preserving the directory layout
// produced by dedupCopy and pack (spec §4.6, destination layout
// <name>/<TS>/...).
func uploadTree(ctx context.Context, dest datastore.FileBasedDataStore, stageDir, name, dirName string) error {
	return filepath.WalkDir(stageDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(stageDir, path)
		if err != nil {
			return err
		}
		destPath := filepath.Join(name, dirName, rel)

		if d.IsDir() {
			return dest.MakeDirs(destPath)
		}

		src, err := os.Open(path)
		if err != nil {
			return &ferrors.IO{Op: "open-local", Path: path, Cause: err}
		}
		defer src.Close()

		w, err := dest.Open(ctx, destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
		if err != nil {
			return &ferrors.IO{Op: "open-dest", Path: destPath, Cause: err}
		}
		if _, err := hashstream.Copy(ctx, w, src, nil); err != nil {
			w.Close()
			return &ferrors.IO{Op: "copy-dest", Path: destPath, Cause: err}
		}
		return w.Close()
	})
}
