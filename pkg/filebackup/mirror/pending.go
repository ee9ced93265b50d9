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
	"os"
	"strings"

	"github.com/davidbrownell/FileBackup/internal/hashstream"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/datastore"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/ferrors"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/snapshot"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/types"
)

// renameAllChildrenToPendingDelete implements the Force branch of spec
// §4.5.1 step 7: every existing child of Content/ is renamed to
// name+.__pending_delete__.
func renameAllChildrenToPendingDelete(ctx context.Context, dest datastore.FileBasedDataStore) error {
	if t, err := dest.ItemType(ContentDir); err != nil {
		return err
	} else if t == types.ItemNone {
		return dest.MakeDirs(ContentDir)
	}

	entries, errs := dest.Walk(ctx, ContentDir)
	var topLevel []string
	for e := range entries {
		if e.Root != ContentDir {
			continue
		}
		topLevel = append(topLevel, e.Dirs...)
		topLevel = append(topLevel, e.Files...)
	}
	if err := <-errs; err != nil {
		return err
	}

	for _, name := range topLevel {
		p := ContentDir + "/" + name
		if err := dest.Rename(p, p+pendingDeleteSuffix); err != nil {
			return &ferrors.IO{Op: "mark-delete", Path: p, Cause: err}
		}
	}
	return nil
}

// purgeAllPendingDeletes removes every .__pending_delete__ entry directly
// under Content/ (used after a Force backup renamed everything).
func purgeAllPendingDeletes(ctx context.Context, dest datastore.FileBasedDataStore) error {
	entries, errs := dest.Walk(ctx, ContentDir)
	var topLevel []string
	for e := range entries {
		if e.Root != ContentDir {
			continue
		}
		topLevel = append(topLevel, e.Dirs...)
		topLevel = append(topLevel, e.Files...)
	}
	if err := <-errs; err != nil {
		return err
	}

	for _, name := range topLevel {
		if !strings.HasSuffix(name, pendingDeleteSuffix) {
			continue
		}
		p := ContentDir + "/" + name
		t, err := dest.ItemType(p)
		if err != nil {
			return err
		}
		if t == types.ItemDir {
			if err := dest.RemoveDir(p); err != nil {
				return err
			}
		} else if err := dest.RemoveFile(p); err != nil {
			return err
		}
	}
	return nil
}

// copyPending copies the local path into dest at a .__pending_commit__
// suffixed path, using the file-copy discipline of spec §4.5.3: a sibling
// temp file, streamed in chunks, renamed into place only once fully
// written — here the "final" name for this phase is the pending-commit
// name itself, committed to its true name in a later phase.
func copyPending(ctx context.Context, local *snapshot.Node, source, dest datastore.FileBasedDataStore, path string) error {
	node := local.ByPath(path)
	if node == nil {
		return nil
	}

	destPath := ContentDir + "/" + dest.SnapshotPathToDestPath(path)

	if node.IsDir() {
		return dest.MakeDirs(destPath + pendingCommitSuffix)
	}

	if err := dest.MakeDirs(parentDir(destPath)); err != nil {
		return err
	}

	return copyFile(ctx, source, dest, path, destPath+pendingCommitSuffix)
}

// copyFile streams srcPath (against source) into a sibling temp file next
// to dstPath (against dest), then renames temp -> dstPath (spec §4.5.3).
func copyFile(ctx context.Context, source, dest datastore.FileBasedDataStore, srcPath, dstPath string) error {
	r, err := source.Open(ctx, srcPath, os.O_RDONLY)
	if err != nil {
		return &ferrors.IO{Op: "open-source", Path: srcPath, Cause: err}
	}
	defer r.Close()

	tempPath := tempSiblingName(dstPath)
	w, err := dest.Open(ctx, tempPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return &ferrors.IO{Op: "open-temp", Path: tempPath, Cause: err}
	}

	if _, err := hashstream.Copy(ctx, w, r, nil); err != nil {
		w.Close()
		return &ferrors.IO{Op: "copy", Path: dstPath, Cause: err}
	}
	if err := w.Close(); err != nil {
		return &ferrors.IO{Op: "close", Path: tempPath, Cause: err}
	}

	if err := dest.Rename(tempPath, dstPath); err != nil {
		return &ferrors.IO{Op: "rename-temp", Path: dstPath, Cause: err}
	}
	return nil
}

// tempSiblingName implements spec §6.5's ".__temp__" extension rule:
// stem + ".__temp__" + suffix, placed alongside the final file.
func tempSiblingName(finalPath string) string {
	dir := parentDir(finalPath)
	base := finalPath[len(dir):]
	if dir != "" {
		base = strings.TrimPrefix(base, "/")
	}

	idx := strings.LastIndexByte(base, '.')
	var stem, suffix string
	if idx <= 0 {
		stem, suffix = base, ""
	} else {
		stem, suffix = base[:idx], base[idx:]
	}

	name := stem + "." + tempInfix + suffix
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func parentDir(p string) string {
	idx := strings.LastIndexByte(p, '/')
	if idx < 0 {
		return ""
	}
	return p[:idx]
}
