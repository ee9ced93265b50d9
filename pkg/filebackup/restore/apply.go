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
	"log/slog"
	"os"
	"path/filepath"

	"github.com/davidbrownell/FileBackup/internal/hashstream"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/ferrors"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/types"
)

// commitAction is a deferred filesystem mutation registered during apply and
// run only after every entry has been processed without a fatal error (spec
// §4.6.3 step 7: "either the caller sees the old state or a fully applied
// restore for each committed action").
type commitAction func() error

// applyAndCommit implements spec §4.6.3 steps 6-7: sequential per-entry,
// per-instruction staging into temp files, followed by registration-order
// commit.
func applyAndCommit(ctx context.Context, workingDir, stagingDir string, chain []string, instructions map[string][]Instruction, overwrite, continueOnErrors bool, logger *slog.Logger) error {
	tempDir := filepath.Join(workingDir, "instructions")
	if err := ensureDir(tempDir); err != nil {
		return &ferrors.IO{Op: "mkdir-instructions", Path: tempDir, Cause: err}
	}
	defer os.RemoveAll(tempDir)

	var commits []commitAction

	for _, entry := range chain {
		for i, instr := range instructions[entry] {
			action, err := prepareInstruction(ctx, tempDir, stagingDir, entry, i, instr, overwrite)
			if err != nil {
				if continueOnErrors {
					logger.Warn("restore instruction failed, continuing", "entry", entry, "path", instr.LocalPath, "error", err)
					continue
				}
				return err
			}
			if action != nil {
				commits = append(commits, action)
			}
		}
	}

	for _, commit := range commits {
		if err := commit(); err != nil {
			return err
		}
	}
	return nil
}

func prepareInstruction(ctx context.Context, tempDir, stagingDir, entry string, index int, instr Instruction, overwrite bool) (commitAction, error) {
	switch instr.Operation {
	case types.DiffAdd:
		if pathExists(instr.LocalPath) && !overwrite {
			return nil, &ferrors.OverwriteBlocked{Path: instr.LocalPath}
		}
		return prepareWrite(ctx, tempDir, stagingDir, entry, index, instr)

	case types.DiffModify:
		return prepareWrite(ctx, tempDir, stagingDir, entry, index, instr)

	case types.DiffRemove:
		localPath := instr.LocalPath
		return func() error {
			return removePath(localPath)
		}, nil

	default:
		return nil, fmt.Errorf("restore: unknown instruction operation for %q", instr.LocalPath)
	}
}

// prepareWrite stages either a directory-creation or a content-file copy for
// instr and returns the commit action that moves it into place.
func prepareWrite(ctx context.Context, tempDir, stagingDir, entry string, index int, instr Instruction) (commitAction, error) {
	localPath := instr.LocalPath

	if instr.ContentPath == "" {
		return func() error {
			if err := removePath(localPath); err != nil {
				return err
			}
			return os.MkdirAll(localPath, 0o755)
		}, nil
	}

	contentPath := filepath.Join(stagingDir, instr.ContentPath)
	if !pathExists(contentPath) {
		return nil, &ferrors.CorruptArchive{Path: contentPath, Cause: fmt.Errorf("staged content for %q is missing", instr.OriginalPath)}
	}

	tempPath := filepath.Join(tempDir, fmt.Sprintf("%s-%d", sanitizeEntry(entry), index))
	if err := copyFile(ctx, contentPath, tempPath); err != nil {
		return nil, &ferrors.IO{Op: "stage-content", Path: tempPath, Cause: err}
	}

	return func() error {
		if err := removePath(localPath); err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
			return err
		}
		return os.Rename(tempPath, localPath)
	}, nil
}

func sanitizeEntry(entry string) string {
	out := make([]byte, len(entry))
	for i := 0; i < len(entry); i++ {
		c := entry[i]
		if c == '/' || c == '\\' {
			c = '_'
		}
		out[i] = c
	}
	return string(out)
}

func pathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

func removePath(path string) error {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if fi.IsDir() {
		return os.RemoveAll(path)
	}
	return os.Remove(path)
}

func copyFile(ctx context.Context, src, dst string) error {
	r, err := os.Open(src)
	if err != nil {
		return err
	}
	defer r.Close()

	w, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := hashstream.Copy(ctx, w, r, nil); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}
