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

// Package offsite implements the chronological delta-chain engine of
// spec §4.6: content-addressed dedup against prior deltas, a local index
// persisted outside the destination, optional packaging, optional delivery.
package offsite

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/davidbrownell/FileBackup/pkg/filebackup/snapshot"
)

// StateDir resolves the user-scoped directory that holds
// OffsiteFileBackup.<name>.json[.__pending__.json] files (spec §4.6).
// Defaults to $XDG_STATE_HOME/filebackup, falling back to
// $HOME/.local/state/filebackup.
func StateDir() (string, error) {
	if dir := os.Getenv("FILEBACKUP_STATE_DIR"); dir != "" {
		return dir, nil
	}
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "filebackup"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "filebackup"), nil
}

func committedPath(stateDir, name string) string {
	return filepath.Join(stateDir, fmt.Sprintf("OffsiteFileBackup.%s.json", name))
}

func pendingPath(stateDir, name string) string {
	return filepath.Join(stateDir, fmt.Sprintf("OffsiteFileBackup.%s.__pending__.json", name))
}

// LoadCommitted loads the last committed snapshot for name, or nil if none
// exists yet.
func LoadCommitted(stateDir, name string) (*snapshot.Node, error) {
	return loadSnapshotFile(committedPath(stateDir, name))
}

// LoadPending loads the pending (emitted-but-not-confirmed) snapshot for
// name, or nil if none exists.
func LoadPending(stateDir, name string) (*snapshot.Node, error) {
	return loadSnapshotFile(pendingPath(stateDir, name))
}

func loadSnapshotFile(path string) (*snapshot.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return snapshot.FromJSON(data)
}

// SaveCommitted persists n as the new committed snapshot for name.
func SaveCommitted(stateDir, name string, n *snapshot.Node) error {
	return saveSnapshotFile(committedPath(stateDir, name), n)
}

// SavePending persists n as the pending snapshot for name.
func SavePending(stateDir, name string, n *snapshot.Node) error {
	return saveSnapshotFile(pendingPath(stateDir, name), n)
}

// DeletePending removes the pending snapshot file for name, if any.
func DeletePending(stateDir, name string) error {
	err := os.Remove(pendingPath(stateDir, name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// PendingExists reports whether a pending snapshot file exists for name.
func PendingExists(stateDir, name string) (bool, error) {
	_, err := os.Stat(pendingPath(stateDir, name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Commit atomically promotes the pending snapshot to committed (spec §4.6.2).
func Commit(stateDir, name string) error {
	exists, err := PendingExists(stateDir, name)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("offsite: no pending snapshot for %q", name)
	}
	return os.Rename(pendingPath(stateDir, name), committedPath(stateDir, name))
}

func saveSnapshotFile(path string, n *snapshot.Node) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := n.ToJSON()
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
