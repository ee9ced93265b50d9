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
	"io"
	"os"

	"github.com/davidbrownell/FileBackup/pkg/filebackup/datastore"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/types"
)

// PersistedFileName is the mirror destination's committed snapshot file
// name (spec §4.5).
const PersistedFileName = "BackupSnapshot.json"

// LoadPersisted rehydrates a snapshot previously written by Persist. If
// file is empty, PersistedFileName is used. Returns (nil, nil) if the file
// does not exist — callers treat that as "empty snapshot" per spec §4.5.1
// step 3.
func LoadPersisted(ctx context.Context, store datastore.FileBasedDataStore, file string) (*Node, error) {
	if file == "" {
		file = PersistedFileName
	}

	t, err := store.ItemType(file)
	if err != nil {
		return nil, err
	}
	if t == types.ItemNone {
		return nil, nil
	}

	rc, err := store.Open(ctx, file, os.O_RDONLY)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read %q: %w", file, err)
	}

	return FromJSON(data)
}

// Persist writes the snapshot rooted at n to file under store (plain
// os.O_WRONLY|os.O_CREATE|os.O_TRUNC — callers needing atomic replace use
// the mirror/offsite two-phase commit helpers instead).
func Persist(ctx context.Context, store datastore.FileBasedDataStore, n *Node, file string) error {
	if file == "" {
		file = PersistedFileName
	}

	data, err := n.ToJSON()
	if err != nil {
		return err
	}

	w, err := store.Open(ctx, file, os.O_WRONLY|os.O_CREATE|os.O_TRUNC)
	if err != nil {
		return err
	}
	defer w.Close()

	_, err = w.Write(data)
	return err
}
