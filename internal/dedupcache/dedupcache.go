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

// Package dedupcache is an accelerator for the offsite engine's dedup hash
// set (spec §4.6.1 step 4). The committed index.json chain remains the
// single source of truth; this package only avoids re-walking the whole
// chain on every run by remembering, per named backup, which content
// hashes have already been seen. It is safe to delete this cache at any
// time — Rebuild reconstructs it from the chain.
package dedupcache

import (
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Cache is a small persistent set of "hash already stored" markers for one
// named offsite backup chain.
type Cache struct {
	db *pebble.DB
}

// Open opens (creating if necessary) the dedup cache at dir.
func Open(dir string) (*Cache, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("dedupcache: open %q: %w", dir, err)
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error { return c.db.Close() }

// Has reports whether hash has already been recorded.
func (c *Cache) Has(hash string) (bool, error) {
	_, closer, err := c.db.Get([]byte(hash))
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	return true, nil
}

// Add records hash as present.
func (c *Cache) Add(hash string) error {
	return c.db.Set([]byte(hash), []byte{1}, pebble.Sync)
}

// Rebuild clears the cache and repopulates it from a full set of known
// hashes (e.g. every File node's hash across the committed chain).
func (c *Cache) Rebuild(hashes []string) error {
	iter, err := c.db.NewIter(nil)
	if err != nil {
		return err
	}
	var toDelete [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		toDelete = append(toDelete, append([]byte(nil), iter.Key()...))
	}
	if err := iter.Close(); err != nil {
		return err
	}

	batch := c.db.NewBatch()
	defer batch.Close()
	for _, k := range toDelete {
		if err := batch.Delete(k, nil); err != nil {
			return err
		}
	}
	for _, h := range hashes {
		if err := batch.Set([]byte(h), []byte{1}, nil); err != nil {
			return err
		}
	}
	return batch.Commit(pebble.Sync)
}
