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
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/davidbrownell/FileBackup/pkg/filebackup/snapshot"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/types"
)

// IndexFileName and IndexHashFileName are the two files written alongside
// the content-addressed store in each <TS>[.delta] directory (spec §4.6,
// §6.2).
const (
	IndexFileName     = "index.json"
	IndexHashFileName = "index.hash"
)

// indexRecord mirrors spec §6.2's index.json record shape.
type indexRecord struct {
	Operation     string  `json:"operation"`
	Path          string  `json:"path"`
	ThisHash      *string `json:"this_hash,omitempty"`
	ThisFileSize  *int64  `json:"this_file_size,omitempty"`
	OtherHash     *string `json:"other_hash,omitempty"`
	OtherFileSize *int64  `json:"other_file_size,omitempty"`
}

// EncodeIndex serializes diffs into index.json's exact byte format (spec
// §4.6.1 step 5: groups concatenated add, modify, remove — each sub-group
// sorted lexicographically by path) and returns (indexJSON, indexHashHex).
func EncodeIndex(diffs []snapshot.Diff) (indexJSON []byte, indexHash string, err error) {
	grouped := snapshot.Group(diffs)
	snapshot.SortByPath(grouped.Add)
	snapshot.SortByPath(grouped.Modify)
	snapshot.SortByPath(grouped.Remove)

	ordered := make([]snapshot.Diff, 0, len(diffs))
	ordered = append(ordered, grouped.Add...)
	ordered = append(ordered, grouped.Modify...)
	ordered = append(ordered, grouped.Remove...)

	records := make([]indexRecord, 0, len(ordered))
	for _, d := range ordered {
		records = append(records, toRecord(d))
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, "", err
	}

	sum := sha512.Sum512(data)
	return data, hex.EncodeToString(sum[:]), nil
}

func toRecord(d snapshot.Diff) indexRecord {
	r := indexRecord{Path: d.Path}
	switch d.Operation {
	case types.DiffAdd:
		r.Operation = "add"
		if d.ThisHash != "" {
			r.ThisHash, r.ThisFileSize = &d.ThisHash, &d.ThisFileSize
		}
	case types.DiffRemove:
		r.Operation = "remove"
		if d.OtherHash != "" {
			r.OtherHash, r.OtherFileSize = &d.OtherHash, &d.OtherFileSize
		}
	case types.DiffModify:
		r.Operation = "modify"
		r.ThisHash, r.ThisFileSize = &d.ThisHash, &d.ThisFileSize
		r.OtherHash, r.OtherFileSize = &d.OtherHash, &d.OtherFileSize
	}
	return r
}

// DecodeIndex parses an index.json payload back into Diffs.
func DecodeIndex(data []byte) ([]snapshot.Diff, error) {
	var records []indexRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("offsite: decode index: %w", err)
	}

	diffs := make([]snapshot.Diff, 0, len(records))
	for _, r := range records {
		d := snapshot.Diff{Path: r.Path}
		switch r.Operation {
		case "add":
			d.Operation = types.DiffAdd
			d.ThisPresent = true
			if r.ThisHash != nil {
				d.ThisHash, d.ThisFileSize = *r.ThisHash, derefI64(r.ThisFileSize)
			}
		case "remove":
			d.Operation = types.DiffRemove
			d.OtherPresent = true
			if r.OtherHash != nil {
				d.OtherHash, d.OtherFileSize = *r.OtherHash, derefI64(r.OtherFileSize)
			}
		case "modify":
			d.Operation = types.DiffModify
			d.ThisPresent, d.OtherPresent = true, true
			if r.ThisHash != nil {
				d.ThisHash, d.ThisFileSize = *r.ThisHash, derefI64(r.ThisFileSize)
			}
			if r.OtherHash != nil {
				d.OtherHash, d.OtherFileSize = *r.OtherHash, derefI64(r.OtherFileSize)
			}
		default:
			return nil, fmt.Errorf("offsite: unknown operation %q", r.Operation)
		}
		diffs = append(diffs, d)
	}
	return diffs, nil
}

func derefI64(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

// timestampLayout implements spec §6.3: YYYY.MM.DD.HH.MM.SS-uuuuuu.
const timestampLayout = "2006.01.02.15.04.05"

// DirNamePattern matches both primary and delta directory names (spec §6.3).
var DirNamePattern = regexp.MustCompile(`^\d{4}\.\d{2}\.\d{2}\.\d{2}\.\d{2}\.\d{2}-\d{6}(\.delta)?$`)

// NewDirName formats t as a <TS>[.delta] directory name.
func NewDirName(t time.Time, isDelta bool) string {
	name := fmt.Sprintf("%s-%06d", t.Format(timestampLayout), t.Nanosecond()/1000)
	if isDelta {
		name += ".delta"
	}
	return name
}

// IsDelta reports whether dirName carries the .delta suffix.
func IsDelta(dirName string) bool {
	return len(dirName) > 6 && dirName[len(dirName)-6:] == ".delta"
}

// ContentPath returns the content-addressed relative path for hash (spec
// §6.2): <hash[0:2]>/<hash[2:4]>/<hash>.
func ContentPath(hash string) string {
	return fmt.Sprintf("%s/%s/%s", hash[0:2], hash[2:4], hash)
}
