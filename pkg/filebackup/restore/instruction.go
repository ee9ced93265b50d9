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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/davidbrownell/FileBackup/pkg/filebackup/offsite"
	"github.com/davidbrownell/FileBackup/pkg/filebackup/types"
)

// Instruction is one replay step derived from an index.json record (spec
// §4.6.3 step 5).
type Instruction struct {
	Operation types.DiffOperation

	// ContentPath is the staging-pool-relative path of the content blob to
	// apply; empty for a directory add and for a remove.
	ContentPath string

	OriginalPath string
	LocalPath    string
}

// buildInstructions implements spec §4.6.3 step 5: walk the chain in order,
// load each entry's index.json, and translate every record into an
// Instruction, validating that modify/remove reference a hash introduced by
// an earlier add/modify in the same replay.
func buildInstructions(chain, finalDirs []string, substitutions map[string]string) (map[string][]Instruction, error) {
	live := map[string]bool{}
	out := make(map[string][]Instruction, len(chain))

	for i, entry := range chain {
		data, err := os.ReadFile(filepath.Join(finalDirs[i], offsite.IndexFileName))
		if err != nil {
			return nil, fmt.Errorf("restore: reading index for %q: %w", entry, err)
		}
		diffs, err := offsite.DecodeIndex(data)
		if err != nil {
			return nil, fmt.Errorf("restore: decoding index for %q: %w", entry, err)
		}

		entryInstructions := make([]Instruction, 0, len(diffs))
		for idx, d := range diffs {
			instr := Instruction{OriginalPath: d.Path, LocalPath: applySubstitutions(d.Path, substitutions)}

			switch d.Operation {
			case types.DiffAdd:
				instr.Operation = types.DiffAdd
				if d.ThisHash != "" {
					live[d.ThisHash] = true
					instr.ContentPath = offsite.ContentPath(d.ThisHash)
				}

			case types.DiffModify:
				instr.Operation = types.DiffModify
				if !live[d.OtherHash] {
					return nil, fmt.Errorf("restore: entry %q index[%d]: modified file %q has no prior staged content for hash %q", entry, idx, d.Path, d.OtherHash)
				}
				live[d.ThisHash] = true
				instr.ContentPath = offsite.ContentPath(d.ThisHash)

			case types.DiffRemove:
				instr.Operation = types.DiffRemove
				if d.OtherHash != "" && !live[d.OtherHash] {
					return nil, fmt.Errorf("restore: entry %q index[%d]: removed file %q has no prior staged content for hash %q", entry, idx, d.Path, d.OtherHash)
				}

			default:
				return nil, fmt.Errorf("restore: entry %q index[%d]: unknown operation", entry, idx)
			}

			entryInstructions = append(entryInstructions, instr)
		}
		out[entry] = entryInstructions
	}

	return out, nil
}

// applySubstitutions rewrites path using literal find/replace pairs, applied
// in map-iteration order against the original snapshot path, matching
// original_source's dir_substitutions semantics.
func applySubstitutions(path string, substitutions map[string]string) string {
	for from, to := range substitutions {
		path = strings.ReplaceAll(path, from, to)
	}
	return path
}
