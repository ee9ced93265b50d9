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
	"sort"

	"github.com/davidbrownell/FileBackup/pkg/filebackup/types"
)

// Diff is one entry of a diff between two snapshots (spec §3.4).
type Diff struct {
	Operation types.DiffOperation
	Path      string

	ThisHash     string
	ThisFileSize int64
	ThisPresent  bool

	OtherHash     string
	OtherFileSize int64
	OtherPresent  bool
}

// DiffOptions configures the diff algorithm (spec §4.4).
type DiffOptions struct {
	// CompareHashes, when true, treats two files as equal only when their
	// hashes match. When false (the zero value), files are compared by size
	// alone.
	CompareHashes bool
}

// Diff computes the ordered, minimal diff between the tree rooted at this
// and the tree rooted at other (spec §4.4). Call on the root of "this";
// other may be nil to mean "an empty snapshot".
func (n *Node) Diff(other *Node, opts DiffOptions) []Diff {
	diffs, _ := n.createDiffs(other, opts)
	return diffs
}

func (n *Node) createDiffs(other *Node, opts DiffOptions) ([]Diff, types.DiffOperation) {
	if other == nil {
		var diffs []Diff
		if n.isDir && len(n.children) > 0 {
			for _, name := range sortedKeys(n.children) {
				child := n.children[name]
				childDiffs, _ := child.createDiffs(nil, opts)
				diffs = append(diffs, childDiffs...)
			}
		} else {
			diffs = append(diffs, n.addDiff())
		}
		return diffs, types.DiffAdd
	}

	if n.IsFile() || other.IsFile() {
		if n.IsFile() && other.IsFile() {
			if filesEqual(n, other, opts) {
				return nil, types.DiffNone
			}
			return []Diff{n.modifyDiff(other)}, types.DiffModify
		}

		// Type changed: file<->dir. Remove the old, then add the new wholesale.
		diffs := []Diff{other.removeDiff()}
		addDiffs, _ := n.createDiffs(nil, opts)
		diffs = append(diffs, addDiffs...)
		return diffs, types.DiffModify
	}

	// Both directories.
	var diffs []Diff
	var atomic types.DiffOperation
	haveAtomic := false
	update := func(result types.DiffOperation, have bool) {
		if !have {
			return
		}
		if !haveAtomic {
			atomic, haveAtomic = result, true
		} else if result != atomic {
			atomic = types.DiffModify
		}
	}

	for _, name := range sortedKeys(other.children) {
		if _, ok := n.children[name]; ok {
			continue
		}
		otherChild := other.children[name]
		diffs = append(diffs, otherChild.removeDiff())
		update(types.DiffRemove, true)
	}

	for _, name := range sortedKeys(n.children) {
		thisChild := n.children[name]
		var otherChild *Node
		if other != nil {
			otherChild = other.children[name]
		}
		childDiffs, childResult := thisChild.createDiffs(otherChild, opts)
		diffs = append(diffs, childDiffs...)
		update(childResult, childResult != types.DiffNone)
	}

	// The root is never collapsed: its removes are reported per child.
	if haveAtomic && atomic == types.DiffRemove && n.parent != nil {
		if n.explicitlyDir || other.explicitlyDir {
			atomic = types.DiffModify
		} else {
			diffs = []Diff{other.removeDiff()}
		}
	}

	if !haveAtomic {
		return nil, types.DiffNone
	}
	return diffs, atomic
}

func filesEqual(a, b *Node, opts DiffOptions) bool {
	if opts.CompareHashes {
		return a.hash == b.hash
	}
	return a.fileSize == b.fileSize
}

func (n *Node) addDiff() Diff {
	d := Diff{Operation: types.DiffAdd, Path: n.FullPath(), ThisPresent: true}
	if n.IsFile() {
		d.ThisHash, d.ThisFileSize = n.hash, n.fileSize
	}
	return d
}

func (n *Node) removeDiff() Diff {
	d := Diff{Operation: types.DiffRemove, Path: n.FullPath(), OtherPresent: true}
	if n.IsFile() {
		d.OtherHash, d.OtherFileSize = n.hash, n.fileSize
	}
	return d
}

func (n *Node) modifyDiff(other *Node) Diff {
	return Diff{
		Operation: types.DiffModify, Path: n.FullPath(),
		ThisPresent: true, ThisHash: n.hash, ThisFileSize: n.fileSize,
		OtherPresent: true, OtherHash: other.hash, OtherFileSize: other.fileSize,
	}
}

// GroupedDiffs partitions a diff list by operation, preserving the input's
// relative ordering within each group (mirror's §4.5.1 step 4 expects
// {remove, add, modify} groups for its two-phase commit).
type GroupedDiffs struct {
	Add    []Diff
	Modify []Diff
	Remove []Diff
}

// Group partitions diffs into Add/Modify/Remove buckets.
func Group(diffs []Diff) GroupedDiffs {
	var g GroupedDiffs
	for _, d := range diffs {
		switch d.Operation {
		case types.DiffAdd:
			g.Add = append(g.Add, d)
		case types.DiffModify:
			g.Modify = append(g.Modify, d)
		case types.DiffRemove:
			g.Remove = append(g.Remove, d)
		}
	}
	return g
}

// SortByPath sorts diffs lexicographically by path, used when persisting
// index.json (spec §4.6.1 step 5: "each sub-group sorted lexicographically
// by path").
func SortByPath(diffs []Diff) {
	sort.Slice(diffs, func(i, j int) bool { return diffs[i].Path < diffs[j].Path })
}
