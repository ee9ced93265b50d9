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

// Package snapshot implements the content-addressed snapshot tree (spec §3)
// and the diff algorithm that operates over two trees (spec §4.4).
package snapshot

import (
	"fmt"
	"path"
	"strings"
)

// Node corresponds to a file or directory within a Snapshot (spec §3.1).
//
// The root node has an empty name and a nil parent; every other node has a
// non-empty name and a non-nil parent. Node does not implement io.Closer or
// any ownership semantics of its own — the tree owns its children, and
// parent is a non-owning back-reference (spec §9).
type Node struct {
	name   string
	parent *Node

	isDir          bool
	explicitlyDir  bool // explicitly_added, meaningful only when isDir
	hash           string
	fileSize       int64 // meaningful only when !isDir
	hasFileSize    bool

	children map[string]*Node
}

// NewRoot returns an empty root directory node.
func NewRoot() *Node {
	return &Node{isDir: true, explicitlyDir: false, children: map[string]*Node{}}
}

// IsDir reports whether this node is a directory placeholder.
func (n *Node) IsDir() bool { return n.isDir }

// IsFile reports whether this node is a file.
func (n *Node) IsFile() bool { return !n.isDir }

// Name is the final path component; empty iff this is the root.
func (n *Node) Name() string { return n.name }

// Parent is the non-owning back-reference to this node's parent; nil iff root.
func (n *Node) Parent() *Node { return n.parent }

// Hash returns the file's sha512 hex digest. Panics if called on a directory.
func (n *Node) Hash() string {
	if n.isDir {
		panic("snapshot: Hash called on a directory node")
	}
	return n.hash
}

// FileSize returns the file's size in bytes. Panics if called on a directory.
func (n *Node) FileSize() int64 {
	if n.isDir {
		panic("snapshot: FileSize called on a directory node")
	}
	return n.fileSize
}

// ExplicitlyAdded reports whether a directory was added as an explicit input
// (e.g. an empty directory the caller wanted preserved) rather than being
// synthesized as an intermediate path component. Meaningless for files.
func (n *Node) ExplicitlyAdded() bool { return n.isDir && n.explicitlyDir }

// Children returns the live child map for a directory node, keyed by name.
// Callers must not mutate the returned map. Nil for files.
func (n *Node) Children() map[string]*Node { return n.children }

// FullPath returns the posix-form join of names from root to this node.
func (n *Node) FullPath() string {
	if n.parent == nil {
		return ""
	}

	var parts []string
	for cur := n; cur.parent != nil; cur = cur.parent {
		parts = append(parts, cur.name)
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "/")
}

// AddFile inserts a File node at path, creating intermediate Dir
// (explicitly_added=false) nodes as needed. Without force, a duplicate name
// at the leaf is an error.
func (n *Node) AddFile(p string, hash string, size int64, force bool) error {
	if n.parent != nil {
		panic("snapshot: AddFile must be called on the root")
	}
	leaf, err := n.walkToParent(p)
	if err != nil {
		return err
	}
	name, _ := splitLeaf(p)
	if !force {
		if _, exists := leaf.children[name]; exists {
			return fmt.Errorf("snapshot: duplicate path %q", p)
		}
	}
	leaf.children[name] = &Node{
		name: name, parent: leaf,
		isDir: false, hash: hash, fileSize: size, hasFileSize: true,
	}
	return nil
}

// AddDir inserts an explicitly-added Dir node at path.
func (n *Node) AddDir(p string, force bool) error {
	if n.parent != nil {
		panic("snapshot: AddDir must be called on the root")
	}
	leaf, err := n.walkToParent(p)
	if err != nil {
		return err
	}
	name, _ := splitLeaf(p)
	if existing, exists := leaf.children[name]; exists {
		if !force {
			return fmt.Errorf("snapshot: duplicate path %q", p)
		}
		existing.isDir = true
		existing.explicitlyDir = true
		if existing.children == nil {
			existing.children = map[string]*Node{}
		}
		return nil
	}
	leaf.children[name] = &Node{
		name: name, parent: leaf,
		isDir: true, explicitlyDir: true, children: map[string]*Node{},
	}
	return nil
}

// walkToParent creates (or follows) every intermediate Dir component of p
// and returns the node that should hold the leaf name.
func (n *Node) walkToParent(p string) (*Node, error) {
	p = path.Clean("/" + p)[1:]
	if p == "" {
		return nil, fmt.Errorf("snapshot: empty path")
	}
	parts := strings.Split(p, "/")

	node := n
	for _, part := range parts[:len(parts)-1] {
		child, ok := node.children[part]
		if !ok {
			child = &Node{name: part, parent: node, isDir: true, children: map[string]*Node{}}
			node.children[part] = child
		} else if !child.isDir {
			return nil, fmt.Errorf("snapshot: %q is a file, cannot descend into it", child.FullPath())
		}
		node = child
	}
	return node, nil
}

func splitLeaf(p string) (name, dir string) {
	p = path.Clean("/" + p)[1:]
	return path.Base(p), path.Dir(p)
}

// Enum yields every non-root node in preorder.
func (n *Node) Enum(yield func(*Node) bool) {
	for _, name := range sortedKeys(n.children) {
		child := n.children[name]
		if !yield(child) {
			return
		}
		child.Enum(yield)
	}
}

// EnumSlice materializes Enum into a slice, preorder, siblings sorted by name.
func (n *Node) EnumSlice() []*Node {
	var out []*Node
	n.Enum(func(c *Node) bool {
		out = append(out, c)
		return true
	})
	return out
}

func sortedKeys(m map[string]*Node) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// insertion sort is fine; these directories are small in practice and we
	// want a stable, dependency-free ordering primitive here.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}

// ByPath walks from the root (n must be the root) to the node at path,
// returning nil if no such node exists.
func (n *Node) ByPath(p string) *Node {
	p = path.Clean("/" + p)[1:]
	if p == "" {
		return n
	}
	node := n
	for _, part := range strings.Split(p, "/") {
		child, ok := node.children[part]
		if !ok {
			return nil
		}
		node = child
	}
	return node
}

// Equal implements spec §3.3: same kind, same hash (files) or both Dir
// (ignoring explicitly_added), same file size, and pointwise-equal children.
func (n *Node) Equal(other *Node) bool {
	if other == nil {
		return false
	}
	if n.isDir != other.isDir {
		return false
	}
	if !n.isDir {
		return n.hash == other.hash && n.fileSize == other.fileSize
	}
	if len(n.children) != len(other.children) {
		return false
	}
	for name, child := range n.children {
		oc, ok := other.children[name]
		if !ok || !child.Equal(oc) {
			return false
		}
	}
	return true
}
