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
	"encoding/json"
	"fmt"
)

// jsonNode mirrors the wire format from spec §6.2: a Dir serializes
// hash_value: null plus children; a File serializes hash_value: hex plus
// file_size. Root has no name and no file_size.
type jsonNode struct {
	HashValue *string             `json:"hash_value"`
	FileSize  *int64              `json:"file_size,omitempty"`
	Children  map[string]jsonNode `json:"children,omitempty"`
}

func (n *Node) toJSONNode() jsonNode {
	if n.IsFile() {
		h := n.hash
		sz := n.fileSize
		return jsonNode{HashValue: &h, FileSize: &sz}
	}

	children := make(map[string]jsonNode, len(n.children))
	for name, child := range n.children {
		children[name] = child.toJSONNode()
	}
	return jsonNode{HashValue: nil, Children: children}
}

// ToJSON serializes the snapshot rooted at n (must be called on the root).
func (n *Node) ToJSON() ([]byte, error) {
	if n.parent != nil {
		panic("snapshot: ToJSON must be called on the root")
	}
	return json.MarshalIndent(n.toJSONNode(), "", "  ")
}

// FromJSON deserializes a snapshot previously produced by ToJSON.
//
// Per spec §9(c), a Dir is inferred to be explicitly_added iff its
// "children" object is empty at load time — this loses the flag for a
// round-tripped explicitly-added *non-empty* directory. That is a known,
// deliberately-unfixed limitation inherited from the source design (spec
// §9, Open Questions (c)).
func FromJSON(data []byte) (*Node, error) {
	var raw jsonNode
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("snapshot: decode: %w", err)
	}
	root := nodeFromJSON("", nil, raw)
	return root, nil
}

func nodeFromJSON(name string, parent *Node, raw jsonNode) *Node {
	if raw.HashValue != nil {
		return &Node{
			name: name, parent: parent,
			isDir: false, hash: *raw.HashValue, fileSize: derefInt64(raw.FileSize), hasFileSize: true,
		}
	}

	n := &Node{
		name: name, parent: parent,
		isDir: true, explicitlyDir: len(raw.Children) == 0,
		children: make(map[string]*Node, len(raw.Children)),
	}
	for childName, childRaw := range raw.Children {
		n.children[childName] = nodeFromJSON(childName, n, childRaw)
	}
	return n
}

func derefInt64(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
