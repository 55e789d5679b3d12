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

package fs

import (
	"github.com/HealthSamurai/fhir-fuse/fs/node"
	"github.com/jacobsa/fuse/fuseops"
)

// index is the only place that knows the filesystem shape. Three maps:
// inode -> node, parent -> ordered children, resource type -> record
// inodes. It holds no locks of its own; fs.mu (an InvariantMutex) guards
// every call.
type index struct {
	byInode   map[fuseops.InodeID]node.Node
	children  map[fuseops.InodeID][]fuseops.InodeID
	byType    map[string][]fuseops.InodeID
}

func newIndex() *index {
	return &index{
		byInode:  make(map[fuseops.InodeID]node.Node),
		children: make(map[fuseops.InodeID][]fuseops.InodeID),
		byType:   make(map[string][]fuseops.InodeID),
	}
}

// insert places node in the index and, for a RecordFile, appends it to its
// resource type's secondary index.
func (ix *index) insert(n node.Node) {
	ix.byInode[n.Inode()] = n

	if rf, ok := n.(*node.RecordFile); ok {
		ix.byType[rf.ResourceType] = append(ix.byType[rf.ResourceType], n.Inode())
	}
}

// link appends child to parent's ordered child list. Callers are
// responsible for not introducing duplicate (parent, name) pairs.
func (ix *index) link(parent, child fuseops.InodeID) {
	ix.children[parent] = append(ix.children[parent], child)
}

// get returns the node for inode, or (nil, false) if unknown.
func (ix *index) get(inode fuseops.InodeID) (node.Node, bool) {
	n, ok := ix.byInode[inode]
	return n, ok
}

// childList returns the ordered child inodes of parent, excluding "." and
// "..", which callers synthesize themselves.
func (ix *index) childList(parent fuseops.InodeID) []fuseops.InodeID {
	return ix.children[parent]
}

// findChild linearly scans parent's children comparing DisplayName.
func (ix *index) findChild(parent fuseops.InodeID, name string) (node.Node, bool) {
	for _, childID := range ix.children[parent] {
		n, ok := ix.byInode[childID]
		if ok && n.DisplayName() == name {
			return n, true
		}
	}
	return nil, false
}

// remove deletes inode's entry, scrubs it from any per-type index, and
// removes it from every parent's child list.
func (ix *index) remove(inode fuseops.InodeID) {
	n, ok := ix.byInode[inode]
	if !ok {
		return
	}
	delete(ix.byInode, inode)

	if rf, isRecord := n.(*node.RecordFile); isRecord {
		ix.byType[rf.ResourceType] = removeID(ix.byType[rf.ResourceType], inode)
	}

	for parent, kids := range ix.children {
		ix.children[parent] = removeID(kids, inode)
	}
	delete(ix.children, inode)
}

// clearChildren detaches parent's child list without touching the children
// themselves.
func (ix *index) clearChildren(parent fuseops.InodeID) {
	delete(ix.children, parent)
}

// destroyChildren detaches parent's child list and removes each child's
// whole subtree from the index. Used for history
// directories and search subtrees, whose children are wholly re-fetched on
// each refresh, unlike record collections which go through clearByType to
// preserve history directories. RecordFiles encountered along the way
// (search results) are scrubbed from the per-type index too.
func (ix *index) destroyChildren(parent fuseops.InodeID) {
	for _, child := range ix.children[parent] {
		ix.destroyChildren(child)

		n, ok := ix.byInode[child]
		if !ok {
			continue
		}
		delete(ix.byInode, child)

		if rf, isRecord := n.(*node.RecordFile); isRecord {
			ix.byType[rf.ResourceType] = removeID(ix.byType[rf.ResourceType], child)
		}
	}
	delete(ix.children, parent)
}

// clearByType removes every RecordFile of resourceType from both the entry
// map and every parent's child list. History directories and their
// children are untouched.
func (ix *index) clearByType(resourceType string) {
	ids := ix.byType[resourceType]
	delete(ix.byType, resourceType)

	for _, id := range ids {
		delete(ix.byInode, id)
		for parent, kids := range ix.children {
			ix.children[parent] = removeID(kids, id)
		}
	}
}

// recordsOfType returns the current record inodes for resourceType.
func (ix *index) recordsOfType(resourceType string) []fuseops.InodeID {
	return ix.byType[resourceType]
}

// count returns the number of live inodes, for the InodeCount metric.
func (ix *index) count() int { return len(ix.byInode) }

func removeID(ids []fuseops.InodeID, target fuseops.InodeID) []fuseops.InodeID {
	out := ids[:0]
	for _, id := range ids {
		if id != target {
			out = append(out, id)
		}
	}
	return out
}
