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

import "github.com/jacobsa/fuse/fuseops"

// inodeAllocator hands out monotonically increasing, never-reused inode
// numbers. Handlers are serialized under fs.mu, so this needs no locking
// of its own.
type inodeAllocator struct {
	next fuseops.InodeID
}

// newInodeAllocator reserves fuseops.RootInodeID (1) for root and starts
// handing out inodes at 2.
func newInodeAllocator() *inodeAllocator {
	return &inodeAllocator{next: fuseops.RootInodeID + 1}
}

// Allocate returns the next inode number. It never reuses a previously
// returned value.
func (a *inodeAllocator) Allocate() fuseops.InodeID {
	id := a.next
	a.next++
	return id
}
