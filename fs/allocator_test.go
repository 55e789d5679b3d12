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
	"testing"

	"github.com/jacobsa/fuse/fuseops"
	"github.com/stretchr/testify/assert"
)

func TestInodeAllocator_MonotonicAndNeverReused(t *testing.T) {
	a := newInodeAllocator()

	seen := make(map[fuseops.InodeID]bool)
	var last fuseops.InodeID

	for i := 0; i < 100; i++ {
		id := a.Allocate()
		assert.False(t, seen[id], "inode %d allocated twice", id)
		seen[id] = true

		if i > 0 {
			assert.Greater(t, id, last)
		}
		last = id
	}
}

func TestInodeAllocator_NeverReturnsRootInode(t *testing.T) {
	a := newInodeAllocator()
	for i := 0; i < 10; i++ {
		assert.NotEqual(t, fuseops.RootInodeID, a.Allocate())
	}
}
