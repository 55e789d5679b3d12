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
	"time"

	"github.com/HealthSamurai/fhir-fuse/fs/node"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_InsertLinkFindChild(t *testing.T) {
	ix := newIndex()
	now := time.Now()

	root := node.NewDirectory(fuseops.RootInodeID, "", now)
	ix.insert(root)

	dir := node.NewResourceTypeDirectory(2, "Patient", now)
	ix.insert(dir)
	ix.link(fuseops.RootInodeID, dir.Inode())

	rf := node.NewRecordFile(3, "p1.json", "Patient", "p1", []byte(`{}`), now)
	ix.insert(rf)
	ix.link(dir.Inode(), rf.Inode())

	found, ok := ix.findChild(dir.Inode(), "p1.json")
	require.True(t, ok)
	assert.Equal(t, fuseops.InodeID(3), found.Inode())

	_, ok = ix.findChild(dir.Inode(), "nope.json")
	assert.False(t, ok)

	// the per-type index lists exactly the matching RecordFiles.
	assert.Equal(t, []fuseops.InodeID{3}, ix.recordsOfType("Patient"))
}

func TestIndex_RemoveScrubsTypeIndexAndParentLinks(t *testing.T) {
	ix := newIndex()
	now := time.Now()

	dir := node.NewResourceTypeDirectory(2, "Patient", now)
	ix.insert(dir)

	rf := node.NewRecordFile(3, "p1.json", "Patient", "p1", nil, now)
	ix.insert(rf)
	ix.link(dir.Inode(), rf.Inode())

	ix.remove(rf.Inode())

	_, ok := ix.get(rf.Inode())
	assert.False(t, ok)
	assert.Empty(t, ix.recordsOfType("Patient"))
	assert.NotContains(t, ix.childList(dir.Inode()), rf.Inode())
}

func TestIndex_ClearByTypePreservesHistoryDirectories(t *testing.T) {
	ix := newIndex()
	now := time.Now()

	dir := node.NewResourceTypeDirectory(2, "Patient", now)
	ix.insert(dir)

	rf := node.NewRecordFile(3, "p1.json", "Patient", "p1", nil, now)
	ix.insert(rf)
	ix.link(dir.Inode(), rf.Inode())

	hist := node.NewHistoryDirectory(4, ".p1", "Patient", "p1", now)
	ix.insert(hist)
	ix.link(dir.Inode(), hist.Inode())

	ix.clearByType("Patient")

	_, ok := ix.get(rf.Inode())
	assert.False(t, ok, "record file should be gone")

	_, ok = ix.get(hist.Inode())
	assert.True(t, ok, "history directory must survive a collection refresh")

	assert.Contains(t, ix.childList(dir.Inode()), hist.Inode())
	assert.NotContains(t, ix.childList(dir.Inode()), rf.Inode())
}

func TestIndex_DestroyChildrenRemovesChildEntriesToo(t *testing.T) {
	ix := newIndex()
	now := time.Now()

	hist := node.NewHistoryDirectory(2, ".p1", "Patient", "p1", now)
	ix.insert(hist)

	vf := node.NewVersionFile(3, "v1.json", "Patient", "p1", "v1", nil, now)
	ix.insert(vf)
	ix.link(hist.Inode(), vf.Inode())

	ix.destroyChildren(hist.Inode())

	_, ok := ix.get(vf.Inode())
	assert.False(t, ok)
	assert.Empty(t, ix.childList(hist.Inode()))
}

func TestIndex_DestroyChildrenRecursesAndScrubsTypeIndex(t *testing.T) {
	// the shape a search-query refresh tears down: query -> result group ->
	// record file. Destroying the query's children must remove the
	// grandchild record and its per-type index entry too.
	ix := newIndex()
	now := time.Now()

	sq := node.NewSearchQuery(2, "gender=female", "Patient", now)
	ix.insert(sq)

	group := node.NewSearchResultGroup(3, "Patient", now)
	ix.insert(group)
	ix.link(sq.Inode(), group.Inode())

	rf := node.NewRecordFile(4, "p9.json", "Patient", "p9", nil, now)
	ix.insert(rf)
	ix.link(group.Inode(), rf.Inode())

	ix.destroyChildren(sq.Inode())

	_, ok := ix.get(group.Inode())
	assert.False(t, ok)
	_, ok = ix.get(rf.Inode())
	assert.False(t, ok, "grandchild records must not be orphaned")
	assert.Empty(t, ix.recordsOfType("Patient"))
}

func TestIndex_CountReflectsLiveInodes(t *testing.T) {
	ix := newIndex()
	now := time.Now()

	assert.Equal(t, 0, ix.count())

	ix.insert(node.NewDirectory(1, "", now))
	ix.insert(node.NewRecordFile(2, "p1.json", "Patient", "p1", nil, now))
	assert.Equal(t, 2, ix.count())

	ix.remove(2)
	assert.Equal(t, 1, ix.count())
}
