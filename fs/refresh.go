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
	"context"
	"fmt"
	"time"

	"github.com/HealthSamurai/fhir-fuse/fs/node"
	"github.com/HealthSamurai/fhir-fuse/internal/logger"
	"github.com/HealthSamurai/fhir-fuse/remote"
	"github.com/HealthSamurai/fhir-fuse/remote/model"
	"github.com/jacobsa/fuse/fuseops"
)

// ensureCollection refreshes dir's RecordFile children from the remote if
// its TTL has expired; a fresh snapshot is reused as-is. Refresh failures
// are best-effort: the previous snapshot (if any) stays visible and the
// timestamp is not bumped, so the next request retries.
func (fs *FileSystem) ensureCollection(dir *node.Directory) {
	if fs.offline || fs.caches.freshCollection(dir.ResourceType) {
		return
	}

	records, err := fs.remote.List(context.Background(), dir.ResourceType)
	if err != nil {
		logger.Warn("collection refresh failed", "type", dir.ResourceType, "err", err)
		return
	}

	fs.rebuildCollection(dir, records)
	fs.caches.markCollectionFresh(dir.ResourceType)
}

// rebuildCollection replaces dir's RecordFile children with records,
// preserving (and lazily creating) each record's history directory.
func (fs *FileSystem) rebuildCollection(dir *node.Directory, records []model.Resource) {
	now := fs.clock.Now()

	fs.idx.clearByType(dir.ResourceType)

	for _, body := range records {
		id, err := remote.ResourceID(body)
		if err != nil {
			logger.Warn("skipping record with no id", "type", dir.ResourceType, "err", err)
			continue
		}

		name := id + ".json"
		rf := node.NewRecordFile(fs.alloc.Allocate(), name, dir.ResourceType, id, body, now)
		fs.idx.insert(rf)
		fs.idx.link(dir.Inode(), rf.Inode())

		fs.ensureHistoryDir(dir, id, now)
	}
}

// ensureHistoryDir makes sure the hidden ".<id>" sibling directory exists
// for record id under dir, without disturbing an
// existing one (and its possibly-already-loaded version files).
func (fs *FileSystem) ensureHistoryDir(dir *node.Directory, id string, now time.Time) {
	historyName := "." + id
	if _, ok := fs.idx.findChild(dir.Inode(), historyName); ok {
		return
	}

	hd := node.NewHistoryDirectory(fs.alloc.Allocate(), historyName, dir.ResourceType, id, now)
	fs.idx.insert(hd)
	fs.idx.link(dir.Inode(), hd.Inode())
}

// ensureHistory refreshes a history directory's VersionFile children from
// the remote if its TTL has expired.
func (fs *FileSystem) ensureHistory(hd *node.Directory) {
	if fs.offline || fs.caches.freshHistory(hd.Inode()) {
		return
	}

	versions, err := fs.remote.History(context.Background(), hd.ResourceType, hd.RecordID)
	if err != nil {
		logger.Warn("history refresh failed", "type", hd.ResourceType, "id", hd.RecordID, "err", err)
		return
	}

	now := fs.clock.Now()
	fs.idx.destroyChildren(hd.Inode())

	for _, v := range versions {
		name := v.ID + ".json"
		vf := node.NewVersionFile(fs.alloc.Allocate(), name, hd.ResourceType, hd.RecordID, v.ID, v.Body, now)
		fs.idx.insert(vf)
		fs.idx.link(hd.Inode(), vf.Inode())
	}

	fs.caches.markHistoryFresh(hd.Inode())
}

// ensureSearchQuery runs (or refreshes) a search query's SearchResultGroup
// children from the remote. Used both by mkdir (first materialization) and
// subsequent lookups/readdirs once the TTL has expired.
func (fs *FileSystem) ensureSearchQuery(sq *node.SearchQuery) error {
	if fs.offline {
		return nil
	}
	if fs.caches.freshQuery(sq.Inode()) {
		return nil
	}

	grouped, err := fs.remote.Search(context.Background(), sq.ResourceType, sq.RawQuery)
	if err != nil {
		logger.Warn("search refresh failed", "type", sq.ResourceType, "query", sq.RawQuery, "err", err)
		return fmt.Errorf("search: %w", err)
	}

	now := fs.clock.Now()
	fs.idx.destroyChildren(sq.Inode())

	for _, rt := range remote.SortedResourceTypes(grouped) {
		group := node.NewSearchResultGroup(fs.alloc.Allocate(), rt, now)
		fs.idx.insert(group)
		fs.idx.link(sq.Inode(), group.Inode())

		for _, body := range grouped[rt] {
			id, idErr := remote.ResourceID(body)
			if idErr != nil {
				logger.Warn("skipping search result with no id", "type", rt, "err", idErr)
				continue
			}
			rf := node.NewRecordFile(fs.alloc.Allocate(), id+".json", rt, id, body, now)
			fs.idx.insert(rf)
			fs.idx.link(group.Inode(), rf.Inode())
		}
	}

	fs.caches.markQueryFresh(sq.Inode())
	return nil
}

// searchQueryOf walks up from a SearchResultGroup to the owning
// SearchQuery, used when a lookup/readdir under a result group needs to
// honor the query's TTL.
func (fs *FileSystem) searchQueryOf(groupInode fuseops.InodeID) (*node.SearchQuery, bool) {
	for parent, kids := range fs.idx.children {
		for _, k := range kids {
			if k != groupInode {
				continue
			}
			if sq, ok := fs.idx.get(parent); ok {
				if q, isQuery := sq.(*node.SearchQuery); isQuery {
					return q, true
				}
			}
		}
	}
	return nil, false
}
