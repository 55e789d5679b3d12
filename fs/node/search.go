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

package node

import (
	"os"
	"time"

	"github.com/jacobsa/fuse/fuseops"
)

// SearchRoot is the per-type "_search" virtual directory.
type SearchRoot struct {
	base
	ResourceType string
}

func NewSearchRoot(inode fuseops.InodeID, resourceType string, now time.Time) *SearchRoot {
	return &SearchRoot{base: newBase(inode, "_search", true, 0o755, now), ResourceType: resourceType}
}

var _ Node = (*SearchRoot)(nil)

func (s *SearchRoot) Class() Class             { return ClassSearchRoot }
func (s *SearchRoot) Size() uint64             { return 0 }
func (s *SearchRoot) ReadAt(int64, int) []byte { return nil }
func (s *SearchRoot) Attrs() fuseops.InodeAttributes {
	a := s.base.attrs(0, 1)
	a.Mode = os.ModeDir | s.perm
	return a
}

// SearchQuery is a directory named by the raw query string, created by
// mkdir under a SearchRoot.
type SearchQuery struct {
	base
	ResourceType string
	RawQuery     string
}

func NewSearchQuery(inode fuseops.InodeID, rawQuery, resourceType string, now time.Time) *SearchQuery {
	return &SearchQuery{base: newBase(inode, rawQuery, true, 0o755, now), ResourceType: resourceType, RawQuery: rawQuery}
}

var _ Node = (*SearchQuery)(nil)

func (s *SearchQuery) Class() Class             { return ClassSearchQuery }
func (s *SearchQuery) Size() uint64             { return 0 }
func (s *SearchQuery) ReadAt(int64, int) []byte { return nil }
func (s *SearchQuery) Attrs() fuseops.InodeAttributes {
	a := s.base.attrs(0, 1)
	a.Mode = os.ModeDir | s.perm
	return a
}

// SearchResultGroup groups one result type's records under a SearchQuery.
type SearchResultGroup struct {
	base
	ResourceType string
}

func NewSearchResultGroup(inode fuseops.InodeID, resourceType string, now time.Time) *SearchResultGroup {
	return &SearchResultGroup{base: newBase(inode, resourceType, true, 0o755, now), ResourceType: resourceType}
}

var _ Node = (*SearchResultGroup)(nil)

func (s *SearchResultGroup) Class() Class             { return ClassSearchResultGroup }
func (s *SearchResultGroup) Size() uint64             { return 0 }
func (s *SearchResultGroup) ReadAt(int64, int) []byte { return nil }
func (s *SearchResultGroup) Attrs() fuseops.InodeAttributes {
	a := s.base.attrs(0, 1)
	a.Mode = os.ModeDir | s.perm
	return a
}
