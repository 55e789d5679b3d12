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

// Directory covers the root, resource-type roots, and the dynamic
// per-record history directories. _search roots, $<op> roots, search
// queries and result groups have their own node types.
type Directory struct {
	base

	// History, when true, marks this as a per-record history directory
	// (".<record-id>"), so fs can decide whether lazy history loading
	// applies on lookup/readdir.
	History bool

	// RecordID identifies the record a history directory belongs to. Empty
	// for non-history directories.
	RecordID string

	// ResourceType is non-empty when this Directory is a resource-type root
	// (e.g. "Patient"), so fs can trigger collection refresh on lookup and
	// readdir. Also set on history directories, identifying the
	// owning resource type.
	ResourceType string
}

// NewDirectory constructs a plain (non-history) directory node, used for
// root and as the base of resource-type roots and history directories.
func NewDirectory(inode fuseops.InodeID, name string, now time.Time) *Directory {
	return &Directory{base: newBase(inode, name, true, 0o755, now)}
}

// NewHistoryDirectory constructs the hidden ".<id>" sibling of a record
// file.
func NewHistoryDirectory(inode fuseops.InodeID, name, resourceType, recordID string, now time.Time) *Directory {
	d := NewDirectory(inode, name, now)
	d.History = true
	d.ResourceType = resourceType
	d.RecordID = recordID
	return d
}

// NewResourceTypeDirectory constructs a resource-type root (e.g.
// "/Patient"), whose children are record files refreshed from the
// collection on a TTL.
func NewResourceTypeDirectory(inode fuseops.InodeID, resourceType string, now time.Time) *Directory {
	d := NewDirectory(inode, resourceType, now)
	d.ResourceType = resourceType
	return d
}

var _ Node = (*Directory)(nil)

func (d *Directory) Class() Class { return ClassDirectory }
func (d *Directory) Size() uint64 { return 0 }

func (d *Directory) Attrs() fuseops.InodeAttributes {
	a := d.base.attrs(0, 1)
	a.Mode = os.ModeDir | d.perm
	return a
}

func (d *Directory) ReadAt(int64, int) []byte { return nil }
