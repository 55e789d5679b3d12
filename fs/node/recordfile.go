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
	"time"

	"github.com/jacobsa/fuse/fuseops"
)

// RecordFile represents one server record, materialized as
// "<record_id>.json" inside its resource-type directory.
type RecordFile struct {
	base
	ResourceType string
	RecordID     string
	content      []byte
}

// NewRecordFile constructs a RecordFile. filename is computed by the
// caller (normally "<recordID>.json") and passed as name.
func NewRecordFile(inode fuseops.InodeID, name, resourceType, recordID string, content []byte, now time.Time) *RecordFile {
	return &RecordFile{
		base:         newBase(inode, name, false, 0o644, now),
		ResourceType: resourceType,
		RecordID:     recordID,
		content:      content,
	}
}

var _ Node = (*RecordFile)(nil)

func (r *RecordFile) Class() Class { return ClassRecordFile }
func (r *RecordFile) Size() uint64 { return uint64(len(r.content)) }

func (r *RecordFile) Attrs() fuseops.InodeAttributes {
	return r.base.attrs(uint64(len(r.content)), 1)
}

func (r *RecordFile) ReadAt(offset int64, length int) []byte {
	return clampRead(r.content, offset, length)
}

// Content returns the record's current bytes, as last refreshed from the
// remote or set directly after a flush.
func (r *RecordFile) Content() []byte { return r.content }

// SetContent replaces the record's cached bytes, used after a successful
// list/get refresh or a flush.
func (r *RecordFile) SetContent(b []byte, now time.Time) {
	r.content = b
	r.Touch(now)
}

// Rehome updates the record's id and display name in place, used by an
// in-place rename within the same resource-type directory.
func (r *RecordFile) Rehome(recordID, name string, now time.Time) {
	r.RecordID = recordID
	r.SetDisplayName(name)
	r.Touch(now)
}
