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

// VersionFile is one historical revision of a record, materialized as
// "<version_id>.json" inside the record's history directory.
type VersionFile struct {
	base
	ResourceType string
	RecordID     string
	VersionID    string
	content      []byte
}

func NewVersionFile(inode fuseops.InodeID, name, resourceType, recordID, versionID string, content []byte, now time.Time) *VersionFile {
	return &VersionFile{
		base:         newBase(inode, name, false, 0o644, now),
		ResourceType: resourceType,
		RecordID:     recordID,
		VersionID:    versionID,
		content:      content,
	}
}

var _ Node = (*VersionFile)(nil)

func (v *VersionFile) Class() Class { return ClassVersionFile }
func (v *VersionFile) Size() uint64 { return uint64(len(v.content)) }

func (v *VersionFile) Attrs() fuseops.InodeAttributes {
	return v.base.attrs(uint64(len(v.content)), 1)
}

func (v *VersionFile) ReadAt(offset int64, length int) []byte {
	return clampRead(v.content, offset, length)
}
