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

// TextFile is a static, embedded, read-only document: the root README, the
// per-type _search README, and host-OS blackout markers such as
// .metadata_never_index.
type TextFile struct {
	base
	content []byte
}

// NewTextFile constructs a read-only TextFile with fixed content.
func NewTextFile(inode fuseops.InodeID, name string, content []byte, now time.Time) *TextFile {
	return &TextFile{base: newBase(inode, name, false, 0o644, now), content: content}
}

var _ Node = (*TextFile)(nil)

func (t *TextFile) Class() Class { return ClassTextFile }
func (t *TextFile) Size() uint64 { return uint64(len(t.content)) }

func (t *TextFile) Attrs() fuseops.InodeAttributes {
	return t.base.attrs(uint64(len(t.content)), 1)
}

func (t *TextFile) ReadAt(offset int64, length int) []byte {
	return clampRead(t.content, offset, length)
}
