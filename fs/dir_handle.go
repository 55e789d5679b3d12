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
	"github.com/jacobsa/fuse/fuseutil"
)

// dirHandle buffers one OpenDir/ReadDir/ReleaseDirHandle session's worth
// of entries, built fresh from the index on each open. The full entry list
// for a directory is cheap to materialize up front once its TTL-honored
// refresh (if any) has run, so ReadDir only serves slices of an
// already-built list.
type dirHandle struct {
	entries []fuseutil.Dirent
}

// newDirHandle snapshots dir's current children, in the order fs has
// already arranged (see orderedEntries).
func newDirHandle(self fuseops.InodeID, parent fuseops.InodeID, children []fuseutil.Dirent) *dirHandle {
	entries := make([]fuseutil.Dirent, 0, len(children)+2)
	entries = append(entries,
		fuseutil.Dirent{Offset: 1, Inode: self, Name: ".", Type: fuseutil.DT_Directory},
		fuseutil.Dirent{Offset: 2, Inode: parent, Name: "..", Type: fuseutil.DT_Directory},
	)
	for i, e := range children {
		e.Offset = fuseops.DirOffset(i + 3)
		entries = append(entries, e)
	}
	return &dirHandle{entries: entries}
}

// ReadDir serves op.Dst from the buffered entry list starting at op.Offset,
// per the standard fuseops.ReadDirOp contract.
func (dh *dirHandle) ReadDir(op *fuseops.ReadDirOp) error {
	index := int(op.Offset)
	if index < 0 || index > len(dh.entries) {
		index = len(dh.entries)
	}

	for i := index; i < len(dh.entries); i++ {
		n := fuseutil.WriteDirent(op.Dst[op.BytesRead:], dh.entries[i])
		if n == 0 {
			break
		}
		op.BytesRead += n
	}

	return nil
}

// directoryKind maps a node to the fuseutil.DirentType readdir reports,
// by IsDir; every node kind in this filesystem is either a directory or a
// regular file.
func directoryKind(n node.Node) fuseutil.DirentType {
	if n.IsDir() {
		return fuseutil.DT_Directory
	}
	return fuseutil.DT_File
}
