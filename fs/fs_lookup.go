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
	"syscall"

	"github.com/HealthSamurai/fhir-fuse/fs/node"
	"github.com/jacobsa/fuse/fuseops"
)

// LookUpInode implements fuseutil.FileSystem.
func (fs *FileSystem) LookUpInode(ctx context.Context, op *fuseops.LookUpInodeOp) (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer func() { fs.observeOp("lookup", err) }()

	inode, attrs, ok := fs.resolveChild(op.Parent, op.Name)
	if !ok {
		return syscall.ENOENT
	}

	op.Entry.Child = inode
	op.Entry.Attributes = attrs
	op.Entry.AttributesExpiration = fs.clock.Now().Add(node.AttrCacheTTL)
	op.Entry.EntryExpiration = op.Entry.AttributesExpiration
	return nil
}

// resolveChild is the shared classification + refresh + child-scan
// sequence behind lookup. It consults the temp-file table as a last
// resort.
func (fs *FileSystem) resolveChild(parent fuseops.InodeID, name string) (fuseops.InodeID, fuseops.InodeAttributes, bool) {
	fs.refreshParentBeforeLookup(parent, name)

	if child, ok := fs.idx.findChild(parent, name); ok {
		return child.Inode(), child.Attrs(), true
	}

	if _, tf, ok := fs.tmp.findChild(parent, name); ok {
		return tf.inodeID, tempFileAttrs(tf), true
	}

	return 0, fuseops.InodeAttributes{}, false
}

// refreshParentBeforeLookup applies the TTL-honored refresh step that
// precedes the child scan, for the parent classes that load lazily.
func (fs *FileSystem) refreshParentBeforeLookup(parent fuseops.InodeID, name string) {
	parentNode, ok := fs.idx.get(parent)
	if !ok {
		return
	}

	switch p := parentNode.(type) {
	case *node.Directory:
		switch {
		case p.History:
			fs.ensureHistory(p)
		case p.ResourceType != "":
			fs.ensureCollection(p)
		}

	case *node.SearchQuery:
		_ = fs.ensureSearchQuery(p)

	case *node.SearchResultGroup:
		if sq, ok := fs.searchQueryOf(p.Inode()); ok {
			_ = fs.ensureSearchQuery(sq)
		}

	case *node.OperationRoot:
		fs.maybeExecuteOperation(p, name)
	}
}
