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
	"sort"
	"syscall"

	"github.com/HealthSamurai/fhir-fuse/fs/node"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
)

// OpenDir implements fuseutil.FileSystem: rejects non-directory inodes
// with ENOTDIR.
func (fs *FileSystem) OpenDir(ctx context.Context, op *fuseops.OpenDirOp) (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer func() { fs.observeOp("opendir", err) }()

	n, ok := fs.idx.get(op.Inode)
	if !ok {
		return syscall.ENOENT
	}
	if !n.IsDir() {
		return syscall.ENOTDIR
	}

	fs.refreshBeforeReaddir(n)

	parent := op.Inode
	if op.Inode != fuseops.RootInodeID {
		if p, ok := fs.parentOf(op.Inode); ok {
			parent = p
		}
	}

	entries := fs.orderedEntries(op.Inode, n)
	dh := newDirHandle(op.Inode, parent, entries)

	fs.nextHandle++
	handle := fs.nextHandle
	fs.dirHandles[handle] = dh
	op.Handle = handle
	return nil
}

// ReadDir implements fuseutil.FileSystem.
func (fs *FileSystem) ReadDir(ctx context.Context, op *fuseops.ReadDirOp) (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer func() { fs.observeOp("readdir", err) }()

	dh, ok := fs.dirHandles[op.Handle]
	if !ok {
		return syscall.EINVAL
	}
	return dh.ReadDir(op)
}

// ReleaseDirHandle implements fuseutil.FileSystem.
func (fs *FileSystem) ReleaseDirHandle(ctx context.Context, op *fuseops.ReleaseDirHandleOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	delete(fs.dirHandles, op.Handle)
	return nil
}

// refreshBeforeReaddir applies the TTL-honored refresh that precedes a
// directory listing: resource-type directories refresh their collection,
// history directories load history, search-query directories refresh
// their search.
func (fs *FileSystem) refreshBeforeReaddir(n node.Node) {
	switch p := n.(type) {
	case *node.Directory:
		switch {
		case p.History:
			fs.ensureHistory(p)
		case p.ResourceType != "":
			fs.ensureCollection(p)
		}
	case *node.SearchQuery:
		_ = fs.ensureSearchQuery(p)
	}
}

// orderedEntries builds the readdir listing for dir: insertion order in
// general, except resource-type and
// result-group directories, whose RecordFile/history-directory children
// are sorted alphabetically by display name while any "_search"/"$<op>"
// entries keep their original (insertion-order) position ahead of the
// alphabetical run.
func (fs *FileSystem) orderedEntries(self fuseops.InodeID, n node.Node) []fuseutil.Dirent {
	children := fs.idx.childList(self)

	_, isResourceTypeDir := resourceTypeOf(n)
	_, isResultGroup := n.(*node.SearchResultGroup)

	if !isResourceTypeDir && !isResultGroup {
		return fs.direntsInOrder(children)
	}

	var special, alphabetical []fuseops.InodeID
	for _, id := range children {
		child, ok := fs.idx.get(id)
		if !ok {
			continue
		}
		switch child.(type) {
		case *node.SearchRoot, *node.OperationRoot:
			special = append(special, id)
		default:
			alphabetical = append(alphabetical, id)
		}
	}

	sort.Slice(alphabetical, func(i, j int) bool {
		ni, _ := fs.idx.get(alphabetical[i])
		nj, _ := fs.idx.get(alphabetical[j])
		return ni.DisplayName() < nj.DisplayName()
	})

	ordered := append(special, alphabetical...)
	return fs.direntsInOrder(ordered)
}

func (fs *FileSystem) direntsInOrder(ids []fuseops.InodeID) []fuseutil.Dirent {
	entries := make([]fuseutil.Dirent, 0, len(ids))
	for _, id := range ids {
		n, ok := fs.idx.get(id)
		if !ok {
			continue
		}
		entries = append(entries, fuseutil.Dirent{
			Inode: id,
			Name:  n.DisplayName(),
			Type:  directoryKind(n),
		})
	}
	return entries
}

func resourceTypeOf(n node.Node) (string, bool) {
	d, ok := n.(*node.Directory)
	if !ok || d.History {
		return "", false
	}
	if d.ResourceType == "" {
		return "", false
	}
	return d.ResourceType, true
}

// parentOf finds inode's parent by scanning the child map, used to fill
// ".." for OpenDir. Root's ".." resolves to itself and is handled by the
// caller passing op.Inode through unchanged.
func (fs *FileSystem) parentOf(inode fuseops.InodeID) (fuseops.InodeID, bool) {
	for parent, kids := range fs.idx.children {
		for _, k := range kids {
			if k == inode {
				return parent, true
			}
		}
	}
	return 0, false
}

// MkDir implements fuseutil.FileSystem: mkdir is valid only directly
// under a SearchRoot.
func (fs *FileSystem) MkDir(ctx context.Context, op *fuseops.MkDirOp) (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer func() { fs.observeOp("mkdir", err) }()

	parent, ok := fs.idx.get(op.Parent)
	if !ok {
		return syscall.ENOENT
	}

	root, ok := parent.(*node.SearchRoot)
	if !ok {
		return syscall.EACCES
	}

	if _, exists := fs.idx.findChild(op.Parent, op.Name); exists {
		return syscall.EEXIST
	}

	now := fs.clock.Now()
	sq := node.NewSearchQuery(fs.alloc.Allocate(), op.Name, root.ResourceType, now)
	fs.idx.insert(sq)
	fs.idx.link(op.Parent, sq.Inode())

	// A failed search leaves an empty query directory in place; the next
	// lookup/readdir retries once the TTL allows it.
	_ = fs.ensureSearchQuery(sq)

	op.Entry.Child = sq.Inode()
	op.Entry.Attributes = sq.Attrs()
	op.Entry.AttributesExpiration = fs.clock.Now().Add(node.AttrCacheTTL)
	op.Entry.EntryExpiration = op.Entry.AttributesExpiration
	return nil
}

// RmDir implements fuseutil.FileSystem. Only search-query directories may
// be removed: every other directory is server- or mount-managed, but
// letting a file manager clean up a query it created keeps _search usable
// without granting general directory deletion.
func (fs *FileSystem) RmDir(ctx context.Context, op *fuseops.RmDirOp) (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer func() { fs.observeOp("rmdir", err) }()

	child, ok := fs.idx.findChild(op.Parent, op.Name)
	if !ok {
		return syscall.ENOENT
	}

	if _, ok := child.(*node.SearchQuery); !ok {
		return syscall.EACCES
	}

	fs.idx.destroyChildren(child.Inode())
	fs.idx.remove(child.Inode())
	return nil
}
