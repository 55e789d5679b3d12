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
	"unicode/utf8"

	"github.com/HealthSamurai/fhir-fuse/fs/node"
	"github.com/HealthSamurai/fhir-fuse/internal/logger"
	"github.com/jacobsa/fuse/fuseops"
)

// CreateFile implements fuseutil.FileSystem. Creation is permitted
// directly under a resource-type directory (the file becomes a brand-new
// RecordFile once flushed) or anywhere for a temp name. Everywhere else the
// request is denied so a file manager can't scribble real records into
// search or history directories.
func (fs *FileSystem) CreateFile(ctx context.Context, op *fuseops.CreateFileOp) (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer func() { fs.observeOp("createfile", err) }()

	if _, exists := fs.idx.findChild(op.Parent, op.Name); exists {
		return syscall.EEXIST
	}
	if _, _, exists := fs.tmp.findChild(op.Parent, op.Name); exists {
		return syscall.EEXIST
	}

	now := fs.clock.Now()

	if isTempFileName(op.Name) {
		inode := fs.alloc.Allocate()
		tf := fs.tmp.create(inode, op.Parent, op.Name)
		fs.createdThisSession[inode] = true
		op.Handle = fs.allocFileHandle(inode)

		op.Entry.Child = inode
		op.Entry.Attributes = tempFileAttrs(tf)
		op.Entry.AttributesExpiration = now.Add(node.AttrCacheTTL)
		op.Entry.EntryExpiration = op.Entry.AttributesExpiration
		return nil
	}

	parent, ok := fs.idx.get(op.Parent)
	if !ok {
		return syscall.ENOENT
	}
	dir, ok := parent.(*node.Directory)
	if !ok || dir.History || dir.ResourceType == "" {
		return syscall.EACCES
	}

	id, _ := splitRecordName(op.Name)

	rf := node.NewRecordFile(fs.alloc.Allocate(), op.Name, dir.ResourceType, id, nil, now)
	fs.idx.insert(rf)
	fs.idx.link(op.Parent, rf.Inode())
	fs.ensureHistoryDir(dir, id, now)
	fs.createdThisSession[rf.Inode()] = true
	op.Handle = fs.allocFileHandle(rf.Inode())

	op.Entry.Child = rf.Inode()
	op.Entry.Attributes = rf.Attrs()
	op.Entry.AttributesExpiration = now.Add(node.AttrCacheTTL)
	op.Entry.EntryExpiration = op.Entry.AttributesExpiration
	return nil
}

// OpenFile implements fuseutil.FileSystem: rejects
// directories with IsADirectory, and force-executes a still-virtual
// OperationExecution so its size is known before the kernel starts reading.
func (fs *FileSystem) OpenFile(ctx context.Context, op *fuseops.OpenFileOp) (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer func() { fs.observeOp("openfile", err) }()

	if _, ok := fs.tmp.get(op.Inode); ok {
		op.Handle = fs.allocFileHandle(op.Inode)
		return nil
	}

	n, ok := fs.idx.get(op.Inode)
	if !ok {
		return syscall.ENOENT
	}
	if n.IsDir() {
		return syscall.EISDIR
	}

	if exec, isExec := n.(*node.OperationExecution); isExec {
		fs.executeOperation(exec)
	}

	op.Handle = fs.allocFileHandle(op.Inode)
	return nil
}

// allocFileHandle hands out the next handle id and records which inode it
// views, so ReleaseFileHandle can clean up per-inode write state.
func (fs *FileSystem) allocFileHandle(inode fuseops.InodeID) fuseops.HandleID {
	fs.nextHandle++
	fs.fileHandles[fs.nextHandle] = inode
	return fs.nextHandle
}

// ReadFile implements fuseutil.FileSystem: serves a
// clamped slice from the live write buffer if one exists (so a reader sees
// its own unflushed writes), otherwise from the node's last-known content.
func (fs *FileSystem) ReadFile(ctx context.Context, op *fuseops.ReadFileOp) (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer func() { fs.observeOp("readfile", err) }()

	var data []byte

	if mc, ok := fs.writeBufs.get(op.Inode); ok {
		data = mc.ReadAt(op.Offset, int(op.Size))
	} else if tf, ok := fs.tmp.get(op.Inode); ok {
		data = tf.ReadAt(op.Offset, int(op.Size))
	} else if n, ok := fs.idx.get(op.Inode); ok {
		if n.IsDir() {
			return syscall.EISDIR
		}
		if exec, isExec := n.(*node.OperationExecution); isExec {
			if _, cached := exec.Result(); !cached {
				fs.executeOperation(exec)
			}
		}
		data = n.ReadAt(op.Offset, int(op.Size))
	} else {
		return syscall.ENOENT
	}

	if op.Dst != nil {
		op.BytesRead = copy(op.Dst, data)
	} else {
		op.Data = [][]byte{data}
		op.BytesRead = len(data)
	}
	return nil
}

// WriteFile implements fuseutil.FileSystem: lazily primes
// the write buffer from the node's current content (or empty, for a new or
// temp file) before splicing in the new bytes.
func (fs *FileSystem) WriteFile(ctx context.Context, op *fuseops.WriteFileOp) (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer func() { fs.observeOp("writefile", err) }()

	if tf, ok := fs.tmp.get(op.Inode); ok {
		tf.WriteAt(op.Data, op.Offset)
		return nil
	}

	n, ok := fs.idx.get(op.Inode)
	if !ok {
		return syscall.ENOENT
	}
	if n.IsDir() {
		return syscall.EISDIR
	}

	mc := fs.writeBufs.getOrCreate(op.Inode, n.ReadAt(0, int(n.Size())))
	mc.WriteAt(op.Data, op.Offset)
	return nil
}

// FlushFile implements fuseutil.FileSystem: for RecordFiles with a live
// write buffer, publish the buffered bytes to the remote. Failures are
// logged and swallowed: the kernel already acknowledged the write.
func (fs *FileSystem) FlushFile(ctx context.Context, op *fuseops.FlushFileOp) (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer func() { fs.observeOp("flushfile", err) }()

	fs.flushRecordFile(op.Inode)
	return nil
}

// SyncFile implements fuseutil.FileSystem. This mount has no durability
// distinction beyond "has it reached the remote", so sync and flush share
// flushRecordFile.
func (fs *FileSystem) SyncFile(ctx context.Context, op *fuseops.SyncFileOp) (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer func() { fs.observeOp("syncfile", err) }()

	fs.flushRecordFile(op.Inode)
	return nil
}

// flushRecordFile publishes a single inode's write buffer to the remote.
// Non-RecordFiles (including temp files, which never reach the remote)
// are no-ops.
func (fs *FileSystem) flushRecordFile(inode fuseops.InodeID) {
	mc, ok := fs.writeBufs.get(inode)
	if !ok {
		return
	}

	n, ok := fs.idx.get(inode)
	if !ok {
		return
	}
	rf, ok := n.(*node.RecordFile)
	if !ok {
		return
	}

	buf := mc.Bytes()
	if !utf8.Valid(buf) {
		logger.Warn("flush: buffer is not valid UTF-8, skipping put", "type", rf.ResourceType, "id", rf.RecordID)
		return
	}

	if fs.offline {
		logger.Warn("flush skipped: offline mount", "type", rf.ResourceType, "id", rf.RecordID)
		return
	}

	id := rf.RecordID
	if id == "" {
		logger.Warn("flush: new record has no id yet, deferring put until rename", "name", rf.DisplayName())
		return
	}

	if putErr := fs.remote.Put(context.Background(), rf.ResourceType, id, buf); putErr != nil {
		logger.Warn("flush failed", "type", rf.ResourceType, "id", id, "err", putErr)
		return
	}

	rf.SetContent(buf, fs.clock.Now())
}

// ReleaseFileHandle implements fuseutil.FileSystem:
// drops the write buffer and any created-file marker. No remote traffic.
// Temp files keep their own bytes in the temp table until unlink, so an
// editor can close and reopen its scratch file across one logical save.
func (fs *FileSystem) ReleaseFileHandle(ctx context.Context, op *fuseops.ReleaseFileHandleOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	inode, ok := fs.fileHandles[op.Handle]
	if !ok {
		return nil
	}
	delete(fs.fileHandles, op.Handle)

	fs.writeBufs.release(inode)
	delete(fs.createdThisSession, inode)
	return nil
}

// Unlink implements fuseutil.FileSystem: temp files are
// removed in-process; RecordFiles are deleted remotely, treating 404 as
// success, with any other remote error surfaced as EIO and the node left in
// place.
func (fs *FileSystem) Unlink(ctx context.Context, op *fuseops.UnlinkOp) (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer func() { fs.observeOp("unlink", err) }()

	if inode, _, ok := fs.tmp.findChild(op.Parent, op.Name); ok {
		fs.tmp.remove(inode)
		fs.writeBufs.release(inode)
		return nil
	}

	child, ok := fs.idx.findChild(op.Parent, op.Name)
	if !ok {
		return syscall.ENOENT
	}

	rf, ok := child.(*node.RecordFile)
	if !ok {
		return syscall.ENOENT
	}

	if !fs.offline {
		if delErr := fs.remote.Delete(ctx, rf.ResourceType, rf.RecordID); delErr != nil {
			logger.Warn("unlink failed", "type", rf.ResourceType, "id", rf.RecordID, "err", delErr)
			return syscall.EIO
		}
	}

	fs.idx.remove(rf.Inode())
	fs.writeBufs.release(rf.Inode())
	fs.pruneHistoryDir(op.Parent, rf.RecordID)
	return nil
}

// pruneHistoryDir removes the hidden ".<id>" sibling (and its version
// files) once its record is gone, so unlinked records don't leave orphan
// history directories accumulating in the listing.
func (fs *FileSystem) pruneHistoryDir(parent fuseops.InodeID, recordID string) {
	hd, ok := fs.idx.findChild(parent, "."+recordID)
	if !ok {
		return
	}
	if d, isDir := hd.(*node.Directory); !isDir || !d.History {
		return
	}

	fs.caches.forgetHistory(hd.Inode())
	fs.idx.destroyChildren(hd.Inode())
	fs.idx.remove(hd.Inode())
}

// Rename implements fuseutil.FileSystem. Two shapes are
// accepted: finalizing a temp file into "<id>.json" under a resource-type
// directory (its buffer, if any, is put() to the remote first), and an
// in-place rename of an existing RecordFile within its own resource-type
// directory. Everything else — cross-directory moves of real records in
// particular — is rejected with Permission.
func (fs *FileSystem) Rename(ctx context.Context, op *fuseops.RenameOp) (err error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	defer func() { fs.observeOp("rename", err) }()

	if inode, tf, ok := fs.tmp.findChild(op.OldParent, op.OldName); ok {
		return fs.finalizeTempFile(ctx, inode, tf, op.NewParent, op.NewName)
	}

	child, ok := fs.idx.findChild(op.OldParent, op.OldName)
	if !ok {
		return syscall.ENOENT
	}

	rf, ok := child.(*node.RecordFile)
	if !ok {
		return syscall.EACCES
	}
	if op.NewParent != op.OldParent {
		return syscall.EACCES
	}

	id, ext := splitRecordName(op.NewName)
	if ext != "json" {
		return syscall.EACCES
	}

	rf.Rehome(id, op.NewName, fs.clock.Now())
	return nil
}

// finalizeTempFile handles the save-by-rename flow: a host-OS scratch
// file being saved as a real record. Non-empty buffers are
// put() before the node is re-homed as a RecordFile; an empty finalize (no
// write ever happened) still creates the node so a zero-byte save round
// trips.
func (fs *FileSystem) finalizeTempFile(ctx context.Context, inode fuseops.InodeID, tf *tempFile, newParent fuseops.InodeID, newName string) error {
	parent, ok := fs.idx.get(newParent)
	if !ok {
		return syscall.ENOENT
	}
	dir, ok := parent.(*node.Directory)
	if !ok || dir.History || dir.ResourceType == "" {
		return syscall.EACCES
	}

	id, ext := splitRecordName(newName)
	if ext != "json" {
		return syscall.EACCES
	}

	buf := tf.buf
	if len(buf) > 0 && !fs.offline {
		if putErr := fs.remote.Put(ctx, dir.ResourceType, id, buf); putErr != nil {
			logger.Warn("rename finalize: put failed", "type", dir.ResourceType, "id", id, "err", putErr)
			return syscall.EIO
		}
	}

	now := fs.clock.Now()
	fs.tmp.remove(inode)

	rf := node.NewRecordFile(inode, newName, dir.ResourceType, id, buf, now)
	fs.idx.insert(rf)
	fs.idx.link(newParent, rf.Inode())
	fs.ensureHistoryDir(dir, id, now)

	return nil
}

// splitRecordName splits "<id>.<ext>" the way a resource-type directory's
// filenames are always shaped.
func splitRecordName(name string) (id, ext string) {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[:i], name[i+1:]
		}
	}
	return name, ""
}
