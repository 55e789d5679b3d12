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

// Package node models the filesystem's entries: a closed, tagged-variant set of
// the nine kinds of filesystem entry this mount ever presents. Each variant
// is a plain struct implementing the Node interface; dispatch is by a type
// switch, never by an open interface hierarchy, so every kernel handler
// can enumerate behavior exhaustively.
package node

import (
	"os"
	"time"

	"github.com/jacobsa/fuse/fuseops"
)

// Class identifies which of the nine tagged variants a Node is. Kept as a
// distinct type from fuseops so the switch in fs stays exhaustive and
// doesn't leak FUSE concepts into this package.
type Class int

const (
	ClassDirectory Class = iota
	ClassTextFile
	ClassRecordFile
	ClassVersionFile
	ClassSearchRoot
	ClassSearchQuery
	ClassSearchResultGroup
	ClassOperationRoot
	ClassOperationExecution
)

func (c Class) String() string {
	switch c {
	case ClassDirectory:
		return "directory"
	case ClassTextFile:
		return "text_file"
	case ClassRecordFile:
		return "record_file"
	case ClassVersionFile:
		return "version_file"
	case ClassSearchRoot:
		return "search_root"
	case ClassSearchQuery:
		return "search_query"
	case ClassSearchResultGroup:
		return "search_result_group"
	case ClassOperationRoot:
		return "operation_root"
	case ClassOperationExecution:
		return "operation_execution"
	default:
		return "unknown"
	}
}

// AttrCacheTTL is the kernel attribute-cache lifetime applied to every
// node: 30s, uniformly, including OperationExecution.
const AttrCacheTTL = 30 * time.Second

// Node is the common surface every variant exposes to the filesystem core.
// Content-bearing operations (ReadAt) are only meaningful for regular
// files; directories implement them as no-ops returning nil.
type Node interface {
	Inode() fuseops.InodeID
	DisplayName() string
	SetDisplayName(string)
	IsDir() bool
	Perm() os.FileMode
	Size() uint64
	CreatedAt() time.Time
	ModifiedAt() time.Time
	Touch(time.Time)
	Class() Class

	// Attrs produces POSIX attributes for this node. The attribute-cache
	// expiration is not part of them; fs adds AttrCacheTTL when replying.
	Attrs() fuseops.InodeAttributes

	// ReadAt returns the clamped byte slice [offset, offset+len) for regular
	// files; directories return nil.
	ReadAt(offset int64, length int) []byte
}

// base carries the attributes shared by every variant. It is
// embedded, never used standalone.
type base struct {
	inode   fuseops.InodeID
	name    string
	dir     bool
	perm    os.FileMode
	created time.Time
	updated time.Time
}

func newBase(inode fuseops.InodeID, name string, dir bool, perm os.FileMode, now time.Time) base {
	return base{inode: inode, name: name, dir: dir, perm: perm, created: now, updated: now}
}

func (b *base) Inode() fuseops.InodeID  { return b.inode }
func (b *base) DisplayName() string     { return b.name }
func (b *base) SetDisplayName(n string) { b.name = n }
func (b *base) IsDir() bool             { return b.dir }
func (b *base) Perm() os.FileMode       { return b.perm }
func (b *base) CreatedAt() time.Time    { return b.created }
func (b *base) ModifiedAt() time.Time   { return b.updated }
func (b *base) Touch(t time.Time)       { b.updated = t }

func (b *base) attrs(size uint64, nlink uint32) fuseops.InodeAttributes {
	mode := b.perm
	if b.dir {
		mode |= os.ModeDir
	}
	return fuseops.InodeAttributes{
		Size:   size,
		Nlink:  nlink,
		Mode:   mode,
		Atime:  b.updated,
		Mtime:  b.updated,
		Ctime:  b.updated,
		Crtime: b.created,
		Uid:    uint32(os.Getuid()),
		Gid:    uint32(os.Getgid()),
	}
}

// clampRead produces the [offset, offset+length) slice of content, clamped
// to content bounds.
func clampRead(content []byte, offset int64, length int) []byte {
	if offset < 0 || offset >= int64(len(content)) {
		return nil
	}
	end := offset + int64(length)
	if end > int64(len(content)) {
		end = int64(len(content))
	}
	return content[offset:end]
}
