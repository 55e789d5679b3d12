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

// Package fs is the virtual filesystem engine: the inode-centric object
// graph that maps POSIX filesystem operations onto a remote
// clinical-records HTTP server, reconciling a stateful kernel VFS
// interface with a stateless remote store.
package fs

import (
	"context"
	"fmt"
	"syscall"
	"time"

	"github.com/HealthSamurai/fhir-fuse/clock"
	"github.com/HealthSamurai/fhir-fuse/fs/node"
	"github.com/HealthSamurai/fhir-fuse/internal/logger"
	"github.com/HealthSamurai/fhir-fuse/internal/metrics"
	"github.com/HealthSamurai/fhir-fuse/remote"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/jacobsa/syncutil"
)

// recognizedOperations lists the (resourceType, operationName) pairs this
// mount registers an OperationRoot for. Only ViewDefinition/$run is wired
// up today; OperationRoot stays keyed generically so a second entry could
// be added here without further changes.
var recognizedOperations = []struct {
	ResourceType string
	Operation    string
}{
	{ResourceType: "ViewDefinition", Operation: "run"},
}

const rootReadme = `This mount projects a remote clinical-records server as a filesystem.

Each advertised resource type appears as a top-level directory containing
one JSON file per record, a "_search" directory for ad hoc queries, and (for
types that support it) a "$<operation>" directory for typed operations.
`

const searchReadme = `Create a subdirectory here named after a raw query string
(e.g. "gender=female") to run a search. Its contents are populated from the
server's response, grouped by resource type.
`

// Config configures a new FileSystem: the mount surface boiled down to
// what the core needs once mount-option and transport concerns are
// handled by the caller.
type Config struct {
	Clock  clock.Clock
	Remote remote.Client

	// Offline, when true, skips capability discovery and every remote call:
	// only the static root files are exposed.
	Offline bool
}

// FileSystem implements fuseutil.FileSystem, translating kernel requests
// into index reads and remote calls. The single InvariantMutex below
// serializes every handler, so it doubles as a cooperative
// single-threaded event loop: no handler runs concurrently with another,
// and the index needs no locking of its own.
type FileSystem struct {
	fuseutil.NotImplementedFileSystem

	clock   clock.Clock
	remote  remote.Client
	offline bool

	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	alloc *inodeAllocator
	// GUARDED_BY(mu)
	idx *index
	// GUARDED_BY(mu)
	caches *sessionCaches
	// GUARDED_BY(mu)
	writeBufs *writeBuffers
	// GUARDED_BY(mu)
	tmp *tempFiles

	// GUARDED_BY(mu)
	nextHandle fuseops.HandleID
	// GUARDED_BY(mu)
	dirHandles map[fuseops.HandleID]*dirHandle
	// fileHandles maps an open file handle back to its inode, so release
	// can drop the right write buffer.
	// GUARDED_BY(mu)
	fileHandles map[fuseops.HandleID]fuseops.InodeID

	// resourceTypeDirInode maps a resource type name to its directory
	// inode, for fast dispatch in lookups that already know the type.
	// GUARDED_BY(mu)
	resourceTypeDirInode map[string]fuseops.InodeID
	// GUARDED_BY(mu)
	searchRootInode map[string]fuseops.InodeID
	// GUARDED_BY(mu)
	opRootInode map[string]fuseops.InodeID // keyed by resourceType+"/$"+op

	// createdThisSession marks inodes created by CreateFile; the mark is
	// cleared on release and no handler's behavior depends on it.
	// GUARDED_BY(mu)
	createdThisSession map[fuseops.InodeID]bool
}

var _ fuseutil.FileSystem = (*FileSystem)(nil)

// New builds a FileSystem per cfg: root, static files, and (unless
// cfg.Offline) one Directory + one SearchRoot per advertised resource
// type, plus any recognized OperationRoots.
func New(cfg Config) (*FileSystem, error) {
	now := cfg.Clock.Now()

	fs := &FileSystem{
		clock:                cfg.Clock,
		remote:               cfg.Remote,
		offline:              cfg.Offline,
		alloc:                newInodeAllocator(),
		idx:                  newIndex(),
		caches:               newSessionCaches(cfg.Clock.Now),
		writeBufs:            newWriteBuffers(),
		tmp:                  newTempFiles(),
		dirHandles:           make(map[fuseops.HandleID]*dirHandle),
		fileHandles:          make(map[fuseops.HandleID]fuseops.InodeID),
		resourceTypeDirInode: make(map[string]fuseops.InodeID),
		searchRootInode:      make(map[string]fuseops.InodeID),
		opRootInode:          make(map[string]fuseops.InodeID),
		createdThisSession:   make(map[fuseops.InodeID]bool),
	}

	root := node.NewDirectory(fuseops.RootInodeID, "", now)
	fs.idx.insert(root)

	marker := node.NewTextFile(fs.alloc.Allocate(), ".metadata_never_index", nil, now)
	fs.idx.insert(marker)
	fs.idx.link(fuseops.RootInodeID, marker.Inode())

	readme := node.NewTextFile(fs.alloc.Allocate(), "README.md", []byte(rootReadme), now)
	fs.idx.insert(readme)
	fs.idx.link(fuseops.RootInodeID, readme.Inode())

	var resourceTypes []string
	if !cfg.Offline {
		types, err := cfg.Remote.Capabilities(context.Background())
		if err != nil {
			logger.Warn("capability discovery failed, mounting with no resource types", "err", err)
		} else {
			resourceTypes = types
		}
	}

	for _, rt := range resourceTypes {
		fs.mountResourceType(rt, now)
	}

	fs.mu = syncutil.NewInvariantMutex(fs.checkInvariants)

	return fs, nil
}

// mountResourceType registers a resource-type directory, its _search root
// (with embedded help file), and any OperationRoots recognized for rt.
func (fs *FileSystem) mountResourceType(rt string, now time.Time) {
	dir := node.NewResourceTypeDirectory(fs.alloc.Allocate(), rt, now)
	fs.idx.insert(dir)
	fs.idx.link(fuseops.RootInodeID, dir.Inode())
	fs.resourceTypeDirInode[rt] = dir.Inode()

	search := node.NewSearchRoot(fs.alloc.Allocate(), rt, now)
	fs.idx.insert(search)
	fs.idx.link(dir.Inode(), search.Inode())
	fs.searchRootInode[rt] = search.Inode()

	help := node.NewTextFile(fs.alloc.Allocate(), "README.md", []byte(searchReadme), now)
	fs.idx.insert(help)
	fs.idx.link(search.Inode(), help.Inode())

	for _, op := range recognizedOperations {
		if op.ResourceType != rt {
			continue
		}
		opRoot := node.NewOperationRoot(fs.alloc.Allocate(), rt, op.Operation, now)
		fs.idx.insert(opRoot)
		fs.idx.link(dir.Inode(), opRoot.Inode())
		fs.opRootInode[rt+"/$"+op.Operation] = opRoot.Inode()
	}
}

// checkInvariants enforces the structural rules that are cheap to verify
// on every lock/unlock: every non-root inode has a parent entry, and the
// per-type index lists exactly the matching record files.
func (fs *FileSystem) checkInvariants() {
	for inode := range fs.idx.byInode {
		if inode == fuseops.RootInodeID {
			continue
		}
		found := false
		for _, kids := range fs.idx.children {
			for _, k := range kids {
				if k == inode {
					found = true
				}
			}
		}
		if !found {
			panic(fmt.Sprintf("inode %d has no parent entry", inode))
		}
	}

	for rt, ids := range fs.idx.byType {
		for _, id := range ids {
			n, ok := fs.idx.byInode[id]
			if !ok {
				panic(fmt.Sprintf("dangling record-type index entry for %s: inode %d", rt, id))
			}
			rf, ok := n.(*node.RecordFile)
			if !ok || rf.ResourceType != rt {
				panic(fmt.Sprintf("record-type index entry %d is not a RecordFile of type %s", id, rt))
			}
		}
	}
}

// Destroy implements fuseutil.FileSystem. There is no persisted state to
// flush: the whole tree is reconstructed on the next mount.
func (fs *FileSystem) Destroy() {}

// GetInodeAttributes implements fuseutil.FileSystem.
func (fs *FileSystem) GetInodeAttributes(ctx context.Context, op *fuseops.GetInodeAttributesOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	n, ok := fs.idx.get(op.Inode)
	if !ok {
		if tf, ok := fs.tmp.get(op.Inode); ok {
			op.Attributes = tempFileAttrs(tf)
			op.AttributesExpiration = fs.clock.Now().Add(node.AttrCacheTTL)
			return nil
		}
		return syscall.ENOENT
	}

	op.Attributes = n.Attrs()
	op.AttributesExpiration = fs.clock.Now().Add(node.AttrCacheTTL)
	return nil
}

// SetInodeAttributes implements fuseutil.FileSystem: a size change
// truncates any live write buffer. A requested mode change is accepted
// but not applied; the node keeps its fixed permissions.
func (fs *FileSystem) SetInodeAttributes(ctx context.Context, op *fuseops.SetInodeAttributesOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if op.Size != nil {
		if mc, ok := fs.writeBufs.get(op.Inode); ok {
			mc.Truncate(int64(*op.Size))
		} else if tf, ok := fs.tmp.get(op.Inode); ok {
			tf.Truncate(int64(*op.Size))
		} else if n, ok := fs.idx.get(op.Inode); ok {
			mc := fs.writeBufs.getOrCreate(op.Inode, n.ReadAt(0, int(n.Size())))
			mc.Truncate(int64(*op.Size))
		}
	}

	n, ok := fs.idx.get(op.Inode)
	if !ok {
		if tf, ok := fs.tmp.get(op.Inode); ok {
			op.Attributes = tempFileAttrs(tf)
			op.AttributesExpiration = fs.clock.Now().Add(node.AttrCacheTTL)
			return nil
		}
		return syscall.ENOENT
	}

	op.Attributes = n.Attrs()
	op.AttributesExpiration = fs.clock.Now().Add(node.AttrCacheTTL)
	return nil
}

// ForgetInode implements fuseutil.FileSystem. Node lifetime in this
// filesystem is governed by TTL refresh and explicit unlink, not by
// kernel lookup counts, so there is nothing to do here beyond
// acknowledging the request.
func (fs *FileSystem) ForgetInode(ctx context.Context, op *fuseops.ForgetInodeOp) error { return nil }

// StatFS implements fuseutil.FileSystem: reports a synthetic multi-GB
// capacity so host-OS tools that require non-zero free space permit
// drag-and-drop.
func (fs *FileSystem) StatFS(ctx context.Context, op *fuseops.StatFSOp) error {
	const blockSize = 4096
	const totalBlocks = 1 << 24 // 64 GiB
	op.BlockSize = blockSize
	op.Blocks = totalBlocks
	op.BlocksFree = totalBlocks
	op.BlocksAvailable = totalBlocks
	op.IoSize = blockSize
	return nil
}

func tempFileAttrs(tf *tempFile) fuseops.InodeAttributes {
	return fuseops.InodeAttributes{
		Size:  uint64(len(tf.buf)),
		Nlink: 1,
		Mode:  0o644,
	}
}

// observeOp records a FUSE operation outcome for the metrics facade and
// keeps the live-inode gauge current. Callers hold fs.mu.
func (fs *FileSystem) observeOp(opName string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.FuseOps.WithLabelValues(opName, result).Inc()
	metrics.InodeCount.Set(float64(fs.idx.count()))
}
