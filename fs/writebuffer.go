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
	"github.com/jacobsa/fuse/fuseops"
)

// mutableContent is a per-inode scratch buffer for partial writes and
// truncation: lazily primed from the node's current content on the first
// write, mutated in place until flush publishes it. The initial content is
// already fully in memory (a RecordFile's cached bytes or an empty slice
// for a new file), so there is no spill-to-disk path.
type mutableContent struct {
	buf []byte
}

// newMutableContent lazily primes a buffer from initial, copying so that
// mutations never alias the node's last-known-good content until flush
// commits them back.
func newMutableContent(initial []byte) *mutableContent {
	buf := make([]byte, len(initial))
	copy(buf, initial)
	return &mutableContent{buf: buf}
}

// WriteAt splices data into [offset, offset+len(data)), growing the buffer
// as needed.
func (mc *mutableContent) WriteAt(data []byte, offset int64) int {
	end := offset + int64(len(data))
	if end > int64(len(mc.buf)) {
		grown := make([]byte, end)
		copy(grown, mc.buf)
		mc.buf = grown
	}
	copy(mc.buf[offset:end], data)
	return len(data)
}

// Truncate resizes the buffer to n bytes, zero-extending if n is larger
// than the current size.
func (mc *mutableContent) Truncate(n int64) {
	switch {
	case n == int64(len(mc.buf)):
		return
	case n < int64(len(mc.buf)):
		mc.buf = mc.buf[:n]
	default:
		grown := make([]byte, n)
		copy(grown, mc.buf)
		mc.buf = grown
	}
}

// ReadAt returns the clamped slice [offset, offset+length) of the buffer's
// current contents, reflecting writes not yet flushed.
func (mc *mutableContent) ReadAt(offset int64, length int) []byte {
	if offset < 0 || offset >= int64(len(mc.buf)) {
		if offset == 0 {
			return []byte{}
		}
		return nil
	}
	end := offset + int64(length)
	if end > int64(len(mc.buf)) {
		end = int64(len(mc.buf))
	}
	return mc.buf[offset:end]
}

// Bytes returns the buffer's full current content, used by flush when
// publishing to the remote.
func (mc *mutableContent) Bytes() []byte { return mc.buf }

// writeBuffers holds one mutableContent per inode currently being written.
type writeBuffers struct {
	byInode map[fuseops.InodeID]*mutableContent
}

func newWriteBuffers() *writeBuffers {
	return &writeBuffers{byInode: make(map[fuseops.InodeID]*mutableContent)}
}

// getOrCreate returns the existing buffer for inode, or primes one from
// initial if this is the first write since open/create.
func (w *writeBuffers) getOrCreate(inode fuseops.InodeID, initial []byte) *mutableContent {
	mc, ok := w.byInode[inode]
	if !ok {
		mc = newMutableContent(initial)
		w.byInode[inode] = mc
	}
	return mc
}

func (w *writeBuffers) get(inode fuseops.InodeID) (*mutableContent, bool) {
	mc, ok := w.byInode[inode]
	return mc, ok
}

// release drops inode's buffer without any remote traffic.
func (w *writeBuffers) release(inode fuseops.InodeID) {
	delete(w.byInode, inode)
}
