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
	"strings"

	"github.com/jacobsa/fuse/fuseops"
)

// knownTempSentinels are host-OS scratch filenames that don't otherwise
// match the dot/tilde patterns. "4913" is vim's write-permission probe
// file.
var knownTempSentinels = map[string]bool{
	"4913": true,
}

// isTempFileName reports whether name matches the host-OS scratch pattern:
// a leading dot, a trailing tilde, or a known sentinel. Editor swap files
// (".foo.json.swp") are covered by the leading-dot rule.
func isTempFileName(name string) bool {
	if knownTempSentinels[name] {
		return true
	}
	if strings.HasPrefix(name, ".") {
		return true
	}
	if strings.HasSuffix(name, "~") {
		return true
	}
	return false
}

// tempFile is an in-process-only file: it gets a real inode allocation and
// satisfies read/write/truncate/unlink, but never reaches the remote
// client.
type tempFile struct {
	inodeID fuseops.InodeID
	parent  fuseops.InodeID
	name    string
	buf     []byte
}

// tempFiles holds the in-process scratch files, keyed by inode.
type tempFiles struct {
	byInode map[fuseops.InodeID]*tempFile
}

func newTempFiles() *tempFiles {
	return &tempFiles{byInode: make(map[fuseops.InodeID]*tempFile)}
}

func (t *tempFiles) create(inode, parent fuseops.InodeID, name string) *tempFile {
	tf := &tempFile{inodeID: inode, parent: parent, name: name}
	t.byInode[inode] = tf
	return tf
}

func (t *tempFiles) get(inode fuseops.InodeID) (*tempFile, bool) {
	tf, ok := t.byInode[inode]
	return tf, ok
}

func (t *tempFiles) findChild(parent fuseops.InodeID, name string) (fuseops.InodeID, *tempFile, bool) {
	for inode, tf := range t.byInode {
		if tf.parent == parent && tf.name == name {
			return inode, tf, true
		}
	}
	return 0, nil, false
}

func (t *tempFiles) remove(inode fuseops.InodeID) {
	delete(t.byInode, inode)
}

func (tf *tempFile) WriteAt(data []byte, offset int64) int {
	end := offset + int64(len(data))
	if end > int64(len(tf.buf)) {
		grown := make([]byte, end)
		copy(grown, tf.buf)
		tf.buf = grown
	}
	copy(tf.buf[offset:end], data)
	return len(data)
}

func (tf *tempFile) Truncate(n int64) {
	switch {
	case n == int64(len(tf.buf)):
	case n < int64(len(tf.buf)):
		tf.buf = tf.buf[:n]
	default:
		grown := make([]byte, n)
		copy(grown, tf.buf)
		tf.buf = grown
	}
}

func (tf *tempFile) ReadAt(offset int64, length int) []byte {
	if offset < 0 || offset >= int64(len(tf.buf)) {
		if offset == 0 {
			return []byte{}
		}
		return nil
	}
	end := offset + int64(length)
	if end > int64(len(tf.buf)) {
		end = int64(len(tf.buf))
	}
	return tf.buf[offset:end]
}
