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

	"github.com/jacobsa/fuse/fuseops"
)

// GetXattr implements fuseutil.FileSystem: no node in
// this mount carries extended attributes, so every name misses.
func (fs *FileSystem) GetXattr(ctx context.Context, op *fuseops.GetXattrOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return syscall.ENODATA
}

// ListXattr implements fuseutil.FileSystem: always empty.
func (fs *FileSystem) ListXattr(ctx context.Context, op *fuseops.ListXattrOp) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	op.BytesRead = 0
	return nil
}

// SetXattr implements fuseutil.FileSystem: a silent
// no-op, so host-OS tools that stamp attributes on save (Finder tags,
// quarantine flags) don't fail the whole copy.
func (fs *FileSystem) SetXattr(ctx context.Context, op *fuseops.SetXattrOp) error {
	return nil
}
