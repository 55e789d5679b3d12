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
	"os"
	"time"

	"github.com/jacobsa/fuse/fuseops"
)

// OperationRoot is a per-type "$<op>" virtual directory whose children are
// materialized on lookup by executing the operation.
type OperationRoot struct {
	base
	ResourceType  string
	OperationName string
}

func NewOperationRoot(inode fuseops.InodeID, resourceType, operationName string, now time.Time) *OperationRoot {
	return &OperationRoot{
		base:          newBase(inode, "$"+operationName, true, 0o755, now),
		ResourceType:  resourceType,
		OperationName: operationName,
	}
}

var _ Node = (*OperationRoot)(nil)

func (o *OperationRoot) Class() Class             { return ClassOperationRoot }
func (o *OperationRoot) Size() uint64             { return 0 }
func (o *OperationRoot) ReadAt(int64, int) []byte { return nil }
func (o *OperationRoot) Attrs() fuseops.InodeAttributes {
	a := o.base.attrs(0, 1)
	a.Mode = os.ModeDir | o.perm
	return a
}

// ExecState is the OperationExecution state machine: virtual
// (known by name only) -> executing -> cached. There is no automatic
// invalidation once cached.
type ExecState int

const (
	ExecVirtual ExecState = iota
	ExecExecuting
	ExecCached
)

// OperationExecution is the file an OperationRoot lookup produces for a
// well-formed "<id>.<format>" name: a lazily executed, then cached, result
// of one typed operation invocation.
type OperationExecution struct {
	base
	ResourceType  string
	RecordID      string
	OperationName string
	Format        string // "json" or "csv"

	State  ExecState
	result []byte
}

// NewOperationExecution constructs a virtual (not-yet-executed) execution
// node. Its size is zero until State transitions to ExecCached.
func NewOperationExecution(inode fuseops.InodeID, name, resourceType, recordID, operationName, format string, now time.Time) *OperationExecution {
	return &OperationExecution{
		base:          newBase(inode, name, false, 0o444, now),
		ResourceType:  resourceType,
		RecordID:      recordID,
		OperationName: operationName,
		Format:        format,
		State:         ExecVirtual,
	}
}

var _ Node = (*OperationExecution)(nil)

func (e *OperationExecution) Class() Class { return ClassOperationExecution }

func (e *OperationExecution) Size() uint64 {
	if e.State != ExecCached {
		return 0
	}
	return uint64(len(e.result))
}

func (e *OperationExecution) Attrs() fuseops.InodeAttributes {
	return e.base.attrs(e.Size(), 1)
}

func (e *OperationExecution) ReadAt(offset int64, length int) []byte {
	if e.State != ExecCached {
		return nil
	}
	return clampRead(e.result, offset, length)
}

// Result returns the cached bytes and whether execution has completed.
func (e *OperationExecution) Result() ([]byte, bool) {
	return e.result, e.State == ExecCached
}

// BeginExecuting transitions virtual -> executing. Callers must hold
// whatever lock guards the index; this type has no internal locking.
func (e *OperationExecution) BeginExecuting() { e.State = ExecExecuting }

// Reset returns a failed execution to the virtual state, so the next
// lookup or read retries it.
func (e *OperationExecution) Reset() { e.State = ExecVirtual }

// Cache stores the executed result and transitions to ExecCached.
func (e *OperationExecution) Cache(result []byte, now time.Time) {
	e.result = result
	e.State = ExecCached
	e.Touch(now)
}
