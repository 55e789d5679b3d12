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
	"strings"

	"github.com/HealthSamurai/fhir-fuse/fs/node"
	"github.com/HealthSamurai/fhir-fuse/internal/logger"
)

// maybeExecuteOperation handles a lookup inside a "$<op>" directory: if
// name parses as "<id>.<format>" with format in {json,csv} and no child
// with that name exists yet, synchronously execute the operation, cache
// the result, and link a new OperationExecution node.
func (fs *FileSystem) maybeExecuteOperation(root *node.OperationRoot, name string) {
	if _, ok := fs.idx.findChild(root.Inode(), name); ok {
		return
	}

	recordID, format, ok := parseExecutionName(name)
	if !ok {
		return
	}

	now := fs.clock.Now()
	exec := node.NewOperationExecution(fs.alloc.Allocate(), name, root.ResourceType, recordID, root.OperationName, format, now)
	fs.idx.insert(exec)
	fs.idx.link(root.Inode(), exec.Inode())

	fs.executeOperation(exec)
}

// parseExecutionName splits "<id>.<format>" into its parts, accepting only
// the two recognized formats.
func parseExecutionName(name string) (id, format string, ok bool) {
	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 || dot == len(name)-1 {
		return "", "", false
	}

	format = name[dot+1:]
	if format != "json" && format != "csv" {
		return "", "", false
	}

	return name[:dot], format, true
}

// executeOperation drives the OperationExecution state machine
// virtual -> executing -> cached. It is idempotent: a node already in
// ExecCached is left untouched. A failed execution is reset to virtual so
// the next lookup/read retries rather than pinning an empty result for the
// life of the mount.
func (fs *FileSystem) executeOperation(exec *node.OperationExecution) {
	if exec.State == node.ExecCached {
		return
	}

	exec.BeginExecuting()

	if fs.offline {
		logger.Warn("operation execution skipped: offline mount", "op", exec.OperationName, "id", exec.RecordID)
		exec.Reset()
		return
	}

	result, err := fs.remote.Op(context.Background(), exec.ResourceType, exec.RecordID, exec.OperationName, exec.Format)
	if err != nil {
		logger.Warn("operation execution failed", "op", exec.OperationName, "id", exec.RecordID, "format", exec.Format, "err", err)
		exec.Reset()
		return
	}

	exec.Cache(result, fs.clock.Now())
}
