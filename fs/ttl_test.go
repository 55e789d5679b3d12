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
	"testing"
	"time"

	"github.com/HealthSamurai/fhir-fuse/clock"
	"github.com/HealthSamurai/fhir-fuse/remote"
	"github.com/HealthSamurai/fhir-fuse/remote/model"
	"github.com/jacobsa/fuse/fuseops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The session caches judge freshness by the mount's injected clock, so
// these tests drive TTL expiry by advancing a SimulatedClock instead of
// sleeping past the real 5s window.

func newTestFSWithClock(t *testing.T, rem *fakeRemote) (*FileSystem, *clock.SimulatedClock) {
	t.Helper()
	clk := clock.NewSimulatedClock(time.Unix(1000, 0))
	f, err := New(Config{Clock: clk, Remote: rem})
	require.NoError(t, err)
	return f, clk
}

func TestCollectionRefreshHonorsTTL(t *testing.T) {
	rem := newFakeRemote("Patient")
	rem.putRecord("Patient", "p1", model.Resource(`{"id":"p1"}`))

	f, clk := newTestFSWithClock(t, rem)
	dirOp := lookup(t, f, fuseops.RootInodeID, "Patient")

	// the first lookup inside the directory loads the collection.
	lookup(t, f, dirOp.Entry.Child, "p1.json")
	require.Equal(t, 1, rem.listCalls)

	// within the window: the in-memory snapshot is reused.
	clk.AdvanceTime(4 * time.Second)
	lookup(t, f, dirOp.Entry.Child, "p1.json")
	assert.Equal(t, 1, rem.listCalls)

	// past the window: the next read path refreshes.
	clk.AdvanceTime(2 * time.Second)
	lookup(t, f, dirOp.Entry.Child, "p1.json")
	assert.Equal(t, 2, rem.listCalls)
}

func TestHistoryLoadHonorsTTL(t *testing.T) {
	rem := newFakeRemote("Patient")
	rem.putRecord("Patient", "p1", model.Resource(`{"id":"p1"}`))
	rem.setHistory("Patient", "p1", []remote.Version{
		{ID: "2", Body: model.Resource(`{"id":"p1","meta":{"versionId":"2"}}`)},
		{ID: "1", Body: model.Resource(`{"id":"p1","meta":{"versionId":"1"}}`)},
	})

	f, clk := newTestFSWithClock(t, rem)
	dirOp := lookup(t, f, fuseops.RootInodeID, "Patient")
	histOp := lookup(t, f, dirOp.Entry.Child, ".p1")

	lookup(t, f, histOp.Entry.Child, "2.json")
	require.Equal(t, 1, rem.historyCalls)

	clk.AdvanceTime(time.Second)
	lookup(t, f, histOp.Entry.Child, "1.json")
	assert.Equal(t, 1, rem.historyCalls, "a fresh history directory must not re-fetch")

	clk.AdvanceTime(6 * time.Second)
	lookup(t, f, histOp.Entry.Child, "2.json")
	assert.Equal(t, 2, rem.historyCalls)
}

func TestSearchQueryRefreshHonorsTTL(t *testing.T) {
	rem := newFakeRemote("Patient")
	rem.setSearch("gender=female", map[string][]model.Resource{
		"Patient": {model.Resource(`{"id":"p9"}`)},
	})

	f, clk := newTestFSWithClock(t, rem)
	patientOp := lookup(t, f, fuseops.RootInodeID, "Patient")
	searchOp := lookup(t, f, patientOp.Entry.Child, "_search")

	mkdirOp := &fuseops.MkDirOp{Parent: searchOp.Entry.Child, Name: "gender=female"}
	require.NoError(t, f.MkDir(context.Background(), mkdirOp))
	require.Equal(t, 1, rem.searchCalls)

	clk.AdvanceTime(2 * time.Second)
	lookup(t, f, mkdirOp.Entry.Child, "Patient")
	assert.Equal(t, 1, rem.searchCalls)

	clk.AdvanceTime(4 * time.Second)
	lookup(t, f, mkdirOp.Entry.Child, "Patient")
	assert.Equal(t, 2, rem.searchCalls)
}

// A failed refresh leaves the previous snapshot visible, does not bump
// the cache timestamp, and the next request past the failure retries the
// remote.
func TestRefreshFailureKeepsSnapshotAndRetries(t *testing.T) {
	rem := newFakeRemote("Patient")
	rem.putRecord("Patient", "p1", model.Resource(`{"id":"p1"}`))

	f, clk := newTestFSWithClock(t, rem)
	dirOp := lookup(t, f, fuseops.RootInodeID, "Patient")
	lookup(t, f, dirOp.Entry.Child, "p1.json")
	require.Equal(t, 1, rem.listCalls)

	// expire the snapshot, then make the remote fail.
	clk.AdvanceTime(6 * time.Second)
	rem.listErr["Patient"] = assert.AnError

	// the stale record stays visible despite the failed refresh.
	op := lookup(t, f, dirOp.Entry.Child, "p1.json")
	assert.NotZero(t, op.Entry.Child)
	assert.Equal(t, 2, rem.listCalls, "an expired snapshot must be retried")

	// once the remote recovers, the very next read refreshes again: the
	// failed attempt must not have marked the collection fresh.
	delete(rem.listErr, "Patient")
	lookup(t, f, dirOp.Entry.Child, "p1.json")
	assert.Equal(t, 3, rem.listCalls)
}
