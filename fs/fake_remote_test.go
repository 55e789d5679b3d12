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
	"fmt"
	"sync"

	"github.com/HealthSamurai/fhir-fuse/remote"
	"github.com/HealthSamurai/fhir-fuse/remote/model"
)

// fakeRemote is a hand-rolled remote.Client double: an in-memory map
// driven directly by the test, with call counters so tests can assert
// caching behavior without a real server.
type fakeRemote struct {
	mu sync.Mutex

	types    []string
	capErr   error
	records  map[string]map[string]model.Resource // type -> id -> body
	listErr  map[string]error
	history  map[string]map[string][]remote.Version // type -> id -> versions
	searches map[string]map[string][]model.Resource  // rawQuery -> type -> records
	opResult map[string][]byte                        // "type/id/op.format" -> bytes
	opErr    map[string]error

	putCalls    []string
	deleteCalls []string
	listCalls   int
	historyCalls int
	searchCalls  int
	opCalls      int
}

func newFakeRemote(types ...string) *fakeRemote {
	return &fakeRemote{
		types:    types,
		records:  make(map[string]map[string]model.Resource),
		listErr:  make(map[string]error),
		history:  make(map[string]map[string][]remote.Version),
		searches: make(map[string]map[string][]model.Resource),
		opResult: make(map[string][]byte),
		opErr:    make(map[string]error),
	}
}

func (f *fakeRemote) putRecord(resourceType, id string, body model.Resource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.records[resourceType] == nil {
		f.records[resourceType] = make(map[string]model.Resource)
	}
	f.records[resourceType][id] = body
}

func (f *fakeRemote) setHistory(resourceType, id string, versions []remote.Version) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.history[resourceType] == nil {
		f.history[resourceType] = make(map[string][]remote.Version)
	}
	f.history[resourceType][id] = versions
}

func (f *fakeRemote) setSearch(rawQuery string, grouped map[string][]model.Resource) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches[rawQuery] = grouped
}

func (f *fakeRemote) setOpResult(resourceType, id, opName, format string, body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opResult[resourceType+"/"+id+"/"+opName+"."+format] = body
}

func (f *fakeRemote) Capabilities(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.capErr != nil {
		return nil, f.capErr
	}
	return append([]string(nil), f.types...), nil
}

func (f *fakeRemote) List(ctx context.Context, resourceType string) ([]model.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	if err := f.listErr[resourceType]; err != nil {
		return nil, err
	}
	var out []model.Resource
	for _, body := range f.records[resourceType] {
		out = append(out, body)
	}
	return out, nil
}

func (f *fakeRemote) Get(ctx context.Context, resourceType, id string) (model.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.records[resourceType][id]
	if !ok {
		return nil, &remote.StatusError{Op: "get", StatusCode: 404}
	}
	return body, nil
}

func (f *fakeRemote) Put(ctx context.Context, resourceType, id string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putCalls = append(f.putCalls, resourceType+"/"+id)
	if f.records[resourceType] == nil {
		f.records[resourceType] = make(map[string]model.Resource)
	}
	f.records[resourceType][id] = append([]byte(nil), body...)
	return nil
}

func (f *fakeRemote) Delete(ctx context.Context, resourceType, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleteCalls = append(f.deleteCalls, resourceType+"/"+id)
	if _, ok := f.records[resourceType][id]; !ok {
		return nil // 404 treated as success
	}
	delete(f.records[resourceType], id)
	return nil
}

func (f *fakeRemote) History(ctx context.Context, resourceType, id string) ([]remote.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyCalls++
	return f.history[resourceType][id], nil
}

func (f *fakeRemote) Search(ctx context.Context, resourceType, rawQuery string) (map[string][]model.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	grouped, ok := f.searches[rawQuery]
	if !ok {
		return map[string][]model.Resource{}, nil
	}
	return grouped, nil
}

func (f *fakeRemote) Op(ctx context.Context, resourceType, id, opName, format string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opCalls++
	key := resourceType + "/" + id + "/" + opName + "." + format
	if err := f.opErr[key]; err != nil {
		return nil, err
	}
	body, ok := f.opResult[key]
	if !ok {
		return nil, fmt.Errorf("no fake result registered for %s", key)
	}
	return body, nil
}

var _ remote.Client = (*fakeRemote)(nil)
