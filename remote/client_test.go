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

package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_Capabilities(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/metadata", r.URL.Path)
		fmt.Fprint(w, `{
			"resourceType": "CapabilityStatement",
			"rest": [{"mode": "server", "resource": [{"type": "Patient"}, {"type": "Observation"}]}]
		}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	types, err := c.Capabilities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Patient", "Observation"}, types)
}

func TestHTTPClient_CapabilitiesHardError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	_, err := c.Capabilities(context.Background())
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 500, se.StatusCode)
}

func TestHTTPClient_ListFollowsNextLinks(t *testing.T) {
	var calls int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("_page")
		atomic.AddInt32(&calls, 1)
		switch page {
		case "1":
			fmt.Fprintf(w, `{"resourceType":"Bundle","entry":[{"resource":{"id":"p1"}}],
				"link":[{"relation":"next","url":"%s/Patient?_count=100&_page=2"}]}`, srv.URL)
		case "2":
			fmt.Fprint(w, `{"resourceType":"Bundle","entry":[{"resource":{"id":"p2"}}],"link":[]}`)
		default:
			t.Fatalf("unexpected page %q", page)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	records, err := c.List(context.Background(), "Patient")
	require.NoError(t, err)
	require.Len(t, records, 2)

	ids := []string{idOf(t, records[0]), idOf(t, records[1])}
	assert.ElementsMatch(t, []string{"p1", "p2"}, ids)
}

func TestHTTPClient_ListFetchesLastLinkedPagesInParallel(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("_page"))
		if page == 1 {
			fmt.Fprintf(w, `{"resourceType":"Bundle","entry":[{"resource":{"id":"p1"}}],
				"link":[{"relation":"last","url":"%s/Patient?_count=100&_page=3"}]}`, srv.URL)
			return
		}
		fmt.Fprintf(w, `{"resourceType":"Bundle","entry":[{"resource":{"id":"p%d"}}],"link":[]}`, page)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	records, err := c.List(context.Background(), "Patient")
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func idOf(t *testing.T, r []byte) string {
	t.Helper()
	id, err := ResourceID(r)
	require.NoError(t, err)
	return id
}

func TestHTTPClient_GetNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	_, err := c.Get(context.Background(), "Patient", "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestHTTPClient_PutSendsBody(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	err := c.Put(context.Background(), "Patient", "p1", []byte(`{"id":"p1"}`))
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/Patient/p1", gotPath)
}

func TestHTTPClient_DeleteTreatsNotFoundAsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	err := c.Delete(context.Background(), "Patient", "p1")
	assert.NoError(t, err)
}

func TestHTTPClient_DeleteSurfacesOtherErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	err := c.Delete(context.Background(), "Patient", "p1")
	require.Error(t, err)
}

func TestHTTPClient_HistoryExtractsVersionID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Patient/p1/_history", r.URL.Path)
		fmt.Fprint(w, `{"resourceType":"Bundle","entry":[
			{"resource":{"id":"p1","meta":{"versionId":"2"}}},
			{"resource":{"id":"p1","meta":{"versionId":"1"}}},
			{"resource":{"id":"p1"}}
		]}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	versions, err := c.History(context.Background(), "Patient", "p1")
	require.NoError(t, err)
	// the entry with no meta.versionId is skipped, not fatal.
	require.Len(t, versions, 2)
	assert.Equal(t, "2", versions[0].ID)
	assert.Equal(t, "1", versions[1].ID)
}

func TestHTTPClient_SearchGroupsByResourceType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "gender=female", r.URL.RawQuery)
		fmt.Fprint(w, `{"resourceType":"Bundle","entry":[
			{"resource":{"resourceType":"Patient","id":"p1"}},
			{"resource":{"resourceType":"Observation","id":"o1"}}
		]}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	grouped, err := c.Search(context.Background(), "Patient", "gender=female")
	require.NoError(t, err)
	assert.Len(t, grouped["Patient"], 1)
	assert.Len(t, grouped["Observation"], 1)
	assert.Equal(t, []string{"Observation", "Patient"}, SortedResourceTypes(grouped))
}

func TestHTTPClient_OpNegotiatesFormatAndPrettyPrintsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ViewDefinition/vd1/$run", r.URL.Path)
		assert.Equal(t, "application/fhir+json", r.Header.Get("Accept"))
		fmt.Fprint(w, `{"a":1,"b":2}`)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	out, err := c.Op(context.Background(), "ViewDefinition", "vd1", "run", "json")
	require.NoError(t, err)
	assert.Contains(t, string(out), "\n") // pretty-printed
}

func TestHTTPClient_OpRequestsCSVAccept(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/csv", r.Header.Get("Accept"))
		fmt.Fprint(w, "a,b\n1,2\n")
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	out, err := c.Op(context.Background(), "ViewDefinition", "vd1", "run", "csv")
	require.NoError(t, err)
	assert.Equal(t, "a,b\n1,2\n", string(out))
}

func TestHTTPClient_ListCapsAtMaxRecords(t *testing.T) {
	// 11 pages of 100 entries behind a "last" link: the caller sees at most
	// 1000 records.
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("_page"))
		entries := make([]string, 0, pageSize)
		for i := 0; i < pageSize; i++ {
			entries = append(entries, fmt.Sprintf(`{"resource":{"id":"p%d-%d"}}`, page, i))
		}
		link := ""
		if page == 1 {
			link = fmt.Sprintf(`{"relation":"last","url":"%s/Patient?_count=100&_page=11"}`, srv.URL)
		}
		fmt.Fprintf(w, `{"resourceType":"Bundle","entry":[%s],"link":[%s]}`,
			strings.Join(entries, ","), link)
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, nil)
	records, err := c.List(context.Background(), "Patient")
	require.NoError(t, err)
	assert.Len(t, records, maxRecords)
}
