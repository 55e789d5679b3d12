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

// Package remote is the typed remote-client facade: the only place in
// this module that speaks HTTP to the clinical-records server. The
// filesystem core (package fs) never imports net/http directly; it only
// calls through the Client interface below, exchanging bytes and parsed
// JSON values, with no knowledge of inodes or paths.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/HealthSamurai/fhir-fuse/internal/logger"
	"github.com/HealthSamurai/fhir-fuse/internal/metrics"
	"github.com/HealthSamurai/fhir-fuse/remote/model"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	pageSize        = 100
	maxRecords      = 1000
	maxParallelPage = 10
)

// Version is one historical revision of a record, as returned by History.
type Version struct {
	ID   string
	Body model.Resource
}

// Client is what the filesystem core is allowed to know about the remote
// server. Every method either returns data or a hard error; retry and TTL
// policy live above this layer, in the filesystem's session caches.
type Client interface {
	// Capabilities fetches the set of resource types the server advertises
	// under rest[].mode=="server". A hard error here is handled by the
	// caller: mount proceeds with an empty type set.
	Capabilities(ctx context.Context) ([]string, error)

	// List pulls up to maxRecords records of the given type, following
	// pagination. A failure of the first page is returned as err; a later
	// page's failure is logged and the records gathered so far are returned
	// with a nil err.
	List(ctx context.Context, resourceType string) ([]model.Resource, error)

	Get(ctx context.Context, resourceType, id string) (model.Resource, error)
	Put(ctx context.Context, resourceType, id string, body []byte) error
	Delete(ctx context.Context, resourceType, id string) error
	History(ctx context.Context, resourceType, id string) ([]Version, error)

	// Search runs a server-side search and groups the
	// resulting bundle by resourceType, since _include can return a mix of
	// types.
	Search(ctx context.Context, resourceType, rawQuery string) (map[string][]model.Resource, error)

	// Op POSTs a typed operation and returns the raw response body: pretty
	// printed JSON when format=="json", or the server's CSV bytes verbatim
	// when format=="csv".
	Op(ctx context.Context, resourceType, id, opName, format string) ([]byte, error)
}

// HTTPClient is the concrete Client backed by net/http. The connection
// pooling and TLS configuration of the underlying http.Client are the
// caller's concern; this type only shapes the
// typed operations above into requests against it.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewHTTPClient builds a facade against baseURL using http.DefaultClient's
// settings (transport, timeouts) unless httpClient is supplied.
func NewHTTPClient(baseURL string, httpClient *http.Client) *HTTPClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPClient{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: httpClient}
}

var _ Client = (*HTTPClient)(nil)

func (c *HTTPClient) observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RemoteCalls.WithLabelValues(op, outcome).Inc()
}

func (c *HTTPClient) do(ctx context.Context, method, rawURL string, body []byte, accept, contentType string) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, 0, err
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	return data, resp.StatusCode, nil
}

func (c *HTTPClient) url(path string) string {
	return c.BaseURL + path
}

// Capabilities implements Client.
func (c *HTTPClient) Capabilities(ctx context.Context) (types []string, err error) {
	defer func() { c.observe("capabilities", err) }()

	data, status, err := c.do(ctx, http.MethodGet, c.url("/metadata"), nil, "application/fhir+json", "")
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &StatusError{Op: "capabilities", StatusCode: status, Body: string(data)}
	}

	var cs model.CapabilityStatement
	if err = json.Unmarshal(data, &cs); err != nil {
		return nil, fmt.Errorf("decode capability statement: %w", err)
	}

	return cs.ResourceTypes(), nil
}

// List implements Client. When the first page's bundle carries a "last"
// link, the remaining pages are known up front and are fetched with up to
// maxParallelPage requests in flight. Otherwise it falls
// back to following "next" links one page at a time.
func (c *HTTPClient) List(ctx context.Context, resourceType string) (records []model.Resource, err error) {
	defer func() { c.observe("list", err) }()

	first, err := c.fetchPage(ctx, resourceType, 1)
	if err != nil {
		return nil, err
	}
	records = append(records, first.Entry.records()...)

	if lastURL, ok := first.Link.LastLink(); ok {
		lastPage, perr := pageNumber(lastURL)
		if perr == nil && lastPage > 1 {
			rest, ferr := c.fetchPagesParallel(ctx, resourceType, 2, lastPage)
			records = append(records, rest...)
			if ferr != nil {
				logger.Warn("list: partial page fetch failure", "type", resourceType, "err", ferr)
			}
			return capRecords(records), nil
		}
	}

	// Fall back to sequentially following "next".
	next, hasNext := first.Link.NextLink()
	for hasNext && len(records) < maxRecords {
		page, perr := c.fetchURL(ctx, next)
		if perr != nil {
			logger.Warn("list: page fetch failed", "type", resourceType, "err", perr)
			break
		}
		records = append(records, page.Entry.records()...)
		next, hasNext = page.Link.NextLink()
	}

	return capRecords(records), nil
}

type bundleLinks []model.BundleLink

func (l bundleLinks) NextLink() (string, bool) { return (&model.Bundle{Link: l}).NextLink() }
func (l bundleLinks) LastLink() (string, bool) { return (&model.Bundle{Link: l}).LastLink() }

type bundleEntries []model.BundleEntry

func (e bundleEntries) records() []model.Resource {
	out := make([]model.Resource, 0, len(e))
	for _, entry := range e {
		out = append(out, entry.Resource)
	}
	return out
}

type page struct {
	Entry bundleEntries
	Link  bundleLinks
}

func (c *HTTPClient) fetchPage(ctx context.Context, resourceType string, pageNum int) (page, error) {
	u := fmt.Sprintf("%s/%s?_count=%d&_page=%d", c.BaseURL, resourceType, pageSize, pageNum)
	return c.fetchURL(ctx, u)
}

func (c *HTTPClient) fetchURL(ctx context.Context, rawURL string) (page, error) {
	data, status, err := c.do(ctx, http.MethodGet, rawURL, nil, "application/fhir+json", "")
	if err != nil {
		return page{}, err
	}
	if status < 200 || status >= 300 {
		return page{}, &StatusError{Op: "list", StatusCode: status, Body: string(data)}
	}

	var b model.Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return page{}, fmt.Errorf("decode bundle: %w", err)
	}

	return page{Entry: bundleEntries(b.Entry), Link: bundleLinks(b.Link)}, nil
}

func (c *HTTPClient) fetchPagesParallel(ctx context.Context, resourceType string, from, to int) ([]model.Resource, error) {
	sem := semaphore.NewWeighted(maxParallelPage)
	g, gctx := errgroup.WithContext(ctx)

	results := make([][]model.Resource, to-from+1)

	var mu sync.Mutex
	var firstErr error

	for p := from; p <= to; p++ {
		p := p
		idx := p - from

		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}

		g.Go(func() error {
			defer sem.Release(1)

			pg, err := c.fetchPage(gctx, resourceType, p)
			if err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				logger.Warn("list: page fetch failed", "type", resourceType, "page", p, "err", err)
				return nil // per-page errors are logged, not fatal
			}

			results[idx] = pg.Entry.records()
			return nil
		})
	}

	_ = g.Wait()

	var out []model.Resource
	for _, r := range results {
		out = append(out, r...)
	}

	return out, firstErr
}

func capRecords(records []model.Resource) []model.Resource {
	if len(records) > maxRecords {
		return records[:maxRecords]
	}
	return records
}

func pageNumber(rawURL string) (int, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return 0, err
	}
	v := u.Query().Get("_page")
	if v == "" {
		return 0, fmt.Errorf("no _page query param in %q", rawURL)
	}
	return strconv.Atoi(v)
}

// Get implements Client.
func (c *HTTPClient) Get(ctx context.Context, resourceType, id string) (res model.Resource, err error) {
	defer func() { c.observe("get", err) }()

	data, status, err := c.do(ctx, http.MethodGet, c.url(fmt.Sprintf("/%s/%s", resourceType, id)), nil, "application/fhir+json", "")
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &StatusError{Op: "get", StatusCode: status, Body: string(data)}
	}
	return data, nil
}

// Put implements Client.
func (c *HTTPClient) Put(ctx context.Context, resourceType, id string, body []byte) (err error) {
	defer func() { c.observe("put", err) }()

	data, status, err := c.do(ctx, http.MethodPut, c.url(fmt.Sprintf("/%s/%s", resourceType, id)), body, "application/fhir+json", "application/fhir+json")
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return &StatusError{Op: "put", StatusCode: status, Body: string(data)}
	}
	return nil
}

// Delete implements Client. A 404 is treated as success.
func (c *HTTPClient) Delete(ctx context.Context, resourceType, id string) (err error) {
	defer func() { c.observe("delete", err) }()

	data, status, derr := c.do(ctx, http.MethodDelete, c.url(fmt.Sprintf("/%s/%s", resourceType, id)), nil, "", "")
	if derr != nil {
		return derr
	}
	if status == http.StatusNotFound {
		return nil
	}
	if status < 200 || status >= 300 {
		return &StatusError{Op: "delete", StatusCode: status, Body: string(data)}
	}
	return nil
}

// History implements Client.
func (c *HTTPClient) History(ctx context.Context, resourceType, id string) (versions []Version, err error) {
	defer func() { c.observe("history", err) }()

	data, status, err := c.do(ctx, http.MethodGet, c.url(fmt.Sprintf("/%s/%s/_history", resourceType, id)), nil, "application/fhir+json", "")
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &StatusError{Op: "history", StatusCode: status, Body: string(data)}
	}

	var b model.HistoryBundle
	if err = json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode history bundle: %w", err)
	}

	for _, entry := range b.Entry {
		vid, verr := extractVersionID(entry.Resource)
		if verr != nil {
			logger.Warn("history: skipping entry with no meta.versionId", "type", resourceType, "id", id, "err", verr)
			continue
		}
		versions = append(versions, Version{ID: vid, Body: entry.Resource})
	}

	return versions, nil
}

func extractVersionID(r model.Resource) (string, error) {
	var meta struct {
		Meta struct {
			VersionID string `json:"versionId"`
		} `json:"meta"`
	}
	if err := json.Unmarshal(r, &meta); err != nil {
		return "", err
	}
	if meta.Meta.VersionID == "" {
		return "", fmt.Errorf("missing meta.versionId")
	}
	return meta.Meta.VersionID, nil
}

// Search implements Client.
func (c *HTTPClient) Search(ctx context.Context, resourceType, rawQuery string) (grouped map[string][]model.Resource, err error) {
	defer func() { c.observe("search", err) }()

	u := fmt.Sprintf("%s/%s?%s", c.BaseURL, resourceType, rawQuery)
	data, status, err := c.do(ctx, http.MethodGet, u, nil, "application/fhir+json", "")
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &StatusError{Op: "search", StatusCode: status, Body: string(data)}
	}

	var b model.Bundle
	if err = json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("decode search bundle: %w", err)
	}

	grouped = make(map[string][]model.Resource)
	for _, entry := range b.Entry {
		rt, rerr := resourceTypeOf(entry.Resource)
		if rerr != nil {
			logger.Warn("search: skipping entry with no resourceType", "err", rerr)
			continue
		}
		grouped[rt] = append(grouped[rt], entry.Resource)
	}

	return grouped, nil
}

func resourceTypeOf(r model.Resource) (string, error) {
	var h struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal(r, &h); err != nil {
		return "", err
	}
	if h.ResourceType == "" {
		return "", fmt.Errorf("missing resourceType")
	}
	return h.ResourceType, nil
}

// Op implements Client.
func (c *HTTPClient) Op(ctx context.Context, resourceType, id, opName, format string) (out []byte, err error) {
	defer func() { c.observe("op", err) }()

	accept := "application/fhir+json"
	if format == "csv" {
		accept = "text/csv"
	}

	params := model.NewFormatParameters(format)
	body, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	u := c.url(fmt.Sprintf("/%s/%s/$%s", resourceType, id, opName))
	data, status, err := c.do(ctx, http.MethodPost, u, body, accept, "application/fhir+json")
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, &StatusError{Op: "op", StatusCode: status, Body: string(data)}
	}

	if format == "json" {
		var buf bytes.Buffer
		if ierr := json.Indent(&buf, data, "", "  "); ierr == nil {
			return buf.Bytes(), nil
		}
	}

	return data, nil
}

// ResourceID extracts the "id" field of a record body, used to name the
// record files built from a collection listing or a search result.
func ResourceID(r model.Resource) (string, error) {
	var h struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(r, &h); err != nil {
		return "", err
	}
	if h.ID == "" {
		return "", fmt.Errorf("missing id")
	}
	return h.ID, nil
}

// sortedKeys is a small helper used by the search mkdir handler to present
// result groups in a deterministic order.
func sortedKeys(m map[string][]model.Resource) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SortedResourceTypes returns the resource types present in a grouped
// search result, alphabetically.
func SortedResourceTypes(grouped map[string][]model.Resource) []string {
	return sortedKeys(grouped)
}
