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

// Package model holds the wire JSON shapes exchanged with the remote
// clinical-records server: the capability envelope, search/list bundles,
// and typed-operation parameters. Record bodies themselves are passed
// through opaquely as raw JSON, so this package only models the envelopes
// the filesystem engine has to reason about.
package model

import "encoding/json"

// Resource is an opaque record body. The filesystem core never interprets
// its fields beyond "id" and "resourceType"; everything else round-trips
// untouched.
type Resource = json.RawMessage

// CapabilityStatement is the response of GET {base}/metadata.
type CapabilityStatement struct {
	ResourceType string        `json:"resourceType"`
	Rest         []RestSection `json:"rest"`
}

type RestSection struct {
	Mode     string               `json:"mode"`
	Resource []ResourceCapability `json:"resource"`
}

type ResourceCapability struct {
	Type        string        `json:"type"`
	Interaction []Interaction `json:"interaction"`
}

type Interaction struct {
	Code string `json:"code"`
}

// ResourceTypes extracts the advertised "server"-mode resource types from a
// capability statement, in the order the server listed them.
func (c *CapabilityStatement) ResourceTypes() []string {
	var out []string
	for _, rest := range c.Rest {
		if rest.Mode != "server" {
			continue
		}
		for _, r := range rest.Resource {
			out = append(out, r.Type)
		}
	}
	return out
}

// Bundle is the response shape of a list/search call: GET {base}/{type} and
// GET {base}/{type}?{raw_query}.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Total        *int          `json:"total,omitempty"`
	Entry        []BundleEntry `json:"entry"`
	Link         []BundleLink  `json:"link"`
}

type BundleEntry struct {
	Resource Resource `json:"resource"`
}

type BundleLink struct {
	Relation string `json:"relation"`
	URL      string `json:"url"`
}

// NextLink returns the "next" pagination link, if the bundle carries one.
func (b *Bundle) NextLink() (string, bool) {
	for _, l := range b.Link {
		if l.Relation == "next" {
			return l.URL, true
		}
	}
	return "", false
}

// LastLink returns the "last" pagination link, if the bundle carries one.
func (b *Bundle) LastLink() (string, bool) {
	for _, l := range b.Link {
		if l.Relation == "last" {
			return l.URL, true
		}
	}
	return "", false
}

// HistoryBundle is the response of GET {base}/{type}/{id}/_history: an
// ordered sequence of past versions of one record.
type HistoryBundle struct {
	ResourceType string         `json:"resourceType"`
	Entry        []HistoryEntry `json:"entry"`
}

// HistoryEntry carries one past version; its meta.versionId lives inside
// the opaque resource body and is extracted by the client after
// unmarshalling.
type HistoryEntry struct {
	Resource Resource `json:"resource"`
}

// Parameters is the POST body for a typed operation: a FHIR
// "Parameters" resource requesting a response format.
type Parameters struct {
	ResourceType string           `json:"resourceType"`
	Parameter    []ParameterEntry `json:"parameter"`
}

type ParameterEntry struct {
	Name      string `json:"name"`
	ValueCode string `json:"valueCode,omitempty"`
}

// NewFormatParameters builds the {"resourceType":"Parameters",...} body
// requesting _format=format.
func NewFormatParameters(format string) Parameters {
	return Parameters{
		ResourceType: "Parameters",
		Parameter: []ParameterEntry{
			{Name: "_format", ValueCode: format},
		},
	}
}
