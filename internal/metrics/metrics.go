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

// Package metrics exposes the small set of Prometheus counters the core
// filesystem engine updates on every handler and every remote call.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// RemoteCalls counts calls into the remote client facade, labeled by
	// operation and outcome.
	RemoteCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fhirfuse_remote_calls_total",
			Help: "Number of remote client facade calls, by operation and outcome.",
		},
		[]string{"op", "outcome"},
	)

	// CacheEvents counts session-cache hits and misses, labeled by cache
	// kind.
	CacheEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fhirfuse_cache_events_total",
			Help: "Session cache hits and misses, by cache kind and event.",
		},
		[]string{"kind", "event"},
	)

	// InodeCount tracks the current size of the inode index.
	InodeCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fhirfuse_inodes",
			Help: "Number of live inodes currently held in the index.",
		},
	)

	// FuseOps counts handled FUSE operations, labeled by op name and result.
	FuseOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fhirfuse_fuse_ops_total",
			Help: "Number of FUSE operations served, by op and result.",
		},
		[]string{"op", "result"},
	)
)

func init() {
	prometheus.MustRegister(RemoteCalls, CacheEvents, InodeCount, FuseOps)
}
