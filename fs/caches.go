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
	"time"

	"github.com/HealthSamurai/fhir-fuse/internal/metrics"
	"github.com/HealthSamurai/fhir-fuse/internal/ttlcache"
	"github.com/jacobsa/fuse/fuseops"
)

// dataCacheDuration is how long a refreshed snapshot (a collection, a
// search query, or a history directory) is considered fresh before the
// next read triggers another refresh.
const dataCacheDuration = 5 * time.Second

// sessionCaches tracks one freshness timestamp per collection, per search
// query, and per history directory, each a thin wrapper over the generic
// ttlcache. Writes to a collection do not invalidate that collection's
// entry: only TTL expiry does. Operation executions carry their own cached
// result on the node and are never invalidated, so there is no timestamp
// to track for them here.
type sessionCaches struct {
	collections *ttlcache.Cache[string, struct{}]
	queries     *ttlcache.Cache[fuseops.InodeID, struct{}]
	history     *ttlcache.Cache[fuseops.InodeID, struct{}]
}

// newSessionCaches takes the mount's time source so that freshness is
// judged by the same clock the rest of the engine uses.
func newSessionCaches(now func() time.Time) *sessionCaches {
	return &sessionCaches{
		collections: ttlcache.NewWithNow[string, struct{}](dataCacheDuration, 30*time.Second, now),
		queries:     ttlcache.NewWithNow[fuseops.InodeID, struct{}](dataCacheDuration, 30*time.Second, now),
		history:     ttlcache.NewWithNow[fuseops.InodeID, struct{}](dataCacheDuration, 30*time.Second, now),
	}
}

// freshCollection reports whether resourceType's record listing was
// refreshed within the last dataCacheDuration.
func (c *sessionCaches) freshCollection(resourceType string) bool {
	_, ok := c.collections.Get(resourceType)
	observeCacheEvent("collection", ok)
	return ok
}

// markCollectionFresh records that resourceType was just refreshed.
func (c *sessionCaches) markCollectionFresh(resourceType string) {
	c.collections.Set(resourceType, struct{}{})
}

func (c *sessionCaches) freshQuery(inode fuseops.InodeID) bool {
	_, ok := c.queries.Get(inode)
	observeCacheEvent("query", ok)
	return ok
}

func (c *sessionCaches) markQueryFresh(inode fuseops.InodeID) {
	c.queries.Set(inode, struct{}{})
}

func (c *sessionCaches) freshHistory(inode fuseops.InodeID) bool {
	_, ok := c.history.Get(inode)
	observeCacheEvent("history", ok)
	return ok
}

func (c *sessionCaches) markHistoryFresh(inode fuseops.InodeID) {
	c.history.Set(inode, struct{}{})
}

// forgetHistory drops a history directory's freshness entry when the
// directory itself is destroyed, so its inode never lingers in the cache.
func (c *sessionCaches) forgetHistory(inode fuseops.InodeID) {
	c.history.Delete(inode)
}

func observeCacheEvent(kind string, hit bool) {
	event := "miss"
	if hit {
		event = "hit"
	}
	metrics.CacheEvents.WithLabelValues(kind, event).Inc()
}
