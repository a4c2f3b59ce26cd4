// Package health reports the operational state of a mount over HTTP,
// alongside the metrics endpoint.
package health

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/cosfs/cosfs/pkg/types"
)

// State is the overall mount state.
type State string

const (
	// StateHealthy means the namespace is populated and serving.
	StateHealthy State = "healthy"

	// StateStarting means no namespace snapshot has been taken yet.
	StateStarting State = "starting"

	// StateStale means the snapshot is older than the staleness bound.
	StateStale State = "stale"
)

// SnapshotSource reports on the namespace snapshot currently served.
type SnapshotSource interface {
	KeyCount() int
	LastRefresh() time.Time
}

// CacheStatter reports cache tier statistics.
type CacheStatter interface {
	Stats() types.CacheStats
}

// Status is the JSON document served by the health endpoint.
type Status struct {
	State         State            `json:"state"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Keys          int              `json:"keys"`
	LastRefresh   *time.Time       `json:"last_refresh,omitempty"`
	Cache         types.CacheStats `json:"cache"`
}

// Checker assembles the status document from the live components.
type Checker struct {
	snapshot  SnapshotSource
	cache     CacheStatter
	version   string
	staleness time.Duration
	startedAt time.Time
}

// DefaultStaleness is how old a snapshot may be before the mount reports
// itself stale. Zero disables the check.
const DefaultStaleness = 0

// NewChecker creates a checker. A zero staleness bound never reports
// stale, matching a mount that only refreshes on demand.
func NewChecker(snapshot SnapshotSource, cache CacheStatter, version string, staleness time.Duration) *Checker {
	return &Checker{
		snapshot:  snapshot,
		cache:     cache,
		version:   version,
		staleness: staleness,
		startedAt: time.Now(),
	}
}

// Status returns the current mount status.
func (c *Checker) Status() Status {
	s := Status{
		State:         StateHealthy,
		Version:       c.version,
		UptimeSeconds: int64(time.Since(c.startedAt).Seconds()),
		Keys:          c.snapshot.KeyCount(),
	}
	if c.cache != nil {
		s.Cache = c.cache.Stats()
	}

	last := c.snapshot.LastRefresh()
	if last.IsZero() {
		s.State = StateStarting
		return s
	}
	s.LastRefresh = &last
	if c.staleness > 0 && time.Since(last) > c.staleness {
		s.State = StateStale
	}
	return s
}

// Handler serves the status document. Anything except a populated
// healthy or stale snapshot answers 503 so orchestrators can gate on the
// status code alone.
func (c *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status := c.Status()
		code := http.StatusOK
		if status.State == StateStarting {
			code = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	})
}
