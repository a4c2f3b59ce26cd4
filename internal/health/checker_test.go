package health

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cosfs/cosfs/pkg/types"
)

type fakeSnapshot struct {
	keys    int
	refresh time.Time
}

func (f *fakeSnapshot) KeyCount() int          { return f.keys }
func (f *fakeSnapshot) LastRefresh() time.Time { return f.refresh }

type fakeCache struct {
	stats types.CacheStats
}

func (f *fakeCache) Stats() types.CacheStats { return f.stats }

func TestStatusStates(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name      string
		refresh   time.Time
		staleness time.Duration
		want      State
	}{
		{"never refreshed", time.Time{}, 0, StateStarting},
		{"fresh snapshot", now, 0, StateHealthy},
		{"old snapshot without bound", now.Add(-24 * time.Hour), 0, StateHealthy},
		{"old snapshot past bound", now.Add(-time.Hour), time.Minute, StateStale},
		{"recent snapshot within bound", now, time.Minute, StateHealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewChecker(&fakeSnapshot{keys: 3, refresh: tt.refresh}, nil, "test", tt.staleness)
			if got := c.Status().State; got != tt.want {
				t.Errorf("state = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHandler(t *testing.T) {
	snap := &fakeSnapshot{keys: 7, refresh: time.Now()}
	cache := &fakeCache{stats: types.CacheStats{MetadataHits: 5, ContentFiles: 2}}
	c := NewChecker(snap, cache, "1.2.3", 0)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var status Status
	if err := json.NewDecoder(rec.Body).Decode(&status); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if status.State != StateHealthy || status.Keys != 7 || status.Version != "1.2.3" {
		t.Errorf("status = %+v", status)
	}
	if status.Cache.MetadataHits != 5 || status.Cache.ContentFiles != 2 {
		t.Errorf("cache stats = %+v", status.Cache)
	}
}

func TestHandlerBeforeFirstRefresh(t *testing.T) {
	c := NewChecker(&fakeSnapshot{}, nil, "test", 0)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/healthz", nil))

	if rec.Code != 503 {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}
