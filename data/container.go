// Package data provides thread-safe storage of the computed results loaded
// by the service. Readers get immutable snapshots swapped atomically, so
// lookups never block on an ongoing import.
package data

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giygas/tdm-reports/interfaces"
	"github.com/giygas/tdm-reports/logging"
	"github.com/giygas/tdm-reports/metrics"
	"github.com/giygas/tdm-reports/resultparser/entities"
)

// Compile-time check to ensure DataContainer implements DataStore
var _ interfaces.DataStore = (*DataContainer)(nil)

// ErrResultNotFound is returned when no result has the requested ID
var ErrResultNotFound = errors.New("result not found")

// snapshot is never mutated once published
type snapshot struct {
	results []*entities.ComputedResult
	byID    map[string]*entities.ComputedResult
}

// DataContainer holds the loaded results with an atomic pointer for zero-downtime updates
type DataContainer struct {
	current         atomic.Pointer[snapshot]
	writeMu         sync.Mutex   // serialises copy-on-write updates
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
}

// NewDataContainer creates a new DataContainer with empty data
func NewDataContainer() *DataContainer {
	dc := &DataContainer{}
	dc.current.Store(&snapshot{byID: make(map[string]*entities.ComputedResult)})
	dc.lastUpdated.Store(time.Time{})
	dc.serverStartTime.Store(time.Time{})
	return dc
}

// GetResults returns the loaded results in load order
func (dc *DataContainer) GetResults() []*entities.ComputedResult {
	return dc.current.Load().results
}

// GetResult looks up a result by ID
func (dc *DataContainer) GetResult(id string) (*entities.ComputedResult, bool) {
	r, ok := dc.current.Load().byID[id]
	return r, ok
}

// AddResults merges results into the store. A result replaces the loaded
// one with the same ID and keeps its position.
func (dc *DataContainer) AddResults(results []*entities.ComputedResult) {
	if len(results) == 0 {
		return
	}
	dc.writeMu.Lock()
	defer dc.writeMu.Unlock()

	old := dc.current.Load()
	next := &snapshot{
		results: make([]*entities.ComputedResult, len(old.results), len(old.results)+len(results)),
		byID:    make(map[string]*entities.ComputedResult, len(old.byID)+len(results)),
	}
	copy(next.results, old.results)
	position := make(map[string]int, len(old.results))
	for i, r := range next.results {
		position[r.ID] = i
		next.byID[r.ID] = r
	}

	for _, r := range results {
		if i, ok := position[r.ID]; ok {
			logging.Debug("Replacing loaded result", "result_id", r.ID)
			next.results[i] = r
		} else {
			position[r.ID] = len(next.results)
			next.results = append(next.results, r)
		}
		next.byID[r.ID] = r
	}

	dc.publish(next)
}

// RemoveResult drops a result, reporting whether it was loaded
func (dc *DataContainer) RemoveResult(id string) bool {
	dc.writeMu.Lock()
	defer dc.writeMu.Unlock()

	old := dc.current.Load()
	if _, ok := old.byID[id]; !ok {
		return false
	}
	next := &snapshot{
		results: make([]*entities.ComputedResult, 0, len(old.results)-1),
		byID:    make(map[string]*entities.ComputedResult, len(old.byID)-1),
	}
	for _, r := range old.results {
		if r.ID == id {
			continue
		}
		next.results = append(next.results, r)
		next.byID[r.ID] = r
	}
	dc.publish(next)
	return true
}

func (dc *DataContainer) publish(next *snapshot) {
	dc.current.Store(next)
	dc.lastUpdated.Store(time.Now())
	metrics.ResultsLoaded.Set(float64(len(next.results)))
}

// GetLastUpdated returns the timestamp of the last data update
func (dc *DataContainer) GetLastUpdated() time.Time {
	if v := dc.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// IsUpdating returns true if an inbox scan is currently in progress
func (dc *DataContainer) IsUpdating() bool {
	return dc.updating.Load()
}

// SetServerStartTime sets the server start time
func (dc *DataContainer) SetServerStartTime(startTime time.Time) {
	dc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (dc *DataContainer) GetServerStartTime() time.Time {
	if v := dc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// BeginUpdate marks the start of an inbox scan.
// Returns true if it can proceed, false if another scan is in progress
func (dc *DataContainer) BeginUpdate() bool {
	return dc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of an inbox scan
func (dc *DataContainer) EndUpdate() {
	dc.updating.Store(false)
}
