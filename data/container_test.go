package data

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/giygas/tdm-reports/logging"
	"github.com/giygas/tdm-reports/resultparser/entities"
)

func result(id, drug string) *entities.ComputedResult {
	return &entities.ComputedResult{ID: id, Request: entities.Request{DrugID: drug}}
}

func TestNewDataContainer(t *testing.T) {
	logging.InitLogger("")

	dc := NewDataContainer()

	if dc.IsUpdating() {
		t.Error("NewDataContainer should not be updating")
	}
	if !dc.GetLastUpdated().IsZero() {
		t.Error("NewDataContainer should have zero lastUpdated time")
	}
	if len(dc.GetResults()) != 0 {
		t.Error("NewDataContainer should have no results")
	}
	if _, ok := dc.GetResult("missing"); ok {
		t.Error("lookup on an empty container should fail")
	}
}

func TestAddResults(t *testing.T) {
	logging.InitLogger("")

	dc := NewDataContainer()
	dc.AddResults([]*entities.ComputedResult{result("a", "rifampicin"), result("b", "isoniazid")})

	if got := dc.GetResults(); len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("unexpected results %v", got)
	}
	if dc.GetLastUpdated().IsZero() {
		t.Error("lastUpdated should be set after an update")
	}

	// replacing keeps the position, new IDs are appended
	replacement := result("a", "ethambutol")
	dc.AddResults([]*entities.ComputedResult{replacement, result("c", "pyrazinamide")})

	got := dc.GetResults()
	if len(got) != 3 || got[0] != replacement || got[2].ID != "c" {
		t.Fatalf("unexpected merge %v", got)
	}
	if r, ok := dc.GetResult("a"); !ok || r.Request.DrugID != "ethambutol" {
		t.Errorf("lookup returned %v, %v", r, ok)
	}

	dc.AddResults(nil)
	if len(dc.GetResults()) != 3 {
		t.Error("adding nothing must not change the store")
	}
}

func TestSnapshotsAreImmutable(t *testing.T) {
	logging.InitLogger("")

	dc := NewDataContainer()
	dc.AddResults([]*entities.ComputedResult{result("a", "x")})
	before := dc.GetResults()

	dc.AddResults([]*entities.ComputedResult{result("b", "y")})
	dc.RemoveResult("a")

	if len(before) != 1 || before[0].ID != "a" {
		t.Errorf("earlier snapshot was modified: %v", before)
	}
}

func TestRemoveResult(t *testing.T) {
	logging.InitLogger("")

	dc := NewDataContainer()
	dc.AddResults([]*entities.ComputedResult{result("a", "x"), result("b", "y"), result("c", "z")})

	if !dc.RemoveResult("b") {
		t.Fatal("expected b to be removed")
	}
	if dc.RemoveResult("b") {
		t.Error("second removal should report false")
	}
	got := dc.GetResults()
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("unexpected results %v", got)
	}
	if _, ok := dc.GetResult("b"); ok {
		t.Error("removed result still reachable by ID")
	}
}

func TestBeginUpdateEndUpdate(t *testing.T) {
	dc := NewDataContainer()

	if !dc.BeginUpdate() {
		t.Fatal("first BeginUpdate should succeed")
	}
	if !dc.IsUpdating() {
		t.Error("container should be updating")
	}
	if dc.BeginUpdate() {
		t.Error("second BeginUpdate should fail while updating")
	}
	dc.EndUpdate()
	if dc.IsUpdating() {
		t.Error("container should not be updating after EndUpdate")
	}
	if !dc.BeginUpdate() {
		t.Error("BeginUpdate should succeed again after EndUpdate")
	}
}

func TestServerStartTime(t *testing.T) {
	dc := NewDataContainer()
	if !dc.GetServerStartTime().IsZero() {
		t.Error("start time should be zero until set")
	}
	start := time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)
	dc.SetServerStartTime(start)
	if !dc.GetServerStartTime().Equal(start) {
		t.Errorf("start time = %v", dc.GetServerStartTime())
	}
}

func TestConcurrentAccess(t *testing.T) {
	logging.InitLogger("")

	dc := NewDataContainer()
	var wg sync.WaitGroup

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				dc.AddResults([]*entities.ComputedResult{result(fmt.Sprintf("%d-%d", w, i), "x")})
			}
		}(w)
	}
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				results := dc.GetResults()
				for _, res := range results {
					if _, ok := dc.GetResult(res.ID); !ok {
						t.Errorf("result %s listed but not found", res.ID)
						return
					}
				}
			}
		}()
	}
	wg.Wait()

	if got := len(dc.GetResults()); got != 200 {
		t.Errorf("expected 200 results, got %d", got)
	}
}

func BenchmarkGetResult(b *testing.B) {
	dc := NewDataContainer()
	batch := make([]*entities.ComputedResult, 1000)
	for i := range batch {
		batch[i] = result(fmt.Sprintf("r-%d", i), "x")
	}
	dc.AddResults(batch)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		dc.GetResult("r-500")
	}
}
