package kb

import (
	"fmt"
	"sync"
	"testing"

	"github.com/signalsfoundry/mission-planner/model"
)

func TestAddAndGetSubject(t *testing.T) {
	store := NewCatalog()
	s := model.GroundSubject{ID: "t1", Name: "Target1", LatitudeDeg: 40, LongitudeDeg: -75}
	if err := store.Add(s); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	got, ok := store.Get("t1")
	if !ok || got.Name != "Target1" {
		t.Fatalf("Get returned %#v, want name Target1", got)
	}
}

func TestAddSubjectDuplicate(t *testing.T) {
	store := NewCatalog()
	if err := store.Add(model.GroundSubject{ID: "t1"}); err != nil {
		t.Fatalf("first Add error: %v", err)
	}
	if err := store.Add(model.GroundSubject{ID: "t1"}); err == nil {
		t.Fatalf("expected duplicate Add to fail")
	}
}

func TestAddSubjectValidatesLocation(t *testing.T) {
	store := NewCatalog()
	if err := store.Add(model.GroundSubject{ID: "bad", LatitudeDeg: 91}); err == nil {
		t.Fatalf("expected latitude validation error")
	}
	if err := store.Add(model.GroundSubject{}); err == nil {
		t.Fatalf("expected empty id error")
	}
}

func TestTargetsAndStationsSorted(t *testing.T) {
	store := NewCatalog()
	for i := 2; i >= 0; i-- {
		if err := store.Add(model.GroundSubject{ID: fmt.Sprintf("t-%d", i), Kind: model.SubjectTarget}); err != nil {
			t.Fatalf("Add error: %v", err)
		}
	}
	if err := store.Add(model.GroundSubject{ID: "gs-1", Kind: model.SubjectStation}); err != nil {
		t.Fatalf("Add error: %v", err)
	}

	targets := store.Targets()
	if len(targets) != 3 || targets[0].ID != "t-0" || targets[2].ID != "t-2" {
		t.Fatalf("Targets() = %+v", targets)
	}
	if got := len(store.Stations()); got != 1 {
		t.Fatalf("Stations() len=%d, want 1", got)
	}
	if got := len(store.List()); got != 4 {
		t.Fatalf("List() len=%d, want 4", got)
	}
}

func TestRemove(t *testing.T) {
	store := NewCatalog()
	if err := store.Add(model.GroundSubject{ID: "gs"}); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if err := store.Remove("gs"); err != nil {
		t.Fatalf("Remove error: %v", err)
	}
	if _, ok := store.Get("gs"); ok {
		t.Fatalf("subject still present after Remove")
	}
	if err := store.Remove("gs"); err == nil {
		t.Fatalf("expected removing a missing subject to fail")
	}
}

func TestConcurrentAdds(t *testing.T) {
	store := NewCatalog()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.Add(model.GroundSubject{ID: fmt.Sprintf("s-%d", i)})
		}(i)
	}
	wg.Wait()
	if got := len(store.List()); got != 20 {
		t.Fatalf("List() len=%d, want 20", got)
	}
}
