package index

import "testing"

func TestNewConceptMapIndexesEveryConcept(t *testing.T) {
	cm, err := NewConceptMap()
	if err != nil {
		t.Fatalf("NewConceptMap: %v", err)
	}
	defer cm.Close()

	if len(cm.byName) != len(concepts) {
		t.Fatalf("expected %d concepts indexed, got %d", len(concepts), len(cm.byName))
	}
}

func TestMatchFindsConceptByKeyword(t *testing.T) {
	cm, err := NewConceptMap()
	if err != nil {
		t.Fatalf("NewConceptMap: %v", err)
	}
	defer cm.Close()

	cands, err := cm.Match("riverpod", 5)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	found := false
	for _, c := range cands {
		if c.ID == "pub_package:provider" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected 'riverpod' query to surface the state management concept's members, got %+v", cands)
	}
}

func TestResetRebuildsWithoutError(t *testing.T) {
	cm, err := NewConceptMap()
	if err != nil {
		t.Fatalf("NewConceptMap: %v", err)
	}
	defer cm.Close()

	before := cm.builtAt
	if err := cm.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if cm.builtAt.Before(before) {
		t.Errorf("expected builtAt not to move backwards after Reset")
	}
}

func TestStaleReportsAgeThreshold(t *testing.T) {
	cm, err := NewConceptMap()
	if err != nil {
		t.Fatalf("NewConceptMap: %v", err)
	}
	defer cm.Close()

	if cm.Stale(0) == false {
		t.Error("expected a zero max age to always be stale")
	}
}
