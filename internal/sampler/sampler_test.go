package sampler

import (
	"errors"
	"fmt"
	"testing"

	"github.com/safebench/mmbench/internal/domain"
)

func makeCatalog(sizes map[string]int) *domain.Catalog {
	var entries []*domain.CatalogEntry
	for cat, n := range sizes {
		for i := 0; i < n; i++ {
			entries = append(entries, &domain.CatalogEntry{
				ID:       fmt.Sprintf("%s/%d", cat, i),
				Category: cat,
			})
		}
	}
	return domain.NewCatalog(entries)
}

func TestSelect_InvalidRate(t *testing.T) {
	cat := makeCatalog(map[string]int{"a": 10})
	for _, rate := range []float64{0, -0.5, 1.5} {
		if _, err := Select(cat, rate, 42); !errors.Is(err, ErrInvalidRate) {
			t.Errorf("Select(rate=%v) error = %v, want ErrInvalidRate", rate, err)
		}
	}
}

func TestSelect_EmptyCatalog(t *testing.T) {
	cat := domain.NewCatalog(nil)
	if _, err := Select(cat, 0.5, 42); !errors.Is(err, ErrEmptyCatalog) {
		t.Errorf("Select on empty catalog error = %v, want ErrEmptyCatalog", err)
	}
}

func TestSelect_Proportionality(t *testing.T) {
	cat := makeCatalog(map[string]int{"big": 1000})

	sel, err := Select(cat, 0.12, 42)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if got := len(sel.Entries("big")); got != 120 {
		t.Errorf("sampled count = %d, want 120", got)
	}
}

func TestSelect_FullRateIsIdentity(t *testing.T) {
	cat := makeCatalog(map[string]int{"a": 25})

	sel, err := Select(cat, 1.0, 42)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	entries := sel.Entries("a")
	if len(entries) != 25 {
		t.Fatalf("sampled count = %d, want 25", len(entries))
	}
	for i, e := range entries {
		if e.ID != fmt.Sprintf("a/%d", i) {
			t.Fatalf("entry %d = %s, original order not preserved", i, e.ID)
		}
	}
}

func TestSelect_Deterministic(t *testing.T) {
	cat := makeCatalog(map[string]int{"a": 100, "b": 200, "c": 50})

	sel1, err := Select(cat, 0.3, 7)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	sel2, err := Select(cat, 0.3, 7)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	for _, c := range sel1.Categories() {
		e1, e2 := sel1.Entries(c), sel2.Entries(c)
		if len(e1) != len(e2) {
			t.Fatalf("category %s: sizes differ (%d vs %d)", c, len(e1), len(e2))
		}
		for i := range e1 {
			if e1[i].ID != e2[i].ID {
				t.Fatalf("category %s entry %d differs: %s vs %s", c, i, e1[i].ID, e2[i].ID)
			}
		}
	}
}

func TestSelect_CategoriesIndependent(t *testing.T) {
	// Removing a category must not perturb the sample of another.
	both := makeCatalog(map[string]int{"a": 100, "b": 100})
	only := makeCatalog(map[string]int{"a": 100})

	selBoth, err := Select(both, 0.4, 42)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	selOnly, err := Select(only, 0.4, 42)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	e1, e2 := selBoth.Entries("a"), selOnly.Entries("a")
	if len(e1) != len(e2) {
		t.Fatalf("sizes differ: %d vs %d", len(e1), len(e2))
	}
	for i := range e1 {
		if e1[i].ID != e2[i].ID {
			t.Fatalf("entry %d differs: %s vs %s", i, e1[i].ID, e2[i].ID)
		}
	}
}

func TestSelect_OrderPreserved(t *testing.T) {
	cat := makeCatalog(map[string]int{"a": 50})

	sel, err := Select(cat, 0.5, 42)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	entries := sel.Entries("a")
	if len(entries) != 25 {
		t.Fatalf("sampled count = %d, want 25", len(entries))
	}
	prev := -1
	for _, e := range entries {
		var idx int
		fmt.Sscanf(e.ID, "a/%d", &idx)
		if idx <= prev {
			t.Fatalf("original order not preserved: %d after %d", idx, prev)
		}
		prev = idx
	}
}

func TestSelect_Scenario(t *testing.T) {
	cat := makeCatalog(map[string]int{"A": 10, "B": 20})

	sel42, err := Select(cat, 0.5, 42)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if got := len(sel42.Entries("A")); got != 5 {
		t.Errorf("A sampled = %d, want 5", got)
	}
	if got := len(sel42.Entries("B")); got != 10 {
		t.Errorf("B sampled = %d, want 10", got)
	}

	sel43, err := Select(cat, 0.5, 43)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if got := len(sel43.Entries("B")); got != 10 {
		t.Errorf("B sampled with seed 43 = %d, want 10", got)
	}

	same := true
	b42, b43 := sel42.Entries("B"), sel43.Entries("B")
	for i := range b42 {
		if b42[i].ID != b43[i].ID {
			same = false
			break
		}
	}
	if same {
		t.Error("seed 42 and 43 produced identical selections for B")
	}
}

func TestSelect_Stats(t *testing.T) {
	cat := makeCatalog(map[string]int{"a": 100})

	sel, err := Select(cat, 0.12, 42)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	st := sel.Stats["a"]
	if st.Original != 100 || st.Sampled != 12 {
		t.Errorf("Stats = %+v, want {100 12}", st)
	}
	if sel.Total() != 12 {
		t.Errorf("Total() = %d, want 12", sel.Total())
	}
}
