package queue

import (
	"fmt"
	"testing"

	"github.com/safebench/mmbench/internal/domain"
	"github.com/safebench/mmbench/internal/sampler"
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

func TestBuild_SequenceOrder(t *testing.T) {
	cat := makeCatalog(map[string]int{"b": 3, "a": 2})
	sel, err := sampler.Select(cat, 1.0, 42)
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}

	tasks := Build(sel)
	if len(tasks) != 5 {
		t.Fatalf("task count = %d, want 5", len(tasks))
	}
	for i, task := range tasks {
		if task.Seq != i {
			t.Errorf("task %d has Seq = %d", i, task.Seq)
		}
		if task.State != domain.TaskPending {
			t.Errorf("task %d state = %s, want pending", i, task.State)
		}
	}
	// Sorted category order: all of "a" before "b".
	if tasks[0].Entry.Category != "a" || tasks[2].Entry.Category != "b" {
		t.Errorf("category order wrong: %s, %s", tasks[0].Entry.Category, tasks[2].Entry.Category)
	}
}

func TestBuildFromCatalog(t *testing.T) {
	cat := makeCatalog(map[string]int{"x": 2, "y": 1})
	tasks := BuildFromCatalog(cat)
	if len(tasks) != 3 {
		t.Fatalf("task count = %d, want 3", len(tasks))
	}
	if tasks[0].Entry.Category != "x" {
		t.Errorf("first category = %s, want x", tasks[0].Entry.Category)
	}
}

func TestTruncate(t *testing.T) {
	cat := makeCatalog(map[string]int{"a": 10})
	tasks := BuildFromCatalog(cat)

	tests := []struct {
		max  int
		want int
	}{
		{max: 0, want: 10},
		{max: -1, want: 10},
		{max: 4, want: 4},
		{max: 10, want: 10},
		{max: 99, want: 10},
	}
	for _, tt := range tests {
		got := Truncate(tasks, tt.max)
		if len(got) != tt.want {
			t.Errorf("Truncate(max=%d) len = %d, want %d", tt.max, len(got), tt.want)
		}
	}

	// Truncation keeps the original sequence numbers.
	short := Truncate(tasks, 3)
	for i, task := range short {
		if task.Seq != i {
			t.Errorf("truncated task %d has Seq = %d", i, task.Seq)
		}
	}
}
