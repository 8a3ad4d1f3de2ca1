package registry

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestRegistry_Allocate(t *testing.T) {
	root := t.TempDir()
	r := New(root)

	rec, err := r.Allocate("http", "test-model")
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if rec.ID != 1 {
		t.Errorf("ID = %d, want 1", rec.ID)
	}
	if !strings.HasPrefix(filepath.Base(rec.Dir), "run_1_test-model_") {
		t.Errorf("Dir = %s", rec.Dir)
	}
	if fi, err := os.Stat(rec.Dir); err != nil || !fi.IsDir() {
		t.Errorf("run dir not created: %v", err)
	}

	rec2, err := r.Allocate("http", "test-model")
	if err != nil {
		t.Fatalf("second Allocate() error = %v", err)
	}
	if rec2.ID != 2 {
		t.Errorf("second ID = %d, want 2", rec2.ID)
	}
}

func TestRegistry_SurvivesRestart(t *testing.T) {
	root := t.TempDir()

	rec, err := New(root).Allocate("http", "m")
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	// A fresh registry over the same root continues the sequence.
	rec2, err := New(root).Allocate("http", "m")
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	if rec2.ID != rec.ID+1 {
		t.Errorf("ID after restart = %d, want %d", rec2.ID, rec.ID+1)
	}
}

func TestRegistry_CorruptCounter(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, counterFile), []byte("not a number"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := New(root).Allocate("http", "m")
	if !errors.Is(err, ErrRegistryUnavailable) {
		t.Errorf("Allocate() with corrupt counter error = %v, want ErrRegistryUnavailable", err)
	}
}

func TestRegistry_ConcurrentAllocations(t *testing.T) {
	root := t.TempDir()

	const n = 10
	ids := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Distinct timestamps are not guaranteed here, so give each
			// allocation its own model name to keep directories apart.
			rec, err := New(root).Allocate("http", strings.Repeat("m", i+1))
			if err != nil {
				t.Errorf("Allocate() error = %v", err)
				return
			}
			ids[i] = rec.ID
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("duplicate run ID %d", id)
		}
		seen[id] = true
	}

	data, err := os.ReadFile(filepath.Join(root, counterFile))
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(data)); got != "10" {
		t.Errorf("final counter = %s, want 10", got)
	}
}

func TestRegistry_DirectoryNameTimestamp(t *testing.T) {
	root := t.TempDir()
	r := New(root)
	r.now = func() time.Time {
		return time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)
	}

	rec, err := r.Allocate("http", "gpt/4o mini")
	if err != nil {
		t.Fatalf("Allocate() error = %v", err)
	}
	want := "run_1_gpt-4o-mini_20260314_150926"
	if filepath.Base(rec.Dir) != want {
		t.Errorf("Dir = %s, want %s", filepath.Base(rec.Dir), want)
	}
}
