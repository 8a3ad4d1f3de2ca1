package sink

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/safebench/mmbench/internal/domain"
)

func newTestSink(t *testing.T) (*Sink, *domain.RunRecord) {
	t.Helper()
	rec := domain.NewRunRecord(1, t.TempDir(), "http", "m")
	s, err := New(rec)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s, rec
}

func result(seq int, status domain.TaskState) *domain.Result {
	return &domain.Result{
		Seq:        seq,
		TaskID:     fmt.Sprintf("cat/%d", seq),
		Category:   "cat",
		Status:     status,
		Attempts:   1,
		FinishedAt: time.Now().UTC(),
	}
}

func readLines(t *testing.T, dir string) []*domain.Result {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, ResultsFile))
	if err != nil {
		t.Fatalf("opening results: %v", err)
	}
	defer f.Close()

	var out []*domain.Result
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var res domain.Result
		if err := json.Unmarshal(scanner.Bytes(), &res); err != nil {
			t.Fatalf("line %d not well-formed: %v", len(out), err)
		}
		out = append(out, &res)
	}
	return out
}

func TestSink_RecordsWellFormedLines(t *testing.T) {
	s, rec := newTestSink(t)

	for i := 0; i < 5; i++ {
		status := domain.TaskSuccess
		if i == 3 {
			status = domain.TaskFatal
		}
		if err := s.Record(result(i, status)); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	// Records are durable before Close.
	lines := readLines(t, rec.Dir)
	if len(lines) != 5 {
		t.Fatalf("lines = %d, want 5", len(lines))
	}
	for i, res := range lines {
		if res.Seq != i {
			t.Errorf("line %d has seq %d", i, res.Seq)
		}
	}

	if err := s.Close(domain.RunCompleted, domain.StopNone); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if rec.Tally.Completed != 4 || rec.Tally.Failed != 1 {
		t.Errorf("Tally = %+v, want 4 completed, 1 failed", rec.Tally)
	}
}

func TestSink_ConcurrentRecorders(t *testing.T) {
	s, rec := newTestSink(t)

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Record(result(i, domain.TaskSuccess)); err != nil {
				t.Errorf("Record(%d) error = %v", i, err)
			}
		}(i)
	}
	wg.Wait()
	if err := s.Close(domain.RunCompleted, domain.StopNone); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	lines := readLines(t, rec.Dir)
	if len(lines) != n {
		t.Fatalf("lines = %d, want %d", len(lines), n)
	}
	seen := make(map[int]bool)
	for _, res := range lines {
		if seen[res.Seq] {
			t.Errorf("seq %d appears twice", res.Seq)
		}
		seen[res.Seq] = true
	}
}

func TestSink_SummaryWrittenIncrementally(t *testing.T) {
	s, rec := newTestSink(t)
	s.summaryEvery = 2

	for i := 0; i < 3; i++ {
		if err := s.Record(result(i, domain.TaskSuccess)); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	// After 2 records the summary must already exist on disk.
	data, err := os.ReadFile(filepath.Join(rec.Dir, SummaryFile))
	if err != nil {
		t.Fatalf("summary not written incrementally: %v", err)
	}
	var partial domain.RunRecord
	if err := json.Unmarshal(data, &partial); err != nil {
		t.Fatalf("summary not well-formed: %v", err)
	}
	if partial.Tally.Completed != 2 {
		t.Errorf("partial summary completed = %d, want 2", partial.Tally.Completed)
	}

	if err := s.Close(domain.RunStopped, domain.StopErrorRate); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err = os.ReadFile(filepath.Join(rec.Dir, SummaryFile))
	if err != nil {
		t.Fatal(err)
	}
	var final domain.RunRecord
	if err := json.Unmarshal(data, &final); err != nil {
		t.Fatal(err)
	}
	if final.Status != domain.RunStopped || final.StopReason != domain.StopErrorRate {
		t.Errorf("final summary status = %s/%s", final.Status, final.StopReason)
	}
	if final.FinishedAt == nil {
		t.Error("final summary missing finished_at")
	}
}

func TestSink_RecordAfterClose(t *testing.T) {
	s, _ := newTestSink(t)
	if err := s.Close(domain.RunCompleted, domain.StopNone); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Record(result(0, domain.TaskSuccess)); err == nil {
		t.Error("Record() after Close should fail")
	}
}
