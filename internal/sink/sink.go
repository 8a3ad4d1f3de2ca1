// Package sink is the single writer for a run's results. Workers hand it
// terminal results; it appends them to the run's JSONL log one complete
// line per record, keeps the live tally, and persists the run summary
// incrementally so a crash leaves a usable partial record.
package sink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/safebench/mmbench/internal/domain"
)

const (
	ResultsFile = "results.jsonl"
	SummaryFile = "summary.json"

	defaultSummaryEvery = 10
)

type writeReq struct {
	res  *domain.Result
	done chan error
}

// Sink serializes all writes for one run through a single goroutine.
type Sink struct {
	mu   sync.Mutex
	rec  *domain.RunRecord
	file *os.File

	reqs    chan writeReq
	stopped chan struct{}

	// summaryEvery controls how often the summary file is rewritten.
	summaryEvery int
	sinceSummary int
}

// New opens the run's results log for appending and starts the writer.
func New(rec *domain.RunRecord) (*Sink, error) {
	f, err := os.OpenFile(filepath.Join(rec.Dir, ResultsFile),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening results log: %w", err)
	}

	s := &Sink{
		rec:          rec,
		file:         f,
		reqs:         make(chan writeReq),
		stopped:      make(chan struct{}),
		summaryEvery: defaultSummaryEvery,
	}
	go s.writer()
	return s, nil
}

// Record appends one result and updates the tally. It returns once the
// record is flushed to disk, so an acknowledged result survives a crash.
func (s *Sink) Record(res *domain.Result) error {
	req := writeReq{res: res, done: make(chan error, 1)}
	select {
	case s.reqs <- req:
		return <-req.done
	case <-s.stopped:
		return fmt.Errorf("sink closed, dropping result for task %d", res.Seq)
	}
}

// Tally returns a snapshot of the live tally for progress output.
func (s *Sink) Tally() domain.Tally {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Tally
}

// Close stops the writer, stamps the run record and writes the final
// summary.
func (s *Sink) Close(status domain.RunStatus, reason domain.StopReason) error {
	close(s.stopped)

	s.rec.Finish(status, reason)
	sumErr := s.writeSummary()
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("closing results log: %w", err)
	}
	return sumErr
}

func (s *Sink) writer() {
	for {
		select {
		case req := <-s.reqs:
			req.done <- s.write(req.res)
		case <-s.stopped:
			return
		}
	}
}

// write appends one record as a single Write call followed by a sync.
func (s *Sink) write(res *domain.Result) error {
	line, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding result %d: %w", res.Seq, err)
	}
	if _, err := s.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("appending result %d: %w", res.Seq, err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("flushing result %d: %w", res.Seq, err)
	}

	s.mu.Lock()
	s.rec.Apply(res)
	s.mu.Unlock()
	s.sinceSummary++
	if s.sinceSummary >= s.summaryEvery {
		s.sinceSummary = 0
		if err := s.writeSummary(); err != nil {
			return err
		}
	}
	return nil
}

// writeSummary rewrites the summary file atomically via rename.
func (s *Sink) writeSummary() error {
	data, err := json.MarshalIndent(s.rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	path := filepath.Join(s.rec.Dir, SummaryFile)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replacing summary: %w", err)
	}
	return nil
}
