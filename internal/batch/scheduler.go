// Package batch triggers recurring evaluation sweeps on cron schedules.
package batch

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler fires sweeps when their cron expressions come due. At most
// one instance of each sweep runs at a time.
type Scheduler struct {
	sweeps  map[string]SweepConfig
	parser  cron.Parser
	lastRun map[string]time.Time
	running map[string]bool
	mu      sync.RWMutex
}

// NewScheduler validates the sweeps and builds a scheduler
func NewScheduler(sweeps []SweepConfig) (*Scheduler, error) {
	s := &Scheduler{
		sweeps:  make(map[string]SweepConfig),
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		lastRun: make(map[string]time.Time),
		running: make(map[string]bool),
	}

	for _, cfg := range sweeps {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		s.sweeps[cfg.Name] = cfg
	}

	return s, nil
}

// ParseCron parses a standard five-field cron expression
func ParseCron(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}

// NextRun returns the next scheduled time for a sweep
func (s *Scheduler) NextRun(name string) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.sweeps[name]
	if !ok {
		return time.Time{}
	}
	sched, err := s.parser.Parse(cfg.Cron)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(time.Now())
}

// ShouldRun reports whether a sweep is due and not already running
func (s *Scheduler) ShouldRun(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cfg, ok := s.sweeps[name]
	if !ok || s.running[name] {
		return false
	}
	sched, err := s.parser.Parse(cfg.Cron)
	if err != nil {
		return false
	}

	last := s.lastRun[name]
	if last.IsZero() {
		last = time.Now().Add(-24 * time.Hour)
	}
	return time.Now().After(sched.Next(last))
}

func (s *Scheduler) markRunning(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[name] = true
}

func (s *Scheduler) markComplete(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running[name] = false
	s.lastRun[name] = time.Now()
}

// Sweep returns the config for a named sweep
func (s *Scheduler) Sweep(name string) (SweepConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.sweeps[name]
	return cfg, ok
}

// ListSweeps returns all sweep names
func (s *Scheduler) ListSweeps() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.sweeps))
	for name := range s.sweeps {
		names = append(names, name)
	}
	return names
}

// Run polls every minute and launches due sweeps until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context, runFunc func(SweepConfig) error) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, name := range s.ListSweeps() {
				if !s.ShouldRun(name) {
					continue
				}
				cfg, _ := s.Sweep(name)
				s.markRunning(name)
				go func(c SweepConfig) {
					if err := runFunc(c); err != nil {
						log.Printf("sweep %s failed: %v", c.Name, err)
					}
					s.markComplete(c.Name)
				}(cfg)
			}
		}
	}
}
