package batch

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseCron(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 22 * * *", false},   // 10 PM daily
		{"0 12 * * 1-5", false}, // noon weekdays
		{"*/5 * * * *", false},  // every 5 minutes
		{"invalid", true},
	}

	for _, tt := range tests {
		_, err := ParseCron(tt.expr)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseCron(%q) error = %v, wantErr %v", tt.expr, err, tt.wantErr)
		}
	}
}

func TestSweepConfig_Validate(t *testing.T) {
	cfg := SweepConfig{
		Name:         "nightly",
		Cron:         "0 22 * * *",
		SamplingRate: 0.12,
		MaxTasks:     100,
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config should not error: %v", err)
	}

	cfg.Name = ""
	if err := cfg.Validate(); err == nil {
		t.Error("empty name should error")
	}

	cfg = SweepConfig{Name: "bad-rate", Cron: "0 22 * * *", SamplingRate: 2}
	if err := cfg.Validate(); err == nil {
		t.Error("rate above 1 should error")
	}

	// Zero rate defaults to the full catalog.
	cfg = SweepConfig{Name: "full", Cron: "0 22 * * *"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.SamplingRate != 1.0 {
		t.Errorf("SamplingRate = %v, want 1.0", cfg.SamplingRate)
	}
}

func TestScheduler_NextRun(t *testing.T) {
	cfg := SweepConfig{Name: "test", Cron: "0 22 * * *"}

	sched, err := NewScheduler([]SweepConfig{cfg})
	if err != nil {
		t.Fatal(err)
	}

	next := sched.NextRun("test")
	if next.IsZero() {
		t.Error("NextRun should return a time")
	}
	if !next.After(time.Now()) {
		t.Error("NextRun should be in the future")
	}
}

func TestScheduler_ShouldRun(t *testing.T) {
	cfg := SweepConfig{Name: "test", Cron: "* * * * *"}

	sched, err := NewScheduler([]SweepConfig{cfg})
	if err != nil {
		t.Fatal(err)
	}

	sched.lastRun["test"] = time.Now().Add(-2 * time.Minute)
	if !sched.ShouldRun("test") {
		t.Error("should run after cron interval passed")
	}

	sched.running["test"] = true
	if sched.ShouldRun("test") {
		t.Error("should not run while already running")
	}
}

func TestLoadScheduleConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schedule.toml")
	content := `
[[sweep]]
name = "nightly-sample"
cron = "0 22 * * *"
sampling_rate = 0.12
seed = 42
categories = ["01-Illegal_Activitiy"]
max_tasks = 200
model = "qwen-vl"

[[sweep]]
name = "weekly-full"
cron = "0 3 * * 0"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadScheduleConfig(path)
	if err != nil {
		t.Fatalf("LoadScheduleConfig() error = %v", err)
	}
	if len(cfg.Sweeps) != 2 {
		t.Fatalf("sweeps = %d, want 2", len(cfg.Sweeps))
	}
	if cfg.Sweeps[0].SamplingRate != 0.12 || cfg.Sweeps[0].MaxTasks != 200 {
		t.Errorf("first sweep = %+v", cfg.Sweeps[0])
	}
	if cfg.Sweeps[1].SamplingRate != 1.0 {
		t.Errorf("second sweep rate = %v, want default 1.0", cfg.Sweeps[1].SamplingRate)
	}
}

func TestLoadScheduleConfig_Missing(t *testing.T) {
	cfg, err := LoadScheduleConfig(filepath.Join(t.TempDir(), "none.toml"))
	if err != nil {
		t.Fatalf("LoadScheduleConfig() error = %v", err)
	}
	if len(cfg.Sweeps) != 0 {
		t.Errorf("sweeps = %d, want 0", len(cfg.Sweeps))
	}
}
