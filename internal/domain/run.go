package domain

import "time"

// Tally is the live per-run count of terminal and retried attempts.
type Tally struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Retried   int `json:"retried"`
}

// CategoryTally counts terminal outcomes within one category.
type CategoryTally struct {
	Success int `json:"success"`
	Fatal   int `json:"fatal"`
}

// RunRecord describes one invocation of the harness. Created once by the
// registry; mutated only by the result sink.
type RunRecord struct {
	ID         int64                     `json:"id"`
	Dir        string                    `json:"dir"`
	Provider   string                    `json:"provider"`
	Model      string                    `json:"model"`
	Status     RunStatus                 `json:"status"`
	StartedAt  time.Time                 `json:"started_at"`
	FinishedAt *time.Time                `json:"finished_at,omitempty"`
	Tally      Tally                     `json:"tally"`
	Categories map[string]*CategoryTally `json:"categories"`
	StopReason StopReason                `json:"stop_reason,omitempty"`
}

// NewRunRecord creates a running record with an empty tally.
func NewRunRecord(id int64, dir, provider, model string) *RunRecord {
	return &RunRecord{
		ID:         id,
		Dir:        dir,
		Provider:   provider,
		Model:      model,
		Status:     RunRunning,
		StartedAt:  time.Now().UTC(),
		Categories: make(map[string]*CategoryTally),
	}
}

// Apply folds one terminal result into the tallies.
func (r *RunRecord) Apply(res *Result) {
	ct := r.Categories[res.Category]
	if ct == nil {
		ct = &CategoryTally{}
		r.Categories[res.Category] = ct
	}
	if res.Attempts > 1 {
		r.Retried(res.Attempts - 1)
	}
	switch res.Status {
	case TaskSuccess:
		r.Tally.Completed++
		ct.Success++
	case TaskFatal:
		r.Tally.Failed++
		ct.Fatal++
	}
}

// Retried adds n retries to the tally.
func (r *RunRecord) Retried(n int) {
	r.Tally.Retried += n
}

// Finish stamps the end time and final status.
func (r *RunRecord) Finish(status RunStatus, reason StopReason) {
	now := time.Now().UTC()
	r.FinishedAt = &now
	r.Status = status
	r.StopReason = reason
}
