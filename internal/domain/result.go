package domain

import "time"

// AnswerPayload is what a producer returns for one attempt.
type AnswerPayload struct {
	Content   string            `json:"content"`
	Artifacts []string          `json:"artifacts,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// Outcome is the classified result of one producer attempt.
type Outcome struct {
	Kind    OutcomeKind
	Payload *AnswerPayload
	Reason  string
}

// Success wraps a payload into an accepting outcome.
func Success(p *AnswerPayload) Outcome {
	return Outcome{Kind: OutcomeSuccess, Payload: p}
}

// Transient marks an attempt as retryable.
func Transient(reason string) Outcome {
	return Outcome{Kind: OutcomeTransient, Reason: reason}
}

// Fatal marks an attempt as terminal and not retryable.
func Fatal(reason string) Outcome {
	return Outcome{Kind: OutcomeFatal, Reason: reason}
}

// Result is one line of the run's append-only log: the terminal record of a
// task, carrying the sequence number so consumers can reconstruct order.
type Result struct {
	Seq        int            `json:"seq"`
	TaskID     string         `json:"task_id"`
	Category   string         `json:"category"`
	Status     TaskState      `json:"status"`
	Attempts   int            `json:"attempts"`
	Payload    *AnswerPayload `json:"payload,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	FinishedAt time.Time      `json:"finished_at"`
}
