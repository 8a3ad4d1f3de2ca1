// Package producer defines the answer producer boundary: the external
// collaborators that turn a task into an answer payload.
package producer

import (
	"context"
	"fmt"

	"github.com/safebench/mmbench/internal/domain"
)

// AnswerProducer invokes an external backend for one task attempt.
// Implementations must honor ctx cancellation; the dispatcher applies the
// per-call timeout through it.
type AnswerProducer interface {
	Invoke(ctx context.Context, task *domain.Task) (*domain.AnswerPayload, error)
}

// Error is a structured producer failure. Status carries the transport
// status code when one exists; Permanent marks failures that must not be
// retried.
type Error struct {
	Status    int
	Permanent bool
	Msg       string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("producer error (status %d): %s", e.Status, e.Msg)
	}
	return "producer error: " + e.Msg
}

// RateLimited reports whether the error is a rate-limit signal.
func (e *Error) RateLimited() bool {
	return e.Status == 429
}
