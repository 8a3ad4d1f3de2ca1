package producer

import (
	"context"

	"github.com/safebench/mmbench/internal/domain"
)

// StaticProducer answers from a fixed function. Used in tests and dry runs.
type StaticProducer struct {
	Fn func(task *domain.Task) (*domain.AnswerPayload, error)
}

func (p *StaticProducer) Invoke(ctx context.Context, task *domain.Task) (*domain.AnswerPayload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Fn == nil {
		return &domain.AnswerPayload{Content: "ok"}, nil
	}
	return p.Fn(task)
}
