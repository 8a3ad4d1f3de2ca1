// Package dispatch runs the worker pool that drives tasks through the
// producer, classifies failures, retries transient ones with backoff, and
// hands terminal results to the sink.
package dispatch

import (
	"context"
	"errors"
	"strings"

	"github.com/safebench/mmbench/internal/domain"
	"github.com/safebench/mmbench/internal/producer"
)

// specialTokens are model control tokens. An answer drowning in them is a
// generation failure, not a real answer.
var specialTokens = []string{"<|im_start|>", "<|im_end|>", "<|endoftext|>"}

// DefaultSignatures returns the built-in content signatures that mark an
// otherwise well-formed answer as a failed attempt. All matching is
// case-insensitive. The set is configuration; callers can replace it.
func DefaultSignatures() []string {
	return []string{
		"[error]",
		"error code: 404",
		"error code: 429",
		"<your answer> and ends with",
		"please generate the next thought and action",
		"if you can get the answer, please also reply with answer",
		"vsp completed but no clear answer found",
		"vsp error:",
	}
}

// Classifier decides whether one attempt succeeded, should be retried, or
// failed for good.
type Classifier struct {
	// Signatures are lowercase substrings that mark a transient content
	// failure. Empty means DefaultSignatures.
	Signatures []string
	// Predicate, when set, is consulted after the signature scan. A
	// non-empty reason marks the attempt as transient.
	Predicate func(content string) (reason string, failed bool)
}

// Classify maps one attempt's payload or transport error to an outcome.
// The reason string doubles as the error key the auto-stop monitor
// aggregates on, so equal failures produce equal reasons.
func (c *Classifier) Classify(payload *domain.AnswerPayload, err error) domain.Outcome {
	if err != nil {
		return c.classifyError(err)
	}
	if payload == nil {
		return domain.Fatal("no payload and no error")
	}
	return c.classifyContent(payload)
}

func (c *Classifier) classifyError(err error) domain.Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.Transient("timeout")
	}
	var perr *producer.Error
	if errors.As(err, &perr) {
		switch {
		case perr.RateLimited():
			return domain.Transient("rate_limit")
		case perr.Permanent:
			return domain.Fatal(perr.Msg)
		default:
			return domain.Transient(perr.Msg)
		}
	}
	return domain.Transient(err.Error())
}

func (c *Classifier) classifyContent(payload *domain.AnswerPayload) domain.Outcome {
	content := strings.TrimSpace(payload.Content)
	if content == "" {
		return domain.Transient("empty_answer")
	}

	lower := strings.ToLower(content)
	signatures := c.Signatures
	if len(signatures) == 0 {
		signatures = DefaultSignatures()
	}
	for _, sig := range signatures {
		if strings.Contains(lower, sig) {
			return domain.Transient("signature:" + sig)
		}
	}

	if tokenSpam(payload.Content) {
		return domain.Transient("token_spam")
	}
	if degenerate(content) {
		return domain.Transient("degenerate_answer")
	}

	if c.Predicate != nil {
		if reason, failed := c.Predicate(content); failed {
			return domain.Transient(reason)
		}
	}
	return domain.Success(payload)
}

// tokenSpam reports whether special tokens repeat enough to dominate the
// answer (over half its length).
func tokenSpam(answer string) bool {
	for _, token := range specialTokens {
		count := strings.Count(answer, token)
		if count > 5 && len(token)*count > len(answer)/2 {
			return true
		}
	}
	return false
}

// degenerate reports whether a short answer has almost no substance once
// special tokens are stripped.
func degenerate(content string) bool {
	if len(content) >= 100 {
		return false
	}
	stripped := content
	for _, token := range specialTokens {
		stripped = strings.ReplaceAll(stripped, token, "")
	}
	return len(strings.TrimSpace(stripped)) < 20
}
