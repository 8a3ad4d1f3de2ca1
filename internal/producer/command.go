package producer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/google/uuid"

	"github.com/safebench/mmbench/internal/domain"
)

var invocationNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// CommandProducer runs an external tool as a subprocess. The invocation is
// written to the tool's stdin as one JSON document; the tool's stdout is
// taken verbatim as the answer content.
type CommandProducer struct {
	Command string
	Args    []string
	// Env holds named configuration values forwarded to the tool as
	// environment variables. The producer does not interpret them.
	Env map[string]string
}

type invocation struct {
	InvocationID string `json:"invocation_id"`
	TaskID       string `json:"task_id"`
	Category     string `json:"category"`
	Question     string `json:"question"`
	ImagePath    string `json:"image_path,omitempty"`
}

// Invoke runs the tool once for the task's current attempt.
func (p *CommandProducer) Invoke(ctx context.Context, task *domain.Task) (*domain.AnswerPayload, error) {
	inv := invocation{
		InvocationID: attemptID(task),
		TaskID:       task.Entry.ID,
		Category:     task.Entry.Category,
		Question:     task.Entry.Question,
		ImagePath:    task.Entry.ImageRef,
	}
	input, err := json.Marshal(inv)
	if err != nil {
		return nil, &Error{Permanent: true, Msg: fmt.Sprintf("encoding invocation: %v", err)}
	}

	cmd := exec.CommandContext(ctx, p.Command, p.Args...)
	cmd.Stdin = bytes.NewReader(input)
	cmd.Env = os.Environ()
	for k, v := range p.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Msg: fmt.Sprintf("%s: %v: %s", p.Command, err, strings.TrimSpace(stderr.String()))}
	}

	return &domain.AnswerPayload{
		Content: strings.TrimSpace(stdout.String()),
		Meta:    map[string]string{"invocation_id": inv.InvocationID},
	}, nil
}

// attemptID derives a stable identifier for one attempt of one task, so
// repeated invocations of the same attempt are recognizable to the tool.
func attemptID(task *domain.Task) string {
	key := fmt.Sprintf("%s#%d", task.Entry.ID, task.Attempts)
	return uuid.NewSHA1(invocationNamespace, []byte(key)).String()
}
