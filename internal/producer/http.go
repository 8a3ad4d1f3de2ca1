package producer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/safebench/mmbench/internal/domain"
)

// HTTPProducer calls an OpenAI-compatible chat completion endpoint with
// the task's question and image.
type HTTPProducer struct {
	Endpoint string
	APIKey   string
	Model    string
	Client   *http.Client
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Invoke posts one chat completion request for the task.
func (p *HTTPProducer) Invoke(ctx context.Context, task *domain.Task) (*domain.AnswerPayload, error) {
	parts := []contentPart{{Type: "text", Text: task.Entry.Question}}
	if task.Entry.ImageRef != "" {
		data, err := os.ReadFile(task.Entry.ImageRef)
		if err != nil {
			return nil, &Error{Permanent: true, Msg: fmt.Sprintf("reading image %s: %v", task.Entry.ImageRef, err)}
		}
		parts = append(parts, contentPart{
			Type: "image_url",
			ImageURL: &imageURL{
				URL: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data),
			},
		})
	}

	body, err := json.Marshal(chatRequest{
		Model:    p.Model,
		Messages: []chatMessage{{Role: "user", Content: parts}},
	})
	if err != nil {
		return nil, &Error{Permanent: true, Msg: fmt.Sprintf("encoding request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Permanent: true, Msg: fmt.Sprintf("building request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &Error{Msg: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Msg: fmt.Sprintf("reading response: %v", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &Error{
			Status: resp.StatusCode,
			// Client errors other than timeout and rate limit will not
			// get better on retry.
			Permanent: resp.StatusCode >= 400 && resp.StatusCode < 500 &&
				resp.StatusCode != http.StatusTooManyRequests &&
				resp.StatusCode != http.StatusRequestTimeout,
			Msg: string(raw),
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &Error{Msg: fmt.Sprintf("decoding response: %v", err)}
	}
	if parsed.Error != nil {
		return nil, &Error{Msg: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 {
		return nil, &Error{Msg: "response has no choices"}
	}

	return &domain.AnswerPayload{
		Content: parsed.Choices[0].Message.Content,
		Meta:    map[string]string{"model": p.Model},
	}, nil
}
