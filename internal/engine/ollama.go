package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/kalambet/studyrag/internal/ollama"
)

// OllamaEngine adapts the internal/ollama.Client to the Engine interface.
type OllamaEngine struct {
	client *ollama.Client
}

// NewOllamaEngine creates an OllamaEngine backed by an Ollama server at baseURL.
func NewOllamaEngine(baseURL string) *OllamaEngine {
	return &OllamaEngine{client: ollama.New(baseURL)}
}

func (e *OllamaEngine) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var msgs []ollama.Message
	if req.System != "" {
		msgs = append(msgs, ollama.Message{Role: "system", Content: req.System})
	}
	msgs = append(msgs, ollama.Message{Role: "user", Content: req.Prompt})

	out, err := e.client.Chat(ctx, req.Model, msgs, ollama.ChatOptions{
		Temperature: req.Temperature,
		JSON:        req.JSON,
	})
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && req.Timeout > 0 {
			return "", &TimeoutError{Model: req.Model, Timeout: req.Timeout}
		}
		var se *ollama.StatusError
		if errors.As(err, &se) {
			return "", &RunnerError{Command: "POST /api/chat", Model: req.Model, Stderr: se.Body, Err: err}
		}
		return "", fmt.Errorf("generate with %s: %w", req.Model, err)
	}
	return out, nil
}

func (e *OllamaEngine) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	return e.client.Embed(ctx, model, texts)
}

func (e *OllamaEngine) IsRunning(ctx context.Context) bool {
	return e.client.IsRunning(ctx)
}

func (e *OllamaEngine) ListModels(ctx context.Context) ([]string, error) {
	return e.client.ListModels(ctx)
}

func (e *OllamaEngine) HasModel(ctx context.Context, name string) bool {
	return e.client.HasModel(ctx, name)
}
