package engine

import (
	"context"
	"time"
)

// Engine abstracts the local language-model runtime. The generator and the
// embedder use this interface instead of depending on a concrete client.
type Engine interface {
	// Generate runs one prompt against the given model and returns the raw
	// completion text.
	Generate(ctx context.Context, req GenerateRequest) (string, error)

	// Embed returns one embedding vector per text, in input order.
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)

	// IsRunning reports whether the inference backend is reachable.
	IsRunning(ctx context.Context) bool

	// ListModels returns the names of all locally available models.
	ListModels(ctx context.Context) ([]string, error)

	// HasModel reports whether the given model name is available locally.
	HasModel(ctx context.Context, name string) bool
}

// GenerateRequest is a single non-streaming completion request.
type GenerateRequest struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	// JSON asks the runtime to constrain output to a JSON value where it
	// supports that.
	JSON bool
	// Timeout bounds the whole call. Zero means no bound beyond ctx.
	Timeout time.Duration
}
