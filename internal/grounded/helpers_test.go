package grounded

import (
	"context"
	"fmt"

	"github.com/kalambet/studyrag/internal/engine"
)

// mockEngine implements engine.Engine for testing.
type mockEngine struct {
	generateFn func(ctx context.Context, req engine.GenerateRequest) (string, error)
	calls      int
	last       engine.GenerateRequest
}

func (m *mockEngine) Generate(ctx context.Context, req engine.GenerateRequest) (string, error) {
	m.calls++
	m.last = req
	return m.generateFn(ctx, req)
}
func (m *mockEngine) Embed(_ context.Context, _ string, _ []string) ([][]float32, error) {
	return nil, fmt.Errorf("not implemented")
}
func (m *mockEngine) IsRunning(_ context.Context) bool               { return true }
func (m *mockEngine) ListModels(_ context.Context) ([]string, error) { return nil, nil }
func (m *mockEngine) HasModel(_ context.Context, _ string) bool      { return true }

func replying(out string) *mockEngine {
	return &mockEngine{generateFn: func(context.Context, engine.GenerateRequest) (string, error) {
		return out, nil
	}}
}
