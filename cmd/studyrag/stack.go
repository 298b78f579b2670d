package main

import (
	"context"
	"fmt"
	"os"

	"github.com/kalambet/studyrag/internal/config"
	"github.com/kalambet/studyrag/internal/engine"
	"github.com/kalambet/studyrag/internal/grounded"
	"github.com/kalambet/studyrag/internal/pipeline"
	"github.com/kalambet/studyrag/internal/retrieval"
	"github.com/kalambet/studyrag/internal/storage"
)

// stack is the in-process study pipeline and what it owns.
type stack struct {
	store    *storage.Store
	engine   engine.Engine
	pipeline *pipeline.Pipeline
	session  *pipeline.Session
}

func (s *stack) Close() error {
	return s.store.Close()
}

// buildStack checks that the model runtime is up with both models present,
// opens storage and wires the pipeline.
func buildStack(ctx context.Context, cfg config.Config) (*stack, error) {
	eng, err := engine.Detect(engine.DetectConfig{
		Backend:       cfg.Engine.Backend,
		OllamaBaseURL: cfg.Ollama.BaseURL,
		OllamaBinary:  cfg.Ollama.Binary,
	})
	if err != nil {
		return nil, fmt.Errorf("detecting inference engine: %w", err)
	}
	if err := engine.EnsureReady(ctx, eng, cfg.Ollama.ChatModel, cfg.Ollama.EmbedModel, os.Stderr); err != nil {
		return nil, err
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	embedder := retrieval.NewEmbedder(eng, cfg.Ollama.EmbedModel, retrieval.EmbedderOptions{
		BatchSize:   cfg.Embedding.BatchSize,
		Concurrency: cfg.Embedding.Concurrency,
		CacheSize:   cfg.Embedding.CacheSize,
	})
	if err := embedder.Init(ctx); err != nil {
		store.Close()
		return nil, err
	}

	index := retrieval.NewIndex(retrieval.NewSQLiteStore(store.DB()), embedder, retrieval.DefaultCollection)
	retriever := retrieval.NewRetriever(index, embedder, nil, retrieval.RetrieverOptions{
		ChunkSize:    cfg.Retrieval.ChunkSize,
		ChunkOverlap: cfg.Retrieval.ChunkOverlap,
		ScopeToNotes: cfg.Retrieval.ScopeToNotes,
	})
	generator := grounded.NewGenerator(eng, grounded.Options{
		MaxContextChars: cfg.Generation.MaxContextChars,
		Timeout:         cfg.Generation.TimeoutDuration(),
		VerifyEvidence:  cfg.Generation.VerifyEvidence,
	})
	p := pipeline.New(retriever, generator, store, pipeline.Options{
		Model: cfg.Ollama.ChatModel,
		TopK:  cfg.Retrieval.TopK,
	})

	return &stack{
		store:    store,
		engine:   eng,
		pipeline: p,
		session:  pipeline.NewSession(p),
	}, nil
}
