package grounded

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/studyrag/internal/engine"
)

const (
	DefaultMaxContextChars = 8000
	DefaultTimeout         = 120 * time.Second
)

// Options tunes a Generator. Zero values take the defaults.
type Options struct {
	MaxContextChars int
	Timeout         time.Duration
	VerifyEvidence  bool
}

// Generator turns retrieved context and a question into a validated,
// mode-shaped result.
type Generator struct {
	engine engine.Engine
	opts   Options
}

func NewGenerator(e engine.Engine, opts Options) *Generator {
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = DefaultMaxContextChars
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Generator{engine: e, opts: opts}
}

// Generate runs model once at temperature 0 over the first MaxContextChars
// characters of material. Engine errors (engine.ErrTimeout,
// engine.ErrRunnerFailed) are returned wrapped; output that is not a valid
// object for mode fails with ErrMalformedOutput. The result carries no
// sources; the caller attaches them.
func (g *Generator) Generate(ctx context.Context, model string, mode Mode, material, question string) (*Result, error) {
	switch mode {
	case ModeQA, ModeNotes, ModeMCQ:
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownMode, mode)
	}

	material = truncateRunes(material, g.opts.MaxContextChars)
	raw, err := g.engine.Generate(ctx, engine.GenerateRequest{
		Model:       model,
		System:      SystemPrompt,
		Prompt:      UserPrompt(mode, material, question),
		Temperature: 0,
		JSON:        true,
		Timeout:     g.opts.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("generating %s: %w", mode, err)
	}

	obj, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	res, err := Validate(mode, obj)
	if err != nil {
		return nil, err
	}

	if g.opts.VerifyEvidence {
		if n := VerifyEvidence(res, material); n > 0 {
			slog.Info("grounded: dropped unverified evidence",
				"mode", mode, "dropped", n, "insufficient", res.IsInsufficient())
		}
	}
	return res, nil
}

func truncateRunes(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
