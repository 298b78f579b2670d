package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// commandRunner runs name with args, feeding stdin, and returns captured
// stdout and stderr.
type commandRunner func(ctx context.Context, name string, args []string, stdin string) (stdout, stderr string, err error)

func execRunner(ctx context.Context, name string, args []string, stdin string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = strings.NewReader(stdin)
	var out, errOut bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	err := cmd.Run()
	return out.String(), errOut.String(), err
}

// CLIEngine generates by running `ollama run <model>` as a subprocess and
// writing the prompt to its stdin. Model management and embeddings still go
// through the REST API of the embedded OllamaEngine.
type CLIEngine struct {
	*OllamaEngine
	binary string
	run    commandRunner
}

// NewCLIEngine creates a CLIEngine invoking binary for generation and
// talking to baseURL for everything else.
func NewCLIEngine(binary, baseURL string) *CLIEngine {
	if binary == "" {
		binary = "ollama"
	}
	return &CLIEngine{
		OllamaEngine: NewOllamaEngine(baseURL),
		binary:       binary,
		run:          execRunner,
	}
}

// cliPrompt lays the system and user prompts out the way `ollama run`
// receives them on stdin. An empty system prompt is omitted.
func cliPrompt(system, user string) string {
	var b strings.Builder
	if s := strings.TrimSpace(system); s != "" {
		fmt.Fprintf(&b, "SYSTEM:\n%s\n\n", s)
	}
	fmt.Fprintf(&b, "USER:\n%s\n", strings.TrimSpace(user))
	return b.String()
}

func (e *CLIEngine) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	args := []string{"run"}
	if req.JSON {
		args = append(args, "--format", "json")
	}
	args = append(args, req.Model)

	stdout, stderr, err := e.run(ctx, e.binary, args, cliPrompt(req.System, req.Prompt))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) && req.Timeout > 0 {
			return "", &TimeoutError{Model: req.Model, Timeout: req.Timeout}
		}
		return "", &RunnerError{
			Command: e.binary + " " + strings.Join(args, " "),
			Model:   req.Model,
			Stderr:  strings.TrimSpace(stderr),
			Err:     err,
		}
	}
	return strings.TrimSpace(stdout), nil
}
