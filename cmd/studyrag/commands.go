package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/studyrag/internal/config"
	"github.com/kalambet/studyrag/internal/engine"
	"github.com/kalambet/studyrag/internal/export"
	"github.com/kalambet/studyrag/internal/extract"
	"github.com/kalambet/studyrag/internal/grounded"
	"github.com/kalambet/studyrag/internal/pipeline"
	"github.com/kalambet/studyrag/internal/storage"
)

var stdin io.Reader = os.Stdin

// readSource builds the study source from --text and --file. "--text -"
// reads the notes from stdin.
func readSource(cmd *cobra.Command) (pipeline.Source, error) {
	text, _ := cmd.Flags().GetString("text")
	file, _ := cmd.Flags().GetString("file")

	if text == "" && file == "" {
		return pipeline.Source{}, fmt.Errorf("one of --text or --file is required")
	}

	var src pipeline.Source
	if text == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return src, fmt.Errorf("reading stdin: %w", err)
		}
		text = string(data)
	}
	src.PastedText = text

	if file != "" {
		if !extract.Supported(file) {
			printWarning("%s: unsupported file type (want one of %s)", file, strings.Join(extract.SupportedExtensions, ", "))
		}
		data, err := os.ReadFile(file)
		if err != nil {
			return src, fmt.Errorf("reading file: %w", err)
		}
		src.File = &extract.File{Name: file, Data: data}
	}
	return src, nil
}

func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("text", "", "study notes as text (- reads stdin); wins over --file")
	cmd.Flags().String("file", "", "study notes file (.pdf, .docx, .html, .txt, .md)")
}

// --- index ---

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Index study notes",
	Long: `Index study notes so questions can be answered from them.

Examples:
  studyrag index --file ./biology.pdf
  studyrag index --text "Photosynthesis converts light energy into chemical energy."
  cat notes.md | studyrag index --text -`,
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := readSource(cmd)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		printStep("Extracting, chunking and embedding notes...")
		info, err := b.Index(ctx, src)
		if err != nil {
			return err
		}

		printSuccess("Indexed notes %s", info.NotesHash)
		printStatus("Characters", "%d", info.NotesLen)
		printStatus("Chunks", "%d", info.Chunks)
		return nil
	},
}

func init() {
	addSourceFlags(indexCmd)
}

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a question, write revision notes or generate MCQs from notes",
	Long: `Answer a question, write revision notes or generate MCQs using only
the given notes. The notes are indexed first if they changed.

Examples:
  studyrag ask --file ./biology.pdf --question "What do plants use to convert light?"
  studyrag ask --file ./biology.pdf --question "Photosynthesis" --mode notes
  studyrag ask --text - --question "Cells" --mode mcq --format json --output ./out/`,
	RunE: func(cmd *cobra.Command, args []string) error {
		question, _ := cmd.Flags().GetString("question")
		mode, _ := cmd.Flags().GetString("mode")
		model, _ := cmd.Flags().GetString("model")
		topK, _ := cmd.Flags().GetInt("top-k")
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")

		if strings.TrimSpace(question) == "" {
			return fmt.Errorf("--question is required")
		}
		if _, err := grounded.ParseMode(mode); err != nil {
			return err
		}
		src, err := readSource(cmd)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		printStep("Retrieving context and generating answer...")
		res, err := b.Ask(ctx, src, pipeline.AskRequest{
			Question: question,
			Mode:     mode,
			Model:    model,
			TopK:     topK,
		})
		if err != nil {
			return err
		}
		if res.IsInsufficient() {
			printWarning("Insufficient context: %s", res.Missing())
		}
		return writeResult(os.Stdout, res, format, output, time.Now())
	},
}

func init() {
	addSourceFlags(askCmd)
	askCmd.Flags().String("question", "", "question or topic")
	askCmd.Flags().String("mode", "qa", "qa, notes or mcq")
	askCmd.Flags().String("model", "", "chat model (default from config)")
	askCmd.Flags().Int("top-k", 0, "chunks to retrieve (default from config)")
	askCmd.Flags().String("format", "txt", "output format: txt or json")
	askCmd.Flags().String("output", "", "write the result to this file, or into this directory under a timestamped name")
}

// writeResult renders res as format. With no output path it goes to w; a
// path ending in a separator or naming a directory gets a timestamped file
// name.
func writeResult(w io.Writer, res *grounded.Result, format, output string, now time.Time) error {
	body, contentType, err := export.Render(res, format)
	if err != nil {
		return err
	}
	if output == "" {
		_, err := fmt.Fprintln(w, string(body))
		return err
	}

	ext := "json"
	if contentType == export.ContentTypeText {
		ext = "txt"
	}
	if strings.HasSuffix(output, string(os.PathSeparator)) {
		if err := os.MkdirAll(output, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	if fi, err := os.Stat(output); err == nil && fi.IsDir() {
		output = filepath.Join(output, export.FileName(now, ext))
	}
	if err := os.WriteFile(output, body, 0o644); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}
	printSuccess("Result written to %s", output)
	return nil
}

// --- recall ---

var recallCmd = &cobra.Command{
	Use:   "recall <query>",
	Short: "Search every indexed document",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		limit, _ := cmd.Flags().GetInt("limit")

		ctx := cmd.Context()
		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		sources, err := b.Recall(ctx, query, limit)
		if err != nil {
			return err
		}
		writeSources(os.Stdout, sources)
		return nil
	},
}

func init() {
	recallCmd.Flags().Int("limit", 5, "maximum number of results")
}

// --- docs ---

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List or delete indexed documents",
}

var docsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed documents, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		ctx := cmd.Context()
		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		docs, err := b.Documents(ctx, limit)
		if err != nil {
			return err
		}
		writeDocuments(os.Stdout, docs)
		return nil
	},
}

var docsDeleteCmd = &cobra.Command{
	Use:   "delete <notes-hash>",
	Short: "Remove indexed notes and their chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		b, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer b.Close()

		n, err := b.DeleteDocument(ctx, args[0])
		if err != nil {
			return err
		}
		printSuccess("Deleted %s (%d chunks)", args[0], n)
		return nil
	},
}

func init() {
	docsListCmd.Flags().Int("limit", 50, "maximum number of documents to list (0 for all)")
	docsCmd.AddCommand(docsListCmd)
	docsCmd.AddCommand(docsDeleteCmd)
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show studyrag system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		// Still show partial status even if config fails.
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.Server.Port))
	if err != nil {
		printStatus("Server", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	eng, err := engine.Detect(engine.DetectConfig{
		Backend:       cfg.Engine.Backend,
		OllamaBaseURL: cfg.Ollama.BaseURL,
		OllamaBinary:  cfg.Ollama.Binary,
	})
	switch {
	case err != nil:
		printStatus("Ollama", "%v", err)
	case !eng.IsRunning(ctx):
		printStatus("Ollama", "not running at %s", cfg.Ollama.BaseURL)
	default:
		printStatus("Ollama", "running at %s (%s backend)", cfg.Ollama.BaseURL, cfg.Engine.Backend)
		printStatus("Chat model", "%s%s", cfg.Ollama.ChatModel, modelState(ctx, eng, cfg.Ollama.ChatModel))
		printStatus("Embed model", "%s%s", cfg.Ollama.EmbedModel, modelState(ctx, eng, cfg.Ollama.EmbedModel))
	}

	if store, err := storage.Open(cfg.Storage.DataDir); err == nil {
		docs, err := store.ListDocuments(ctx, 0)
		if err == nil {
			printStatus("Documents", "%d", len(docs))
		}
		if v, err := schemaVersion(store); err == nil {
			printStatus("Schema", "v%d", v)
		}
		store.Close()
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

// schemaVersion returns the newest migration applied to store.
func schemaVersion(store *storage.Store) (int, error) {
	versions, err := store.AppliedMigrations()
	if err != nil {
		return 0, err
	}
	if len(versions) == 0 {
		return 0, nil
	}
	return versions[len(versions)-1], nil
}

func modelState(ctx context.Context, eng engine.Engine, model string) string {
	if eng.HasModel(ctx, model) {
		return ""
	}
	return " (missing)"
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		keys := config.ShowAll(cfg)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
