package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/studyrag/internal/config"
)

var version = "dev"

var (
	noColor bool
	remote  bool
)

var rootCmd = &cobra.Command{
	Use:   "studyrag",
	Short: "Study assistant that answers only from your own notes",
	Long: `studyrag indexes your study notes (PDF, DOCX, HTML, text) and answers
questions, writes revision notes and generates MCQs grounded only in them,
using a local Ollama model.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().BoolVar(&remote, "remote", false, "send commands to a running studyrag server instead of working in-process")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(recallCmd)
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

func initLogging(cfg config.Config) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	initLogging(cfg)
	return cfg, nil
}
