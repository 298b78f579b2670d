package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/kalambet/studyrag/internal/retrieval"
	"github.com/kalambet/studyrag/internal/storage"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

// truncate shortens s to at most n characters, marking the cut with "...".
func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func writeSources(w io.Writer, sources []retrieval.Source) {
	if len(sources) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}
	for _, s := range sources {
		header := fmt.Sprintf("#%d", s.Rank)
		fmt.Fprintf(w, "\n%s  notes=%s chunk_id=%d distance=%.4f\n",
			colorize(colorBold, header), s.NotesHash, s.ChunkID, s.Distance)
		fmt.Fprintf(w, "  %s\n", truncate(s.Chunk, 500))
	}
}

func writeDocuments(w io.Writer, docs []storage.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(w, "No documents indexed.")
		return
	}
	for _, d := range docs {
		fmt.Fprintf(w, "%s  %s  %4d chunks  %s\n",
			colorize(colorCyan, d.NotesHash),
			d.IndexedAt.Local().Format("2006-01-02 15:04"),
			d.ChunkCount,
			truncate(d.Title, 60),
		)
	}
}
