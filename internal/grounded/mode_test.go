package grounded

import (
	"errors"
	"strings"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"", ModeQA},
		{"qa", ModeQA},
		{" Notes ", ModeNotes},
		{"MCQ", ModeMCQ},
	}
	for _, tt := range tests {
		got, err := ParseMode(tt.in)
		if err != nil {
			t.Errorf("ParseMode(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseMode_Unknown(t *testing.T) {
	_, err := ParseMode("essay")
	if !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
}

func TestUserPrompt_PicksTemplate(t *testing.T) {
	qa := UserPrompt(ModeQA, "CTX", "Why?")
	if !strings.HasPrefix(qa, "Context:\nCTX\n\nQuestion:\nWhy?\n\n") {
		t.Errorf("qa prompt starts with %q", qa[:40])
	}
	if !strings.Contains(qa, `"mode": "qa"`) {
		t.Error("qa prompt lacks its schema")
	}

	notes := UserPrompt(ModeNotes, "CTX", "Cells")
	if !strings.Contains(notes, "Topic / Question:\nCells") || !strings.Contains(notes, `"revision_notes"`) {
		t.Error("notes prompt lacks topic or schema")
	}

	mcq := UserPrompt(ModeMCQ, "CTX", "Cells")
	if !strings.Contains(mcq, "Generate 5 MCQs") || !strings.Contains(mcq, `"answer": "A|B|C|D"`) {
		t.Error("mcq prompt lacks instructions or schema")
	}
}

func TestUserPrompt_ContextWithFormatVerbs(t *testing.T) {
	got := UserPrompt(ModeQA, "100% of {x} %s", "q")
	if !strings.Contains(got, "100% of {x} %s") {
		t.Errorf("context was altered: %q", got)
	}
}
