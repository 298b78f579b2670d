package grounded

import (
	"testing"
)

const cellContext = "The nucleus stores DNA.\n\n---\n\nMitochondria   produce ATP\nfor the cell."

func qaWithEvidence(ev ...string) *Result {
	return &Result{Mode: ModeQA, QA: &QAResult{
		Mode:      ModeQA,
		Answer:    "DNA is in the nucleus.",
		KeyPoints: []string{"nucleus"},
		Evidence:  ev,
	}}
}

func TestVerifyEvidence_KeepsNormalizedQuotes(t *testing.T) {
	r := qaWithEvidence(`"The nucleus stores DNA."`, "mitochondria produce ATP for the cell...")
	if n := VerifyEvidence(r, cellContext); n != 0 {
		t.Fatalf("dropped %d quotes, want 0", n)
	}
	if len(r.QA.Evidence) != 2 {
		t.Errorf("evidence = %v", r.QA.Evidence)
	}
}

func TestVerifyEvidence_DropsInvented(t *testing.T) {
	r := qaWithEvidence("The nucleus stores DNA.", "Ribosomes make proteins.")
	if n := VerifyEvidence(r, cellContext); n != 1 {
		t.Fatalf("dropped %d quotes, want 1", n)
	}
	if len(r.QA.Evidence) != 1 || r.QA.Evidence[0] != "The nucleus stores DNA." {
		t.Errorf("evidence = %v", r.QA.Evidence)
	}
	if r.IsInsufficient() {
		t.Error("result with verified evidence must stay sufficient")
	}
}

func TestVerifyEvidence_DowngradesWithoutEvidence(t *testing.T) {
	r := qaWithEvidence("Ribosomes make proteins.", "  ")
	r.Sources = nil
	VerifyEvidence(r, cellContext)
	if !r.IsInsufficient() {
		t.Fatal("expected downgrade to insufficient")
	}
	if r.Missing() != noVerifiedEvidence {
		t.Errorf("missing = %q", r.Missing())
	}
	if len(r.QA.KeyPoints) != 0 {
		t.Error("key points should be emptied")
	}
}

func TestVerifyEvidence_MCQDropsUnsupportedQuestions(t *testing.T) {
	r := &Result{Mode: ModeMCQ, MCQ: &MCQResult{
		Mode:  ModeMCQ,
		Topic: "Cells",
		MCQs: []MCQ{
			{Question: "Where is DNA?", Options: []string{"A", "B", "C", "D"}, Answer: "A", Evidence: []string{"nucleus stores DNA"}},
			{Question: "What is a ribosome?", Options: []string{"A", "B", "C", "D"}, Answer: "B", Evidence: []string{"Ribosomes make proteins."}},
		},
	}}
	VerifyEvidence(r, cellContext)
	if len(r.MCQ.MCQs) != 1 || r.MCQ.MCQs[0].Question != "Where is DNA?" {
		t.Errorf("mcqs = %+v", r.MCQ.MCQs)
	}
}

func TestVerifyEvidence_NotesDowngradeKeepsTopic(t *testing.T) {
	r := &Result{Mode: ModeNotes, Notes: &NotesResult{
		Mode:          ModeNotes,
		Topic:         "Cells",
		RevisionNotes: []string{"x"},
		Evidence:      []string{"invented"},
	}}
	VerifyEvidence(r, cellContext)
	if !r.IsInsufficient() || r.Notes.Topic != "Cells" {
		t.Errorf("unexpected result: %+v", r.Notes)
	}
}

func TestVerifyEvidence_InsufficientUntouched(t *testing.T) {
	r := Insufficient(ModeQA, "", "nothing relevant")
	if n := VerifyEvidence(r, cellContext); n != 0 {
		t.Errorf("dropped %d", n)
	}
	if r.Missing() != "nothing relevant" {
		t.Errorf("missing = %q", r.Missing())
	}
}
