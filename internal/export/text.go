package export

import (
	"fmt"
	"strings"

	"github.com/kalambet/studyrag/internal/grounded"
)

const textTitle = "AI Study Assistant (RAG) - Export"

type lines []string

func (l *lines) add(s ...string) { *l = append(*l, s...) }

func (l *lines) list(title string, items []string) {
	if len(items) == 0 {
		return
	}
	l.add(title)
	for _, it := range items {
		l.add("- " + it)
	}
	l.add("")
}

// Text renders a result for reading: the mode's fields grouped under
// headings, followed by the retrieved sources.
func Text(r *grounded.Result) string {
	var l lines
	l.add(textTitle, "Mode: "+string(r.Mode), "")

	if m := r.Missing(); m != "" {
		l.add("Missing: "+m, "")
	}

	switch {
	case r.Mode == grounded.ModeQA && r.QA != nil:
		l.add("Answer:", r.QA.Answer, "")
		l.list("Key Points:", r.QA.KeyPoints)
		l.list("Evidence (quotes from notes):", r.QA.Evidence)

	case r.Mode == grounded.ModeNotes && r.Notes != nil:
		n := r.Notes
		if n.Topic != "" {
			l.add("Topic: "+n.Topic, "")
		}
		l.list("Revision Notes:", n.RevisionNotes)
		if len(n.Definitions) > 0 {
			l.add("Definitions:")
			for _, d := range n.Definitions {
				l.add(fmt.Sprintf("- %s: %s", d.Term, d.Definition))
			}
			l.add("")
		}
		l.list("Common Mistakes:", n.CommonMistakes)
		l.list("Evidence (quotes from notes):", n.Evidence)

	case r.Mode == grounded.ModeMCQ && r.MCQ != nil:
		if r.MCQ.Topic != "" {
			l.add("Topic: "+r.MCQ.Topic, "")
		}
		if len(r.MCQ.MCQs) == 0 {
			l.add("No MCQs generated.", "")
			break
		}
		l.add("MCQs:")
		for i, q := range r.MCQ.MCQs {
			l.add(fmt.Sprintf("Q%d. %s", i+1, q.Question))
			for _, opt := range q.Options {
				l.add("  " + opt)
			}
			l.add("Answer: " + q.Answer)
			if q.Explanation != "" {
				l.add("Explanation: " + q.Explanation)
			}
			if len(q.Evidence) > 0 {
				l.add("Evidence:")
				for _, e := range q.Evidence {
					l.add("- " + e)
				}
			}
			l.add("")
		}

	default:
		l.add("Unknown mode.", "")
	}

	if len(r.Sources) > 0 {
		l.add("Sources (Top-k retrieved chunks):")
		for _, s := range r.Sources {
			l.add(fmt.Sprintf("#%d chunk_id=%d distance=%.4f", s.Rank, s.ChunkID, s.Distance))
			l.add(strings.TrimSpace(s.Chunk))
			l.add(strings.Repeat("-", 40))
		}
		l.add("")
	}
	return strings.Join(l, "\n")
}
