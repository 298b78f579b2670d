package grounded

import (
	"strings"
	"unicode"
)

const noVerifiedEvidence = "No evidence quote could be found verbatim in the retrieved context."

// quoteMarks are stripped from both ends of an evidence quote before it is
// looked up in the context.
const quoteMarks = "\"'`“”‘’«»"

// VerifyEvidence drops every evidence quote that does not occur in context
// and returns how many were dropped. Matching ignores case, differences in
// whitespace, surrounding quote marks and a trailing ellipsis. MCQs left
// without evidence are removed. A qa or notes result left without evidence,
// or an mcq result left without questions, is replaced by the mode's
// insufficient shape. Insufficient results pass through unchanged.
func VerifyEvidence(r *Result, context string) int {
	if r.IsInsufficient() {
		return 0
	}
	haystack := normalizeQuote(context)
	dropped := 0
	keep := func(quotes []string) []string {
		out := quotes[:0]
		for _, q := range quotes {
			n := normalizeQuote(q)
			if n != "" && strings.Contains(haystack, n) {
				out = append(out, q)
				continue
			}
			dropped++
		}
		return out
	}

	switch {
	case r.QA != nil:
		r.QA.Evidence = keep(r.QA.Evidence)
		if len(r.QA.Evidence) == 0 {
			r.downgrade("", noVerifiedEvidence)
		}
	case r.Notes != nil:
		r.Notes.Evidence = keep(r.Notes.Evidence)
		if len(r.Notes.Evidence) == 0 {
			r.downgrade(r.Notes.Topic, noVerifiedEvidence)
		}
	case r.MCQ != nil:
		mcqs := r.MCQ.MCQs[:0]
		for _, q := range r.MCQ.MCQs {
			q.Evidence = keep(q.Evidence)
			if len(q.Evidence) > 0 {
				mcqs = append(mcqs, q)
			}
		}
		r.MCQ.MCQs = mcqs
		if len(mcqs) == 0 {
			r.downgrade(r.MCQ.Topic, noVerifiedEvidence)
		}
	}
	return dropped
}

// downgrade swaps the body for the insufficient shape, keeping sources.
func (r *Result) downgrade(topic, reason string) {
	ins := Insufficient(r.Mode, topic, reason)
	r.QA, r.Notes, r.MCQ = ins.QA, ins.Notes, ins.MCQ
}

func normalizeQuote(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "...")
	s = strings.TrimSuffix(s, "…")
	s = strings.Trim(s, quoteMarks+" \t\r\n")
	return strings.ToLower(strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " "))
}
