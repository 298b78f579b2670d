package grounded

import "strings"

// SystemPrompt is sent with every generation request.
const SystemPrompt = `You are an AI Study Assistant.

STRICT RULES (must follow):
- You are given retrieved study material as context in the user prompt.
- Use ONLY the provided context. No outside knowledge.
- If the context is insufficient, output exactly: "Insufficient context."
- Do not guess. Do not hallucinate.
- Output MUST be valid JSON exactly matching the schema requested.
- No markdown. No extra commentary.
`

const qaInstructions = `Return JSON in this exact schema:
{
  "mode": "qa",
  "answer": "string",
  "key_points": ["string"],
  "evidence": ["string"],
  "missing": "string or null"
}

Rules:
- Use ONLY the context above.
- "evidence" MUST contain 1-3 short direct quotes copied verbatim from the context that support the answer.
- If you cannot find supporting quotes in the context, treat it as insufficient context.

If context is insufficient:
  - "answer": "Insufficient context."
  - "key_points": []
  - "evidence": []
  - "missing": "one-line description of what is missing"
Otherwise:
  - "missing": null
`

const notesInstructions = `Create exam-focused revision notes using ONLY the context.

Return JSON in this exact schema:
{
  "mode": "notes",
  "topic": "string",
  "revision_notes": ["string"],
  "definitions": [{"term":"string","definition":"string"}],
  "common_mistakes": ["string"],
  "evidence": ["string"],
  "missing": "string or null"
}

Rules:
- Use ONLY the context above.
- "evidence" MUST contain 1-3 short direct quotes copied verbatim from the context that support the notes/definitions.
- If you cannot find supporting quotes in the context, treat it as insufficient context.

If context is insufficient:
  - "revision_notes": []
  - "definitions": []
  - "common_mistakes": []
  - "evidence": []
  - "missing": "Insufficient context."
Otherwise:
  - "missing": null
- Keep revision_notes short, bullet-like, exam-oriented.
`

const mcqInstructions = `Generate 5 MCQs using ONLY the context.

Return JSON in this exact schema:
{
  "mode": "mcq",
  "topic": "string",
  "mcqs": [
    {
      "q": "string",
      "options": ["A) ...", "B) ...", "C) ...", "D) ..."],
      "answer": "A|B|C|D",
      "explanation": "string",
      "evidence": ["string"]
    }
  ],
  "missing": "string or null"
}

Rules:
- Use ONLY the context above.
- For EACH MCQ, "evidence" MUST include 1 short direct quote copied verbatim from the context that supports the correct answer/explanation.
- If you cannot support the MCQs with quotes from the context, treat it as insufficient context.

If context is insufficient:
  - "mcqs": []
  - "missing": "Insufficient context."
Otherwise:
  - "missing": null
- Explanations must be directly supported by context.
`

// UserPrompt assembles the user prompt for mode around context and
// question. The context is used as given; truncation is the caller's job.
func UserPrompt(mode Mode, context, question string) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(context)
	b.WriteString("\n\n")
	switch mode {
	case ModeNotes:
		b.WriteString("Topic / Question:\n")
		b.WriteString(question)
		b.WriteString("\n\n")
		b.WriteString(notesInstructions)
	case ModeMCQ:
		b.WriteString("Topic / Question:\n")
		b.WriteString(question)
		b.WriteString("\n\n")
		b.WriteString(mcqInstructions)
	default:
		b.WriteString("Question:\n")
		b.WriteString(question)
		b.WriteString("\n\n")
		b.WriteString(qaInstructions)
	}
	return b.String()
}
