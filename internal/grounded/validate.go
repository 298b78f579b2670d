package grounded

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Validate decodes obj and checks it against the schema of mode: every
// required key present with the right type, "mode" equal to mode, MCQ
// options exactly four and answers in A-D, and "missing" a string or
// null. Lists the model returned as null come back empty. A result that
// declares the context insufficient is normalized to the canned shape.
// Violations wrap ErrMalformedOutput.
func Validate(mode Mode, obj json.RawMessage) (*Result, error) {
	var m map[string]any
	if err := json.Unmarshal(obj, &m); err != nil {
		return nil, malformed("decode object: %v", err)
	}

	got, err := str(m, "mode")
	if err != nil {
		return nil, err
	}
	if Mode(strings.ToLower(strings.TrimSpace(got))) != mode {
		return nil, malformed("mode is %q, want %q", got, mode)
	}

	switch mode {
	case ModeQA:
		return validateQA(m)
	case ModeNotes:
		return validateNotes(m)
	case ModeMCQ:
		return validateMCQ(m)
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownMode, mode)
}

func validateQA(m map[string]any) (*Result, error) {
	var (
		r   = QAResult{Mode: ModeQA}
		err error
	)
	if r.Answer, err = str(m, "answer"); err != nil {
		return nil, err
	}
	if r.KeyPoints, err = strList(m, "key_points"); err != nil {
		return nil, err
	}
	if r.Evidence, err = strList(m, "evidence"); err != nil {
		return nil, err
	}
	if r.Missing, err = nullableStr(m, "missing"); err != nil {
		return nil, err
	}

	if strings.TrimSpace(r.Answer) == InsufficientContext {
		reason := InsufficientContext
		if r.Missing != nil && strings.TrimSpace(*r.Missing) != "" {
			reason = *r.Missing
		}
		return Insufficient(ModeQA, "", reason), nil
	}
	return &Result{Mode: ModeQA, QA: &r}, nil
}

func validateNotes(m map[string]any) (*Result, error) {
	var (
		r   = NotesResult{Mode: ModeNotes}
		err error
	)
	if r.Topic, err = str(m, "topic"); err != nil {
		return nil, err
	}
	if r.RevisionNotes, err = strList(m, "revision_notes"); err != nil {
		return nil, err
	}
	if r.Definitions, err = definitions(m, "definitions"); err != nil {
		return nil, err
	}
	if r.CommonMistakes, err = strList(m, "common_mistakes"); err != nil {
		return nil, err
	}
	if r.Evidence, err = strList(m, "evidence"); err != nil {
		return nil, err
	}
	if r.Missing, err = nullableStr(m, "missing"); err != nil {
		return nil, err
	}

	if r.Missing != nil && strings.TrimSpace(*r.Missing) == InsufficientContext {
		return Insufficient(ModeNotes, r.Topic, ""), nil
	}
	return &Result{Mode: ModeNotes, Notes: &r}, nil
}

func validateMCQ(m map[string]any) (*Result, error) {
	var (
		r   = MCQResult{Mode: ModeMCQ}
		err error
	)
	if r.Topic, err = str(m, "topic"); err != nil {
		return nil, err
	}
	if r.Missing, err = nullableStr(m, "missing"); err != nil {
		return nil, err
	}
	if r.Missing != nil && strings.TrimSpace(*r.Missing) == InsufficientContext {
		return Insufficient(ModeMCQ, r.Topic, ""), nil
	}

	items, err := list(m, "mcqs")
	if err != nil {
		return nil, err
	}
	r.MCQs = make([]MCQ, 0, len(items))
	for i, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			return nil, malformed("mcqs[%d] is %s, want object", i, typeName(it))
		}
		q, err := validateOneMCQ(obj)
		if err != nil {
			return nil, fmt.Errorf("mcqs[%d]: %w", i, err)
		}
		r.MCQs = append(r.MCQs, q)
	}
	return &Result{Mode: ModeMCQ, MCQ: &r}, nil
}

func validateOneMCQ(m map[string]any) (MCQ, error) {
	var (
		q   MCQ
		err error
	)
	if q.Question, err = str(m, "q"); err != nil {
		return q, err
	}
	if q.Options, err = strList(m, "options"); err != nil {
		return q, err
	}
	if len(q.Options) != 4 {
		return q, malformed("options has %d entries, want 4", len(q.Options))
	}
	answer, err := str(m, "answer")
	if err != nil {
		return q, err
	}
	if q.Answer, err = answerLetter(answer); err != nil {
		return q, err
	}
	if q.Explanation, err = str(m, "explanation"); err != nil {
		return q, err
	}
	if q.Evidence, err = strList(m, "evidence"); err != nil {
		return q, err
	}
	return q, nil
}

// answerLetter accepts "B", "b" or "B) ..." and returns "B".
func answerLetter(s string) (string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" || !strings.ContainsRune("ABCD", rune(s[0])) {
		return "", malformed("answer %q is not one of A, B, C, D", s)
	}
	if len(s) > 1 {
		if next := s[1]; next >= 'A' && next <= 'Z' {
			return "", malformed("answer %q is not one of A, B, C, D", s)
		}
	}
	return s[:1], nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedOutput, fmt.Sprintf(format, args...))
}

func field(m map[string]any, key string) (any, error) {
	v, ok := m[key]
	if !ok {
		return nil, malformed("missing key %q", key)
	}
	return v, nil
}

func str(m map[string]any, key string) (string, error) {
	v, err := field(m, key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", malformed("%q is %s, want string", key, typeName(v))
	}
	return s, nil
}

func nullableStr(m map[string]any, key string) (*string, error) {
	v, err := field(m, key)
	if err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case nil:
		return nil, nil
	case string:
		return &v, nil
	}
	return nil, malformed("%q is %s, want string or null", key, typeName(v))
}

func list(m map[string]any, key string) ([]any, error) {
	v, err := field(m, key)
	if err != nil {
		return nil, err
	}
	switch v := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return v, nil
	}
	return nil, malformed("%q is %s, want array", key, typeName(v))
}

func strList(m map[string]any, key string) ([]string, error) {
	items, err := list(m, key)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for i, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, malformed("%s[%d] is %s, want string", key, i, typeName(it))
		}
		out = append(out, s)
	}
	return out, nil
}

func definitions(m map[string]any, key string) ([]Definition, error) {
	items, err := list(m, key)
	if err != nil {
		return nil, err
	}
	out := make([]Definition, 0, len(items))
	for i, it := range items {
		obj, ok := it.(map[string]any)
		if !ok {
			return nil, malformed("%s[%d] is %s, want object", key, i, typeName(it))
		}
		var d Definition
		if d.Term, err = str(obj, "term"); err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
		}
		if d.Definition, err = str(obj, "definition"); err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
