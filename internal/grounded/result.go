package grounded

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kalambet/studyrag/internal/retrieval"
)

// InsufficientContext is the canned answer for questions the context
// cannot support.
const InsufficientContext = "Insufficient context."

// QAResult is a grounded answer to a question.
type QAResult struct {
	Mode      Mode     `json:"mode"`
	Answer    string   `json:"answer"`
	KeyPoints []string `json:"key_points"`
	Evidence  []string `json:"evidence"`
	Missing   *string  `json:"missing"`
}

// Definition is a term and its definition taken from the notes.
type Definition struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// NotesResult is a set of exam-oriented revision notes.
type NotesResult struct {
	Mode           Mode         `json:"mode"`
	Topic          string       `json:"topic"`
	RevisionNotes  []string     `json:"revision_notes"`
	Definitions    []Definition `json:"definitions"`
	CommonMistakes []string     `json:"common_mistakes"`
	Evidence       []string     `json:"evidence"`
	Missing        *string      `json:"missing"`
}

// MCQ is one multiple-choice question. Options holds exactly four entries
// and Answer is one of A, B, C or D.
type MCQ struct {
	Question    string   `json:"q"`
	Options     []string `json:"options"`
	Answer      string   `json:"answer"`
	Explanation string   `json:"explanation"`
	Evidence    []string `json:"evidence"`
}

// MCQResult is a set of multiple-choice questions.
type MCQResult struct {
	Mode    Mode    `json:"mode"`
	Topic   string  `json:"topic"`
	MCQs    []MCQ   `json:"mcqs"`
	Missing *string `json:"missing"`
}

// Result is the outcome of a generation. Exactly one of QA, Notes and MCQ
// is set, matching Mode. Its JSON form is the mode object with a
// "sources" array appended.
type Result struct {
	Mode    Mode
	QA      *QAResult
	Notes   *NotesResult
	MCQ     *MCQResult
	Sources []retrieval.Source
}

// Missing returns the result's missing note, or "" when it is null.
func (r *Result) Missing() string {
	var m *string
	switch {
	case r.QA != nil:
		m = r.QA.Missing
	case r.Notes != nil:
		m = r.Notes.Missing
	case r.MCQ != nil:
		m = r.MCQ.Missing
	}
	if m == nil {
		return ""
	}
	return *m
}

// IsInsufficient reports whether the result declares the context
// insufficient.
func (r *Result) IsInsufficient() bool {
	switch {
	case r.QA != nil:
		return r.QA.Answer == InsufficientContext
	case r.Notes != nil:
		return r.Notes.Missing != nil && *r.Notes.Missing == InsufficientContext
	case r.MCQ != nil:
		return r.MCQ.Missing != nil && *r.MCQ.Missing == InsufficientContext
	}
	return false
}

func (r *Result) body() (any, error) {
	switch r.Mode {
	case ModeQA:
		if r.QA != nil {
			return r.QA, nil
		}
	case ModeNotes:
		if r.Notes != nil {
			return r.Notes, nil
		}
	case ModeMCQ:
		if r.MCQ != nil {
			return r.MCQ, nil
		}
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownMode, r.Mode)
	}
	return nil, fmt.Errorf("result has no %s body", r.Mode)
}

func (r Result) MarshalJSON() ([]byte, error) {
	body, err := r.body()
	if err != nil {
		return nil, err
	}
	obj, err := marshalNoEscape(body)
	if err != nil {
		return nil, err
	}
	sources := r.Sources
	if sources == nil {
		sources = []retrieval.Source{}
	}
	src, err := marshalNoEscape(sources)
	if err != nil {
		return nil, err
	}

	// obj is a non-empty object, so splice before its closing brace.
	var buf bytes.Buffer
	buf.Write(obj[:len(obj)-1])
	buf.WriteString(`,"sources":`)
	buf.Write(src)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Result) UnmarshalJSON(data []byte) error {
	var head struct {
		Mode    Mode               `json:"mode"`
		Sources []retrieval.Source `json:"sources"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	*r = Result{Mode: head.Mode, Sources: head.Sources}
	switch head.Mode {
	case ModeQA:
		r.QA = &QAResult{}
		return json.Unmarshal(data, r.QA)
	case ModeNotes:
		r.Notes = &NotesResult{}
		return json.Unmarshal(data, r.Notes)
	case ModeMCQ:
		r.MCQ = &MCQResult{}
		return json.Unmarshal(data, r.MCQ)
	}
	return fmt.Errorf("%w %q", ErrUnknownMode, head.Mode)
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Insufficient builds the canned result for mode when the context cannot
// support an answer. For qa, reason becomes the missing note; notes and mcq
// always carry "Insufficient context." there.
func Insufficient(mode Mode, topic, reason string) *Result {
	switch mode {
	case ModeNotes:
		return &Result{Mode: ModeNotes, Notes: &NotesResult{
			Mode:           ModeNotes,
			Topic:          topic,
			RevisionNotes:  []string{},
			Definitions:    []Definition{},
			CommonMistakes: []string{},
			Evidence:       []string{},
			Missing:        ptr(InsufficientContext),
		}}
	case ModeMCQ:
		return &Result{Mode: ModeMCQ, MCQ: &MCQResult{
			Mode:    ModeMCQ,
			Topic:   topic,
			MCQs:    []MCQ{},
			Missing: ptr(InsufficientContext),
		}}
	}
	if reason == "" {
		reason = InsufficientContext
	}
	return &Result{Mode: ModeQA, QA: &QAResult{
		Mode:      ModeQA,
		Answer:    InsufficientContext,
		KeyPoints: []string{},
		Evidence:  []string{},
		Missing:   ptr(reason),
	}}
}

func ptr(s string) *string { return &s }
