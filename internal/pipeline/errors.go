package pipeline

import (
	"errors"

	"github.com/kalambet/studyrag/internal/grounded"
)

var (
	ErrNoStudyText   = errors.New("No study text found. Upload a PDF or paste your notes.")
	ErrEmptyQuestion = errors.New("Question is empty.")
	ErrNotIndexed    = errors.New("Please index notes first.")
)

// IsUserError reports whether err was caused by the user's input rather than
// by extraction, retrieval or the model.
func IsUserError(err error) bool {
	return errors.Is(err, ErrNoStudyText) ||
		errors.Is(err, ErrEmptyQuestion) ||
		errors.Is(err, ErrNotIndexed) ||
		errors.Is(err, grounded.ErrUnknownMode)
}
