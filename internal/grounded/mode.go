// Package grounded asks a language model for answers, revision notes or
// multiple-choice questions that are built only from retrieved context, and
// validates what comes back.
package grounded

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects the kind of study output to generate.
type Mode string

const (
	ModeQA    Mode = "qa"
	ModeNotes Mode = "notes"
	ModeMCQ   Mode = "mcq"
)

var (
	// ErrUnknownMode is returned for a mode other than qa, notes or mcq.
	ErrUnknownMode = errors.New("unknown mode")

	// ErrMalformedOutput is returned when the model output holds no JSON
	// object or the object does not match the mode's schema.
	ErrMalformedOutput = errors.New("malformed model output")
)

// Modes lists every supported mode.
var Modes = []Mode{ModeQA, ModeNotes, ModeMCQ}

// ParseMode parses a mode name case-insensitively. An empty string means qa.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeQA:
		return ModeQA, nil
	case ModeNotes:
		return ModeNotes, nil
	case ModeMCQ:
		return ModeMCQ, nil
	}
	return "", fmt.Errorf("%w %q: want one of qa, notes, mcq", ErrUnknownMode, s)
}
