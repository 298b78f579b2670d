package retrieval

import (
	"regexp"
	"testing"
)

var hexHash = regexp.MustCompile(`^[0-9a-f]{12}$`)

func TestNotesHash_Format(t *testing.T) {
	h := NotesHash("Photosynthesis converts light energy into chemical energy.")
	if !hexHash.MatchString(h) {
		t.Errorf("hash %q is not 12 lowercase hex characters", h)
	}
}

func TestNotesHash_Stable(t *testing.T) {
	// sha256("abc") = ba7816bf8f01cfea...
	if got := NotesHash("abc"); got != "ba7816bf8f01" {
		t.Errorf("NotesHash(abc) = %q, want ba7816bf8f01", got)
	}
	if NotesHash("same text") != NotesHash("same text") {
		t.Error("identical text hashed differently")
	}
}

func TestNotesHash_OneCharacterDiffers(t *testing.T) {
	a := NotesHash("Plants use chlorophyll.")
	b := NotesHash("Plants use chlorophyll!")
	if a == b {
		t.Errorf("distinct texts share hash %q", a)
	}
}

func TestChunkRecordID(t *testing.T) {
	if got := ChunkRecordID("0123456789ab", 7); got != "0123456789ab_7" {
		t.Errorf("got %q", got)
	}
}
