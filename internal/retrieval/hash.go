package retrieval

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// notesHashLen is the number of hex characters kept from the SHA-256 digest.
const notesHashLen = 12

// NotesHash returns the content address of a notes text: the first 12 hex
// characters of its SHA-256 digest.
func NotesHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])[:notesHashLen]
}

// ChunkRecordID returns the vector id of chunk i of the notes with the given
// hash.
func ChunkRecordID(notesHash string, i int) string {
	return notesHash + "_" + strconv.Itoa(i)
}
