package retrieval

import (
	"strings"
	"testing"
)

func TestChunk_Empty(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\t\n"} {
		if got := Chunk(in, 900, 150); len(got) != 0 {
			t.Errorf("Chunk(%q) = %v, want empty", in, got)
		}
	}
}

func TestChunk_ShortTextSingleChunk(t *testing.T) {
	got := Chunk("  Photosynthesis converts light.  ", 900, 150)
	if len(got) != 1 || got[0] != "Photosynthesis converts light." {
		t.Errorf("got %q", got)
	}
}

func TestChunk_Windows(t *testing.T) {
	// 10 chars, size 4, overlap 1: [0,4) [3,7) [6,10)
	got := Chunk("abcdefghij", 4, 1)
	want := []string{"abcd", "defg", "ghij"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestChunk_FinalPartialWindow(t *testing.T) {
	// [0,4) [2,6) [4,7): the last window is shorter than size.
	got := Chunk("abcdefg", 4, 2)
	want := []string{"abcd", "cdef", "efg"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestChunk_DropsBlankWindows(t *testing.T) {
	text := "ab" + strings.Repeat(" ", 10) + "cd"
	for _, c := range Chunk(text, 4, 0) {
		if strings.TrimSpace(c) == "" {
			t.Errorf("blank chunk %q returned", c)
		}
	}
}

func TestChunk_Deterministic(t *testing.T) {
	text := strings.Repeat("The mitochondria is the powerhouse of the cell. ", 80)
	a := Chunk(text, 900, 150)
	b := Chunk(text, 900, 150)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs", i)
		}
	}
}

// TestChunk_CoversInput checks that stripping the overlap from every chunk
// after the first reconstructs the trimmed input exactly.
func TestChunk_CoversInput(t *testing.T) {
	cases := []struct {
		size, overlap int
	}{
		{900, 150}, {100, 0}, {50, 49}, {7, 3},
	}
	text := strings.TrimSpace(strings.Repeat("Cells divide by mitosis and meiosis; ", 60))
	for _, c := range cases {
		chunks := Chunk(text, c.size, c.overlap)
		var b strings.Builder
		for i, ch := range chunks {
			r := []rune(ch)
			if i > 0 {
				r = r[c.overlap:]
			}
			b.WriteString(string(r))
		}
		if b.String() != text {
			t.Errorf("size=%d overlap=%d: reconstruction differs from input", c.size, c.overlap)
		}
		for _, ch := range chunks {
			if n := len([]rune(ch)); n > c.size {
				t.Errorf("size=%d overlap=%d: chunk of %d runes", c.size, c.overlap, n)
			}
		}
	}
}

func TestChunk_CountsRunes(t *testing.T) {
	got := Chunk("ñandú über", 4, 0)
	want := []string{"ñand", "ú üb", "er"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestChunk_Guards(t *testing.T) {
	text := strings.Repeat("x", 2000)
	if got := Chunk(text, 0, 0); len(got) != 3 {
		t.Errorf("size 0 should fall back to 900: got %d chunks", len(got))
	}
	// overlap >= size must still terminate.
	got := Chunk("abcdef", 3, 5)
	if len(got) == 0 || got[len(got)-1] != "def" {
		t.Errorf("clamped overlap: got %q", got)
	}
	if got := Chunk("abcdef", 3, -4); strings.Join(got, ",") != "abc,def" {
		t.Errorf("negative overlap: got %q", got)
	}
}
