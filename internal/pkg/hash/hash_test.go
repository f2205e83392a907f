package hash

import (
	"strings"
	"testing"
)

func TestSHA256(t *testing.T) {
	tests := []struct {
		input []byte
		want  string
	}{
		{
			[]byte("hello"),
			"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		},
		{
			[]byte(""),
			"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			got := SHA256(tt.input)
			if got != tt.want {
				t.Errorf("SHA256(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestSHA256String(t *testing.T) {
	got := SHA256String("hello")
	want := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

	if got != want {
		t.Errorf("SHA256String(hello) = %s, want %s", got, want)
	}
}

func TestSHA256Short(t *testing.T) {
	hash := SHA256([]byte("hello"))

	tests := []struct {
		n    int
		want string
	}{
		{8, hash[:8]},
		{16, hash[:16]},
		{32, hash[:32]},
		{64, hash},  // full hash
		{100, hash}, // exceeds length, returns full
	}

	for _, tt := range tests {
		got := SHA256Short([]byte("hello"), tt.n)
		if got != tt.want {
			t.Errorf("SHA256Short(hello, %d) = %s, want %s", tt.n, got, tt.want)
		}
	}
}

func TestTextUUID(t *testing.T) {
	id1 := TextUUID("what is a transformer?")
	id2 := TextUUID("what is a transformer?")

	if id1 != id2 {
		t.Errorf("TextUUID not deterministic: %s != %s", id1, id2)
	}

	id3 := TextUUID("what is a transformer")
	if id1 == id3 {
		t.Errorf("TextUUID collision: %s == %s", id1, id3)
	}

	if len(id1) != 36 || strings.Count(id1, "-") != 4 {
		t.Errorf("TextUUID = %s, want canonical UUID form", id1)
	}

	// Version nibble of a v5 UUID.
	if id1[14] != '5' {
		t.Errorf("TextUUID version = %c, want 5", id1[14])
	}
}

func BenchmarkSHA256(b *testing.B) {
	data := []byte("benchmark test data for hashing performance measurement")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		SHA256(data)
	}
}

func BenchmarkTextUUID(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		TextUUID("how do cross-encoders rerank candidates?")
	}
}
