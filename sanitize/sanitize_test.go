package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"forward slash", "test/file.mp3", "test-file.mp3"},
		{"backslash", "test\\file.mp3", "test-file.mp3"},
		{"trailing whitespace", "white space ", "white space"},
		{"leading nul", "\x00foo", "foo"},
		{"embedded nul", "fo\x00o", "foo"},
		{"mixed", " a/b\\c\x00 ", "a-b-c"},
		{"empty", "", ""},
		{"unicode preserved", "Träck – ノート.mp3", "Träck – ノート.mp3"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, Filename(test.input))
		})
	}
}

func TestFilename_NeverContainsSeparators(t *testing.T) {
	inputs := []string{
		"a/b/c", "a\\b\\c", "//", "\\\\", "\x00/\x00\\", "normal.mp3",
	}
	for _, in := range inputs {
		out := Filename(in)
		assert.NotContains(t, out, "/")
		assert.NotContains(t, out, "\\")
		assert.NotContains(t, out, "\x00")
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"colon", "artist:title.mp3", "artist_title.mp3"},
		{"spaces collapse", "my  song .mp3", "my_song_.mp3"},
		{"slash then colon", "a/b:c", "a-b_c"},
		{"empty", "", ""},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := Key(test.input)
			assert.Equal(t, test.expected, got)
			assert.False(t, strings.ContainsAny(got, "/\\: \x00"))
		})
	}
}
