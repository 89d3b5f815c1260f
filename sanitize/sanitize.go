// Package sanitize provides string sanitation for filesystem and status
// store usage.
package sanitize

import "strings"

var filenameReplacer = strings.NewReplacer(
	"\x00", "",
	"/", "-",
	"\\", "-",
)

// Filename sanitizes user-supplied input (track titles, artist names) for
// safe use as a filename: NUL bytes are dropped, path separators become
// dashes, and surrounding whitespace is trimmed.
func Filename(s string) string {
	return strings.TrimSpace(filenameReplacer.Replace(s))
}

// Key sanitizes a string for use as a status store key segment. On top of
// Filename it maps the key separator ':' and whitespace runs to '_' so
// keys stay grep-able in redis-cli output.
func Key(s string) string {
	s = Filename(s)
	s = strings.ReplaceAll(s, ":", "_")
	return strings.Join(strings.Fields(s), "_")
}
