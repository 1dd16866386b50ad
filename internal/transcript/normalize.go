// Package transcript normalizes recognized speech before it is translated.
package transcript

import "strings"

// Normalize collapses runs of whitespace in a gateway transcript. Casing and
// punctuation are left as recognized. Blank input yields "".
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
