package identity

import (
	"strings"

	"golang.org/x/text/cases"
)

// Folder normalizes user names before they are stored or looked up.
type Folder func(string) string

// NoFold keeps user names as typed.
func NoFold(s string) string { return s }

// FoldCase applies Unicode case folding, so "Alice" and "ALICE" name the
// same account.
func FoldCase(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}
