package index

import (
	"regexp"
	"strings"
)

// A token is a run of letters or digits, optionally joined by inner apostrophes.
var tokenRE = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)

// Tokenize lowercases text and splits it into terms.
func Tokenize(text string) []string {
	matches := tokenRE.FindAllString(strings.ToLower(text), -1)
	for i, m := range matches {
		// Normalize typographic apostrophes so "don’t" and "don't" agree.
		matches[i] = strings.ReplaceAll(m, "’", "'")
	}
	return matches
}
