package stringutils

import (
	"regexp"
	"strings"
)

var (
	wordRe       = regexp.MustCompile(`[\p{L}\p{N}]+`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// Clean lowercases the text and collapses runs of whitespace.
func Clean(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(strings.ToLower(text), " "))
}

// Tokenize splits text into lowercased alphanumeric words.
func Tokenize(text string) []string {
	if text == "" {
		return nil
	}
	return wordRe.FindAllString(strings.ToLower(text), -1)
}
