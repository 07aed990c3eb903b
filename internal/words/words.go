// Package words tokenizes post text into the lowercase index terms stored
// in the word table.
package words

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxWordLength is the longest token stored; longer tokens are dropped
const MaxWordLength = 255

// Tokenize splits text on anything that is not a letter, digit or
// apostrophe, lowercases the pieces and returns each distinct token once in
// first-seen order.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\''
	})

	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		token := strings.ToLower(strings.Trim(field, "'"))
		if token == "" || utf8.RuneCountInString(token) > MaxWordLength {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}

// TokenizePost tokenizes a post's title and body together
func TokenizePost(title, body string) []string {
	return Tokenize(title + " " + body)
}
