package util

import (
	"strings"
)

// ExtractMentions extracts @username mentions from comment text.
// Returns unique usernames (lowercase, without the @ symbol).
func ExtractMentions(content string) []string {
	var mentions []string
	seen := make(map[string]bool)

	for _, word := range strings.Fields(content) {
		if !strings.HasPrefix(word, "@") || len(word) < 2 {
			continue
		}
		username := strings.TrimRight(strings.TrimPrefix(word, "@"), ".,!?;:")
		username = strings.ToLower(username)

		if username != "" && !seen[username] && len(username) <= 150 {
			seen[username] = true
			mentions = append(mentions, username)
		}
	}
	return mentions
}
