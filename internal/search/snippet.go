package search

import "strings"

// snippetWords is the context kept on each side of the first match.
const snippetWords = 10

// Snippet returns the text shown under a hit: the entry description when
// set, otherwise the searchable text around the first word containing a
// query term, wrapped in "...". It returns "" when nothing matches.
func Snippet(entry *Entry, query string) string {
	if strings.TrimSpace(entry.Description) != "" {
		return entry.Description
	}

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return ""
	}

	var before, found, after []string
	for _, word := range strings.Fields(entry.SearchableText) {
		if len(after) == 0 && containsAny(strings.ToLower(word), terms) {
			found = append(found, word)
			continue
		}
		if len(found) == 0 {
			before = append(before, word)
			if len(before) > snippetWords {
				before = before[1:]
			}
			continue
		}
		after = append(after, word)
		if len(after) >= snippetWords {
			break
		}
	}

	if len(found) == 0 {
		return ""
	}

	words := make([]string, 0, len(before)+len(found)+len(after))
	words = append(words, before...)
	words = append(words, found...)
	words = append(words, after...)
	return "..." + strings.Join(words, " ") + "..."
}

func containsAny(word string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(word, term) {
			return true
		}
	}
	return false
}
