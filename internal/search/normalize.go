package search

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"golang.org/x/text/language"
)

// NormalizeURL drops every query parameter not in allowed and returns the
// resulting absolute URL.
func NormalizeURL(rawURL string, allowed []string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return "", fmt.Errorf("%w: %q is not absolute", ErrInvalidURL, rawURL)
	}

	query := u.Query()
	for key := range query {
		if !slices.Contains(allowed, key) {
			query.Del(key)
		}
	}
	u.RawQuery = query.Encode()
	u.ForceQuery = false

	return u.String(), nil
}

// CanonicalLocale parses a locale such as "de_CH" or "en" and returns its
// BCP 47 form ("de-CH", "en").
func CanonicalLocale(locale string) (string, error) {
	locale = strings.TrimSpace(locale)
	if locale == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidLocale)
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidLocale, locale, err)
	}
	return tag.String(), nil
}
