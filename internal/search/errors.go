package search

import "errors"

// Search errors
var (
	ErrNotFound      = errors.New("search entry not found")
	ErrInvalidURL    = errors.New("invalid entry URL")
	ErrInvalidLocale = errors.New("invalid locale")
	ErrEmptyGroupKey = errors.New("group key must not be empty")
)
