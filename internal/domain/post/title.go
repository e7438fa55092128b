package post

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxTitleLength is the longest accepted title, in characters.
const MaxTitleLength = 2000

// Title is a validated, trimmed entity title.
type Title string

func (t Title) String() string { return string(t) }

// NewTitle trims s and checks it is non-empty and at most MaxTitleLength characters.
func NewTitle(s string) (Title, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidTitle)
	}
	if n := utf8.RuneCountInString(s); n > MaxTitleLength {
		return "", fmt.Errorf("%w: %d characters exceeds %d", ErrInvalidTitle, n, MaxTitleLength)
	}
	return Title(s), nil
}

// Matches reports whether the title contains query, ignoring case.
func (t Title) Matches(query string) bool {
	return strings.Contains(strings.ToLower(string(t)), strings.ToLower(query))
}
