package middleware

import (
	"errors"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Validation limits.
const (
	// MaxQueryLength is the maximum search query length in bytes.
	MaxQueryLength = 512

	// MaxCaptionLength is the maximum caption length in bytes.
	MaxCaptionLength = 4000

	// MaxImageIDLength is the maximum length of an image ID path parameter.
	MaxImageIDLength = 64
)

// Validation errors.
var (
	ErrQueryTooLong     = errors.New("query exceeds maximum length")
	ErrQueryInvalidUTF8 = errors.New("query is not valid UTF-8")
	ErrCaptionTooLong   = errors.New("caption exceeds maximum length")
	ErrImageIDInvalid   = errors.New("image id is invalid")
)

var validImageIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateSearchQuery checks a raw query before it reaches the embedder.
// Blank queries are left to the search service.
func ValidateSearchQuery(query string) error {
	if len(query) > MaxQueryLength {
		return ErrQueryTooLong
	}
	if !utf8.ValidString(query) {
		return ErrQueryInvalidUTF8
	}
	return nil
}

// ValidateCaption checks a captioner submission.
func ValidateCaption(caption string) error {
	if len(caption) > MaxCaptionLength {
		return ErrCaptionTooLong
	}
	return nil
}

// ValidateImageID checks an image ID taken from the URL.
func ValidateImageID(id string) error {
	if id == "" || len(id) > MaxImageIDLength || !validImageIDPattern.MatchString(id) {
		return ErrImageIDInvalid
	}
	return nil
}

// NormalizeQuery collapses runs of whitespace.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
