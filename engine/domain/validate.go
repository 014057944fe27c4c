package domain

import "strings"

// ValidateFilename checks an upload filename before any state changes.
// Path separators and traversal sequences are rejected so the stored file
// always lands inside the uploads directory.
func ValidateFilename(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrEmptyFilename
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return ErrInvalidFilename
	}
	return nil
}

// ValidateQuery checks a search/chat query.
func ValidateQuery(q string) error {
	if strings.TrimSpace(q) == "" {
		return ErrEmptyQuery
	}
	return nil
}
