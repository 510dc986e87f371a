package utils

import (
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// Request size limits (in bytes)
const (
	MaxPageSize     = 8 * 1024 * 1024 // 8MB - page snapshot
	MaxFragmentSize = 1024 * 1024     // 1MB - inserted markup
	MaxScriptSize   = 256 * 1024      // 256KB - page script source
)

// Other limits
const (
	MaxXPathLength = 2048
	MaxFileCount   = 64
	MaxPathLength  = 4096
)

// ValidateString checks length and content of a text field.
func ValidateString(value, fieldName string, maxLen int, required bool) error {
	if value == "" {
		if required {
			return fmt.Errorf("%s is required", fieldName)
		}
		return nil
	}
	if utf8.RuneCountInString(value) > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}
	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}
	return nil
}

// ValidateSize checks the byte size of a payload field.
func ValidateSize(value, fieldName string, maxSize int) error {
	if size := len(value); size > maxSize {
		return fmt.Errorf("%s size %d bytes exceeds maximum %d bytes", fieldName, size, maxSize)
	}
	return nil
}

// ValidateXPath checks an element address sent by the shell.
func ValidateXPath(expr, fieldName string) error {
	return ValidateString(expr, fieldName, MaxXPathLength, true)
}

// ValidatePageURL requires an absolute http, https or file URL.
func ValidatePageURL(raw string) error {
	if err := ValidateString(raw, "url", MaxPathLength, true); err != nil {
		return err
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("url is malformed: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		if u.Host == "" {
			return fmt.Errorf("url must include a host")
		}
	case "file":
	default:
		return fmt.Errorf("url scheme %q is not supported", u.Scheme)
	}
	return nil
}

// ValidateFiles checks the local paths of a file selection.
func ValidateFiles(paths []string) error {
	if len(paths) > MaxFileCount {
		return fmt.Errorf("too many files: %d (maximum %d)", len(paths), MaxFileCount)
	}
	for i, p := range paths {
		if err := ValidateString(p, fmt.Sprintf("files[%d]", i), MaxPathLength, true); err != nil {
			return err
		}
	}
	return nil
}
