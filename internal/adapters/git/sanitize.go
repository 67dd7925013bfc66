package git

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// validBranchNameChars matches valid characters for git branch names
var validBranchNameChars = regexp.MustCompile(`^[a-zA-Z0-9._/-]+$`)

// invalidBranchNameChars matches characters replaced with hyphens during
// sanitization: git-prohibited chars, shell metacharacters, and other
// troublemakers.
var invalidBranchNameChars = regexp.MustCompile(`[\s~^:?*\[\]\\{}#@()&|;<>$` + "`" + `'"]+`)

var consecutiveHyphens = regexp.MustCompile(`-{2,}`)

// validateBranchName checks if a branch name is valid according to git rules.
// Stricter than git-check-ref-format because the engine runs git through a
// subprocess; shell metacharacters are rejected outright.
func validateBranchName(name string) error {
	if name == "" {
		return fmt.Errorf("branch name cannot be empty")
	}

	if strings.HasPrefix(name, ".") {
		return fmt.Errorf("branch name cannot start with '.'")
	}
	if strings.HasPrefix(name, "/") {
		return fmt.Errorf("branch name cannot start with '/'")
	}
	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("branch name cannot start with '-'")
	}

	if strings.HasSuffix(name, ".lock") {
		return fmt.Errorf("branch name cannot end with '.lock'")
	}
	if strings.HasSuffix(name, ".") {
		return fmt.Errorf("branch name cannot end with '.'")
	}
	if strings.HasSuffix(name, "/") {
		return fmt.Errorf("branch name cannot end with '/'")
	}
	if strings.HasSuffix(name, "-") {
		return fmt.Errorf("branch name cannot end with '-'")
	}

	if strings.Contains(name, "..") {
		return fmt.Errorf("branch name cannot contain '..'")
	}
	if strings.Contains(name, "//") {
		return fmt.Errorf("branch name cannot contain '//'")
	}
	if strings.Contains(name, "@{") {
		return fmt.Errorf("branch name cannot contain '@{'")
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return fmt.Errorf("branch name cannot contain control characters")
		}
	}

	if !validBranchNameChars.MatchString(name) {
		return fmt.Errorf("branch name contains invalid characters (only alphanumeric, '.', '_', '-', '/' allowed)")
	}

	if name == "@" {
		return fmt.Errorf("branch name cannot be '@'")
	}

	return nil
}

// sanitizeBranchName transforms a task title into a valid git branch name.
// Returns an error if the result would be empty after sanitization.
func sanitizeBranchName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("cannot sanitize empty string")
	}

	result := strings.ToLower(name)

	var builder strings.Builder
	for _, r := range result {
		if !unicode.IsControl(r) {
			builder.WriteRune(r)
		}
	}
	result = builder.String()

	result = invalidBranchNameChars.ReplaceAllString(result, "-")
	result = strings.ReplaceAll(result, "..", "-")
	result = strings.ReplaceAll(result, "//", "/")
	result = strings.TrimLeft(result, "./-")
	result = strings.TrimSuffix(result, ".lock")
	result = strings.TrimRight(result, "./-")
	result = consecutiveHyphens.ReplaceAllString(result, "-")

	if result == "" {
		return "", fmt.Errorf("sanitization resulted in empty branch name")
	}
	if result == "@" {
		return "", fmt.Errorf("sanitization resulted in invalid branch name '@'")
	}

	return result, nil
}

// sanitizePathComponent sanitizes a string for safe use as a path component.
// Casing is preserved; tooling that does exact path matching chokes on
// case-folded paths even on case-insensitive filesystems.
func sanitizePathComponent(component string) string {
	if component == "" {
		return ""
	}

	var builder strings.Builder
	for _, r := range component {
		if !unicode.IsControl(r) && r != '/' && r != '\\' && r != ':' {
			builder.WriteRune(r)
		}
	}

	result := strings.TrimSpace(builder.String())
	result = strings.ReplaceAll(result, "..", ".")
	return result
}
