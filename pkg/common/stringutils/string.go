package stringutils

import (
	"os"
	"strings"
)

// ExpandTildePath replaces a leading ~ with the user's home directory.
func ExpandTildePath(s string) string {
	if !strings.HasPrefix(s, "~") {
		return s
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return s
	}
	return home + strings.TrimPrefix(s, "~")
}

// Redact keeps the first and last two characters of a secret.
func Redact(s string) string {
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return s[:2] + strings.Repeat("*", len(s)-4) + s[len(s)-2:]
}
