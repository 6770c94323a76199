package shared

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// Slug lowercases s, joins whitespace runs with "_" and drops characters that are unsafe in file names.
func Slug(s string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsSpace(r):
			if !underscore {
				b.WriteRune('_')
				underscore = true
			}
			continue
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			continue
		default:
			b.WriteRune(r)
		}
		underscore = false
	}

	slug := strings.Trim(b.String(), "._")
	if slug == "" {
		return "untitled"
	}
	return slug
}

// RunDir returns root/prompt_<promptConfigID>/<slug(title)>.
func RunDir(root string, promptConfigID int64, title string) string {
	return filepath.Join(root, fmt.Sprintf("prompt_%d", promptConfigID), Slug(title))
}

// EnsureDir creates dir and its parents.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
