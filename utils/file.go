package utils

import (
	"path/filepath"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const maxFilenameLength = 200

// SanitizeFilename reduces an uploaded filename to a safe basename: directory
// parts are dropped and control or separator characters are replaced.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "/" || name == "." {
		return "upload"
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsControl(r):
			return -1
		case r == '/' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	cleaned = strings.TrimLeft(cleaned, ".")

	if len(cleaned) > maxFilenameLength {
		ext := filepath.Ext(cleaned)
		cleaned = cleaned[:maxFilenameLength-len(ext)] + ext
	}
	if cleaned == "" {
		return "upload"
	}
	return cleaned
}

// FileStem returns the lower-cased name without its extension.
func FileStem(name string) string {
	return strings.ToLower(strings.TrimSuffix(name, filepath.Ext(name)))
}

// UniqueFilename returns name unchanged unless its stem is already used by one
// of taken, in which case a short random suffix is inserted before the
// extension. Stems are compared case-insensitively since RAW and JPEG uploads
// with the same stem share derivative keys.
func UniqueFilename(name string, taken []string) string {
	used := lo.Associate(taken, func(n string) (string, struct{}) {
		return FileStem(n), struct{}{}
	})
	if _, exists := used[FileStem(name)]; !exists {
		return name
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for {
		candidate := stem + "-" + uuid.NewString()[:8] + ext
		if _, exists := used[FileStem(candidate)]; !exists {
			return candidate
		}
	}
}
