package scan

import (
	"regexp"
	"strings"
)

var (
	unsafeChars = regexp.MustCompile(`[\\/*?:"<>| ']`)
	pageSuffix  = regexp.MustCompile(`(?i)[_.-]?(page|p)[_.-]?\d+$`)
)

// SanitizeFilename makes an uploaded filename safe to embed in artifact
// paths: shell- and path-hostile characters become underscores and the
// result is capped at 100 characters.
func SanitizeFilename(name string) string {
	if name == "" {
		return "default"
	}
	sanitized := unsafeChars.ReplaceAllString(name, "_")
	sanitized = strings.Trim(sanitized, "._")
	if sanitized == "" {
		return "file"
	}
	if len(sanitized) > 100 {
		sanitized = sanitized[:100]
	}
	return sanitized
}

// TrimPageSuffix drops a trailing "page 3" style marker so multi-page
// uploads of the same document share one artifact base name.
func TrimPageSuffix(name string) string {
	trimmed := pageSuffix.ReplaceAllString(name, "")
	if trimmed == "" {
		return name
	}
	return trimmed
}
