package storage

import (
	"path"
	"regexp"
	"strings"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9._\-]`)

// SanitizeFileName returns a single safe path segment for an uploaded file
// name. Directory parts are dropped and spaces become underscores. Returns
// "" when nothing usable remains.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	name = strings.ReplaceAll(name, " ", "_")
	name = unsafeNameChars.ReplaceAllString(name, "")
	name = strings.TrimLeft(name, ".")

	if name == "" || name == "." || name == ".." {
		return ""
	}
	return name
}
