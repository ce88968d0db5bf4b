// Package storage keeps uploaded contacts files on disk, their display
// metadata in a JSON file or PostgreSQL, and the default message template.
package storage

import (
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SecureFilename reduces name to a plain ASCII file name safe to join to a
// directory. Accents are folded (é becomes e), path separators and runs of
// whitespace become a single underscore, anything else outside
// [A-Za-z0-9_.-] is dropped and leading or trailing dots and underscores are
// trimmed. The result may be empty.
func SecureFilename(name string) string {
	decomposed := norm.NFKD.String(name)

	var b strings.Builder
	for _, r := range decomposed {
		switch {
		case r == '/' || r == '\\':
			b.WriteByte(' ')
		case r < 0x80:
			b.WriteRune(r)
		}
	}

	joined := strings.Join(strings.Fields(b.String()), "_")
	return strings.Trim(unsafeFilenameChars.ReplaceAllString(joined, ""), "._")
}

// baseName returns the last element of a client supplied path, accepting
// either separator.
func baseName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// fallbackDisplayName strips the timestamp prefix from a stored name.
func fallbackDisplayName(stored string) string {
	parts := strings.SplitN(stored, "_", 4)
	if len(parts) == 4 {
		return parts[3]
	}
	return stored
}

// downloadName is the attachment name offered for a stored file.
func downloadName(stored, displayName string) string {
	name := SecureFilename(displayName)
	if name == "" {
		name = stored
	}
	if filepath.Ext(name) != "" {
		return name
	}
	return name + filepath.Ext(stored)
}
