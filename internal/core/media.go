package core

import (
	"encoding/base64"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Media is an attachment sent with, or instead of, message text.
type Media struct {
	Filename string
	MimeType string
	Data     []byte
}

// ResolvedMimeType picks the declared type, else one guessed from the file
// extension, else one sniffed from the content. Parameters are dropped.
func (m *Media) ResolvedMimeType() string {
	candidates := []string{
		m.MimeType,
		mime.TypeByExtension(strings.ToLower(filepath.Ext(m.Filename))),
	}
	for _, c := range candidates {
		if base := baseMimeType(c); base != "" {
			return base
		}
	}
	return baseMimeType(mimetype.Detect(m.Data).String())
}

// DataURL encodes the media as data:<mime>;base64,<payload>.
func (m *Media) DataURL() (string, error) {
	if len(m.Data) == 0 {
		return "", ErrEmptyMedia.WithDetails(m.Filename)
	}
	return "data:" + m.ResolvedMimeType() + ";base64," + base64.StdEncoding.EncodeToString(m.Data), nil
}

func baseMimeType(v string) string {
	base, _, _ := strings.Cut(v, ";")
	return strings.TrimSpace(base)
}
