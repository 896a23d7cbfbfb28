// Package probe sniffs uploaded bytes before they are stored.
package probe

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/romariotrain/holograma/internal/media/domain"
	"github.com/romariotrain/holograma/internal/media/models"
)

const genericMIME = "application/octet-stream"

type Description struct {
	MIME   string
	Ext    string
	Kind   models.MediaKind
	Width  *int
	Height *int
}

// Describe detects the content type of data. The declared type wins only when
// detection gives nothing better than a generic binary type.
func Describe(data []byte, declared string) Description {
	detected := mimetype.Detect(data)

	mime := detected.String()
	ext := detected.Extension()
	if detected.Is(genericMIME) || mime == "text/plain" {
		if d := strings.TrimSpace(declared); d != "" {
			mime = d
			if byDeclared := mimetype.Lookup(d); byDeclared != nil {
				ext = byDeclared.Extension()
			}
		}
	}
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}

	d := Description{
		MIME: mime,
		Ext:  ext,
		Kind: domain.KindFromMIME(mime),
	}
	if d.Kind == models.Image {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			d.Width = &cfg.Width
			d.Height = &cfg.Height
		}
	}
	return d
}
