package domain

import (
	"strings"

	"github.com/romariotrain/holograma/internal/media/models"
)

// KindFromMIME maps a declared MIME type to a media kind. Anything that is
// not image/* or video/* is filed as audio, including empty types.
func KindFromMIME(mimeType string) models.MediaKind {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mt, "image/"):
		return models.Image
	case strings.HasPrefix(mt, "video/"):
		return models.Video
	default:
		return models.Audio
	}
}
