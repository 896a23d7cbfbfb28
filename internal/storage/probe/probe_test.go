package probe

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/romariotrain/holograma/internal/media/models"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDescribe_PNG(t *testing.T) {
	d := Describe(pngBytes(t, 32, 16), "application/octet-stream")

	require.Equal(t, "image/png", d.MIME)
	require.Equal(t, ".png", d.Ext)
	require.Equal(t, models.Image, d.Kind)
	require.NotNil(t, d.Width)
	require.Equal(t, 32, *d.Width)
	require.Equal(t, 16, *d.Height)
}

func TestDescribe_FallsBackToDeclared(t *testing.T) {
	d := Describe([]byte{0x00, 0x01, 0x02, 0x03}, "audio/mpeg")

	require.Equal(t, "audio/mpeg", d.MIME)
	require.Equal(t, models.Audio, d.Kind)
	require.Nil(t, d.Width)
}

func TestDescribe_UnknownIsAudio(t *testing.T) {
	d := Describe([]byte{0x00, 0x01}, "")

	require.Equal(t, "application/octet-stream", d.MIME)
	require.Equal(t, models.Audio, d.Kind)
}

func TestDescribe_DetectionBeatsDeclared(t *testing.T) {
	d := Describe(pngBytes(t, 2, 2), "video/mp4")

	require.Equal(t, "image/png", d.MIME)
	require.Equal(t, models.Image, d.Kind)
}
