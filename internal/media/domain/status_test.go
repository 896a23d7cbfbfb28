package domain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/romariotrain/holograma/internal/media/models"
)

func TestValidateTransition(t *testing.T) {
	cases := []struct {
		from, to models.UploadState
		ok       bool
	}{
		{models.LocalState, models.UploadingState, true},
		{models.UploadingState, models.UploadedState, true},
		{models.UploadingState, models.FailedState, true},
		{models.FailedState, models.UploadingState, true},
		{models.UploadedState, models.UploadedState, true},

		{models.LocalState, models.UploadedState, false},
		{models.LocalState, models.FailedState, false},
		{models.UploadedState, models.UploadingState, false},
		{models.UploadedState, models.FailedState, false},
		{models.FailedState, models.UploadedState, false},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			err := ValidateTransition(tc.from, tc.to)
			if tc.ok {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrInvalidTransition)
		})
	}
}

func TestPending(t *testing.T) {
	require.True(t, Pending(models.LocalState))
	require.True(t, Pending(models.UploadingState))
	require.False(t, Pending(models.UploadedState))
	require.False(t, Pending(models.FailedState))
}

func TestKindFromMIME(t *testing.T) {
	cases := map[string]models.MediaKind{
		"image/png":       models.Image,
		"IMAGE/JPEG":      models.Image,
		"video/mp4":       models.Video,
		"audio/mpeg":      models.Audio,
		"application/pdf": models.Audio,
		"":                models.Audio,
	}
	for mt, want := range cases {
		require.Equal(t, want, KindFromMIME(mt), mt)
	}
}
