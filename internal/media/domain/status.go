package domain

import (
	"fmt"

	"github.com/romariotrain/holograma/internal/media/models"
)

// CanTransition reports whether an added item may move between upload states.
// Existing items have no upload lifecycle.
func CanTransition(from, to models.UploadState) bool {
	switch from {
	case models.LocalState:
		return to == models.UploadingState
	case models.UploadingState:
		return to == models.UploadedState || to == models.FailedState
	case models.FailedState:
		return to == models.UploadingState
	case models.UploadedState:
		return false
	default:
		return false
	}
}

func ValidateTransition(from, to models.UploadState) error {
	if from == to {
		return nil
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// Pending reports whether an item in this state still blocks a commit.
func Pending(s models.UploadState) bool {
	return s == models.LocalState || s == models.UploadingState
}
