package models

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrInvalidArgument = errors.New("invalid arguments")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")

	// Edit session errors.
	ErrUpload         = errors.New("upload failed")
	ErrInvalidReorder = errors.New("invalid reorder")
	ErrUploadsPending = errors.New("uploads pending")
	ErrUploadsFailed  = errors.New("uploads failed")
	ErrPersistence    = errors.New("persistence failed")
	ErrSessionClosed  = errors.New("session closed")
)
