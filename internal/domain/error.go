package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is the category of every *ValidationError.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates that no schedule has the requested id.
	ErrNotFound = errors.New("schedule not found")

	// ErrPlaybackDenied indicates the device refuses to play until it is unlocked again.
	ErrPlaybackDenied = errors.New("playback denied by audio device")

	// ErrPlaybackUnsupported indicates the audio asset cannot be decoded.
	ErrPlaybackUnsupported = errors.New("audio asset not supported")

	// ErrStorageFull indicates the persistence backend has no room left.
	ErrStorageFull = errors.New("storage full")

	// ErrStorageUnavailable indicates the persistence backend cannot be used at all.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrImportMalformed indicates an import file has the wrong shape or no usable entry.
	ErrImportMalformed = errors.New("import file malformed")

	// ErrNotArmed indicates a manual play was requested while the system is disarmed.
	ErrNotArmed = errors.New("system is not armed")
)

// ValidationError reports a rejected field value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }
