package critique

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied is returned when the microphone cannot be opened
	// because the user or the platform refused access.
	ErrPermissionDenied = errors.New("microphone permission denied")

	// ErrNotRecording is returned by operations that need an active recording.
	ErrNotRecording = errors.New("not recording")

	// ErrAlreadyRecording is returned when a recording is already in progress.
	ErrAlreadyRecording = errors.New("already recording")

	// ErrNotFound is returned when no session exists for a content id.
	ErrNotFound = errors.New("critique session not found")

	// ErrInvalidContentID is returned for an empty content id.
	ErrInvalidContentID = errors.New("content id is required")

	// ErrNothingToSave is returned by Save when no stopped session is pending.
	ErrNothingToSave = errors.New("no recorded session to save")
)

// PermissionHint is shown to the user next to ErrPermissionDenied.
const PermissionHint = "Allow microphone access for this terminal in your system privacy settings, then press Space again."

// StorageError wraps a failed save or load against the session store.
type StorageError struct {
	Op        string // "save", "load", "delete", "list"
	ContentID string
	Err       error
}

func (e *StorageError) Error() string {
	if e.ContentID == "" {
		return fmt.Sprintf("failed to %s critique: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("failed to %s critique %q: %v", e.Op, e.ContentID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// NewStorageError wraps err unless it is already a StorageError.
func NewStorageError(op, contentID string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, ContentID: contentID, Err: err}
}
