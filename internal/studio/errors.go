package studio

import "errors"

var (
	ErrNoSourceImage   = errors.New("no source photo selected")
	ErrNoActiveSession = errors.New("no active session")
	ErrAlreadyUnlocked = errors.New("all views already unlocked")
	ErrBusy            = errors.New("a generation is already in progress")
)

const (
	frontFailedMessage  = "Failed to generate style. Please try again."
	unlockFailedMessage = "Failed to unlock views. Credits not deducted."
)

// GenerationError is a gateway failure. Message is safe to show to the user.
type GenerationError struct {
	Op      string
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Message
	}
	return e.Op + ": " + e.Message + ": " + e.Err.Error()
}

func (e *GenerationError) Unwrap() error { return e.Err }
