package orchestrator

import "errors"

var (
	// ErrInvalidInput rejects empty or unusable instructions.
	ErrInvalidInput = errors.New("instruction must not be empty")

	// ErrSessionNotFound means the caller referenced a session id that does
	// not exist, expired, or was cleaned up.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionBusy means the session is already processing an instruction.
	ErrSessionBusy = errors.New("session is busy with another instruction")
)
