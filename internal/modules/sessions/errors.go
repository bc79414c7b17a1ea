package sessions

import "errors"

var (
	ErrNotFound  = errors.New("session not found")
	ErrDuplicate = errors.New("session already exists")
	ErrConflict  = errors.New("session status conflict")
)
