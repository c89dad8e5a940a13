package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Callers classify failures with errors.Is against these.
var (
	ErrIssueNotFound     = errors.New("issue not found")
	ErrValidation        = errors.New("validation failed")
	ErrStorageCorruption = errors.New("stored issue data is corrupt")
	ErrStorageIO         = errors.New("issue storage unavailable")
)

// Validation errors. Each wraps ErrValidation.
var (
	ErrEmptyTitle      = fmt.Errorf("%w: title cannot be empty", ErrValidation)
	ErrInvalidPriority = fmt.Errorf("%w: invalid priority", ErrValidation)
	ErrInvalidStatus   = fmt.Errorf("%w: invalid status", ErrValidation)
	ErrEmptyID         = fmt.Errorf("%w: id cannot be empty", ErrValidation)
	ErrDuplicateID     = fmt.Errorf("%w: duplicate id", ErrValidation)
)

// Configuration errors.
var (
	ErrConfigExists         = errors.New("config file already exists")
	ErrUnknownDriver        = errors.New("unknown store driver")
	ErrInvalidConfig        = errors.New("invalid configuration")
	ErrInvalidEncryptionKey = errors.New("invalid encryption key: must be 32 bytes (64 hex characters)")
)
