package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("invalid input")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrModelNotReady       = errors.New("model has no trained artifact")
	ErrExecutor            = errors.New("executor failure")
)
