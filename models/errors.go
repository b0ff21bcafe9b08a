package models

import "errors"

// Command errors. Replies to clients are built from these, so the
// texts are written to read well after an "Error: " prefix.
var (
	ErrValidation     = errors.New("invalid reminder")
	ErrInvalidDate    = errors.New("invalid date")
	ErrAlreadyExpired = errors.New("reminder is already expired")
	ErrPersistence    = errors.New("could not save reminder")
	ErrParse          = errors.New("could not parse JSON message")
	ErrUnknownCommand = errors.New("unknown message type")
)
