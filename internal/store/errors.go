package store

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("message requires content or a file")
	ErrNotSender      = errors.New("only the sender can delete a message")
	ErrNotCreator     = errors.New("only the creator can modify a room")
	ErrPrivateMembers = errors.New("private rooms must have exactly 2 distinct members")
)
