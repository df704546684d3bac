package domain

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrNotAMember      = errors.New("connection is not a member of the room")
	ErrSessionNotFound = errors.New("session not found")
)
