package core

import "errors"

var (
	ErrNotFound                = errors.New("not found")
	ErrDuplicateRoom           = errors.New("room already exists")
	ErrRoomFull                = errors.New("room is full")
	ErrNotMember               = errors.New("not a member")
	ErrNotConnected            = errors.New("connection not registered")
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
)
