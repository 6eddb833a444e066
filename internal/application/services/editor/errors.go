package editor

import "errors"

var (
	ErrSessionNotFound = errors.New("editor session not found")
	ErrProtectedBlock  = errors.New("block is protected")
	ErrInvalidSurface  = errors.New("invalid editing surface")
	ErrPageNotFound    = errors.New("page not found")
	ErrReservedField   = errors.New("field is managed by the block tree")
	ErrNoDrag          = errors.New("no drag in progress")
	ErrDragActive      = errors.New("a drag is already in progress")
	ErrSavedBlockGone  = errors.New("saved block not found")
)
