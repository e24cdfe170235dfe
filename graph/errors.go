package graph

import "errors"

var (
	// ErrOutOfRange is returned for an index outside current storage.
	ErrOutOfRange = errors.New("node index out of range")

	// ErrFreedIndex is returned when writing to a slot whose node was deleted.
	ErrFreedIndex = errors.New("node index is free")

	// ErrNameCollision is returned by Rename when unique names are enforced
	// and another live node already carries the name.
	ErrNameCollision = errors.New("name already in use")

	// ErrEmptyName is returned for blank node names.
	ErrEmptyName = errors.New("node name is empty")

	// ErrEmptyGroup is returned by AddFriendGroup when no names are given.
	ErrEmptyGroup = errors.New("friend group has no names")

	// ErrInvalidPosition is returned by SetPosition for non-finite coordinates.
	ErrInvalidPosition = errors.New("invalid position")

	// ErrInvalidStep is returned by Update for a negative or non-finite dt.
	ErrInvalidStep = errors.New("invalid time step")
)
