package core

import "errors"

var (
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrNotAdjacent        = errors.New("tiles are not adjacent")
	ErrNotOwned           = errors.New("not owned by civilization")
	ErrCivDead            = errors.New("civilization is not alive")
	ErrNoMovement         = errors.New("unit has no movement remaining")
	ErrOutOfRange         = errors.New("target out of movement range")
	ErrImpassable         = errors.New("target tile is impassable")
	ErrTileOccupied       = errors.New("target tile is occupied")
	ErrUnknownItem        = errors.New("item not present in ruleset")
	ErrInsufficientGold   = errors.New("insufficient gold")
	ErrNoTarget           = errors.New("no attackable target at coordinates")
	ErrGameOver           = errors.New("game is over")
	ErrCorruptState       = errors.New("corrupt game state")
)
