package model

import "errors"

// Common errors used across the application
var (
	// Table errors
	ErrTableNotFound = errors.New("table not found")
	ErrWrongPassword = errors.New("wrong table password")

	// Player errors
	ErrPlayerNotFound = errors.New("player not found at table")
	ErrNicknameTaken  = errors.New("nickname is already taken at this table")

	// Croupier errors
	ErrCroupierExists = errors.New("table already has a croupier")
	ErrNotCroupier    = errors.New("only the croupier may perform this action")
)
