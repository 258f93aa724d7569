package core

import "errors"

// Action error taxonomy. Every failure returned by the dispatcher matches one of
// these with errors.Is.
var (
	// ErrNotFound is returned when Read finds no row by id or name, or when a
	// relation value references a row that does not exist
	ErrNotFound = errors.New("entity not found")

	// ErrMissingParameter is returned when a required control key is absent
	// (id/name for Read, entity for Update and Delete, any key for Create)
	ErrMissingParameter = errors.New("missing parameter")

	// ErrInvalidParameter is returned when a control key is present but malformed
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrInvalidFilterOperator is returned when the filter compiler meets an
	// operator it does not know
	ErrInvalidFilterOperator = errors.New("invalid filter operator")

	// ErrUnknownField is returned when a parameter, filter or sort key matches no
	// declared field
	ErrUnknownField = errors.New("unknown field")

	// ErrInvalidValue is returned when a value cannot be coerced to the declared
	// field type
	ErrInvalidValue = errors.New("invalid value")

	// ErrPersistence wraps every failure surfaced by a persistence engine
	ErrPersistence = errors.New("persistence fault")

	// ErrUnknownAction is returned for an action name outside the six supported actions
	ErrUnknownAction = errors.New("unknown action")
)
