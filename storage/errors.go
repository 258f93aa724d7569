package storage

import (
	"errors"
	"fmt"
	"strings"

	"entitysvc/core"

	"go.mongodb.org/mongo-driver/mongo"
)

// Storage error constants
var (
	// ErrDatabaseClosed is returned when attempting to use a closed engine
	ErrDatabaseClosed = errors.New("database is closed")

	// ErrConstraintViolation is returned when a database constraint is violated
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrReadOnlySession is returned when a write is queued outside a transaction
	ErrReadOnlySession = errors.New("session is read-only")

	// ErrTxDone is returned when a transaction is used after commit or rollback
	ErrTxDone = errors.New("transaction already finished")

	// ErrUnsupportedDriver is returned for an unknown storage.driver setting
	ErrUnsupportedDriver = errors.New("unsupported storage driver")
)

// fault wraps a driver error as a persistence fault. Constraint violations
// additionally match ErrConstraintViolation.
func fault(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrPersistence) || errors.Is(err, core.ErrNotFound) {
		return err
	}
	if isConstraintError(err) {
		return fmt.Errorf("%w: %s: %w: %w", core.ErrPersistence, op, ErrConstraintViolation, err)
	}
	return fmt.Errorf("%w: %s: %w", core.ErrPersistence, op, err)
}

func isConstraintError(err error) bool {
	if mongo.IsDuplicateKeyError(err) {
		return true
	}
	// SQLite reports every constraint class as "<KIND> constraint failed"
	return strings.Contains(err.Error(), "constraint failed")
}
