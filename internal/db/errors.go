package db

import (
	"database/sql/driver"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrTransient marks storage failures that are safe to retry from scratch.
// Every mutation is guarded by a conditional WHERE clause, so a retried call
// either applies once or reports the domain conflict.
var ErrTransient = errors.New("transient storage failure")

const (
	pqUniqueViolation      pq.ErrorCode = "23505"
	pqCheckViolation       pq.ErrorCode = "23514"
	pqSerializationFailure pq.ErrorCode = "40001"
	pqDeadlockDetected     pq.ErrorCode = "40P01"
	pqAdminShutdown        pq.ErrorCode = "57P01"
	pqCrashShutdown        pq.ErrorCode = "57P02"
	pqCannotConnectNow     pq.ErrorCode = "57P03"

	pqConnectionClass pq.ErrorClass = "08"
)

// Classify wraps retry-safe storage errors with ErrTransient and returns
// every other error unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, ErrTransient) {
		return err
	}

	if errors.Is(err, driver.ErrBadConn) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Class() == pqConnectionClass {
			return fmt.Errorf("%w: %w", ErrTransient, err)
		}
		switch pqErr.Code {
		case pqSerializationFailure, pqDeadlockDetected,
			pqAdminShutdown, pqCrashShutdown, pqCannotConnectNow:
			return fmt.Errorf("%w: %w", ErrTransient, err)
		}
	}

	return err
}

func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// IsUniqueViolation reports a 23505 error, optionally restricted to one
// constraint or index name.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqUniqueViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// IsCheckViolation reports a 23514 error for the given constraint.
func IsCheckViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqCheckViolation {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
