package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// Коды SQLSTATE, которые мы различаем.
const (
	pqUniqueViolation      = "23505"
	pqForeignKeyViolation  = "23503"
	pqCheckViolation       = "23514"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

func checkAffectedRows(result sql.Result, notFoundError error) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rowsAffected == 0 {
		return notFoundError
	}
	return nil
}

// pqConstraint returns the SQLSTATE code and constraint name of a driver error.
func pqConstraint(err error) (code string, constraint string, ok bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return "", "", false
	}
	return string(pqErr.Code), pqErr.Constraint, true
}

// IsRetryable reports whether the transaction failed on lock contention and
// may succeed if run again.
func IsRetryable(err error) bool {
	code, _, ok := pqConstraint(err)
	if !ok {
		return false
	}
	return code == pqSerializationFailure || code == pqDeadlockDetected
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}
