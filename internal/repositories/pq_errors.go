package repositories

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// classifyPQError maps driver errors onto the package sentinels, keeping the
// original error in the chain.
func classifyPQError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		return fmt.Errorf("%w: %s", ErrDuplicate, pqErr.Constraint)
	case pqSerializationFailure, pqDeadlockDetected:
		return fmt.Errorf("%w: %v", ErrTxConflict, err)
	}
	return err
}
