package repository

import (
	"errors"

	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// uniqueViolation returns the violated constraint name when err is a Postgres unique violation.
func uniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqUniqueViolation {
		return "", false
	}
	return pqErr.Constraint, true
}
