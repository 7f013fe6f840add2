package database

import (
	"errors"

	"github.com/lib/pq"
)

// Postgres error codes raised by the SQL functions.
const (
	pgNoDataFound          = "P0002" // SELECT INTO STRICT found no row
	pgSerializationFailure = "40001" // update_query_stage version conflict
)

func isNoDataFound(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgNoDataFound
	}
	return false
}

func isSerializationFailure(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pgSerializationFailure
	}
	return false
}
