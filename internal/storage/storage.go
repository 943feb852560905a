package storage

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// коды ошибок postgres, которые обрабатываются отдельно
const (
	pqCodeUniqueViolation  = "23505"
	pqCodeLockNotAvailable = "55P03"
)

func pqErrorCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return string(pqErr.Code) == pqCodeUniqueViolation && (constraint == "" || pqErr.Constraint == constraint)
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	id := v.Int64
	return &id
}
