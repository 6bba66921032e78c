package dberror

import (
	"errors"
	"net/http"

	"github.com/jackc/pgconn"
	"github.com/vetrina/vetrina/internal/common/apperrors"
)

var (
	ErrDatabase         apperrors.Error = apperrors.New("db error").SetStatusCode(http.StatusInternalServerError)
	ErrAlreadyExists    apperrors.Error = ErrDatabase.New("already exists").SetStatusCode(http.StatusConflict)
	ErrNotFound         apperrors.Error = ErrDatabase.New("not found").SetStatusCode(http.StatusNotFound)
	ErrInvalidInput     apperrors.Error = ErrDatabase.New("invalid input").SetStatusCode(http.StatusBadRequest)
	ErrInvalidReference apperrors.Error = ErrInvalidInput.New("invalid reference")
	ErrTransaction      apperrors.Error = ErrDatabase.New("transaction failed")
	ErrNoConnection     apperrors.Error = ErrDatabase.New("no database connection").SetStatusCode(http.StatusServiceUnavailable)
)

// Postgres error codes we map to application errors.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func IsUniqueViolation(err error) bool {
	return pgCode(err) == codeUniqueViolation
}

func IsForeignKeyViolation(err error) bool {
	return pgCode(err) == codeForeignKeyViolation
}

// FromPg converts a driver error into the matching application error.
func FromPg(err error) apperrors.Error {
	switch pgCode(err) {
	case codeUniqueViolation:
		return ErrAlreadyExists.Err(err)
	case codeForeignKeyViolation:
		return ErrInvalidReference.Err(err)
	case codeCheckViolation:
		return ErrInvalidInput.Err(err)
	}
	return ErrDatabase.Err(err)
}
