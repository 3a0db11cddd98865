// Package errors provides error code definitions for the Keepsake core.
package errors

import "fmt"

// ErrorCode represents a unique error code surfaced to callers.
type ErrorCode string

const (
	// General errors
	ErrInternal ErrorCode = "INTERNAL_ERROR"
	ErrInvalid  ErrorCode = "INVALID_INPUT"
	ErrNotFound ErrorCode = "NOT_FOUND"

	// Store errors
	ErrDatabase           ErrorCode = "DATABASE_ERROR"
	ErrStoreBusy          ErrorCode = "STORE_BUSY"
	ErrSchemaInconsistent ErrorCode = "SCHEMA_INCONSISTENT"
	ErrMigration          ErrorCode = "MIGRATION_FAILED"
	ErrReferential        ErrorCode = "REFERENTIAL_VIOLATION"

	// Asset errors
	ErrAssetIO ErrorCode = "ASSET_IO"

	// Metadata errors
	ErrMetadataVerify ErrorCode = "METADATA_VERIFY"
)

// AppError represents an application error with code, the failing
// operation and the entity it was operating on.
type AppError struct {
	Code   ErrorCode
	Op     string
	Entity string
	Err    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Op)
	if e.Entity != "" {
		msg += fmt.Sprintf(" (%s)", e.Entity)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, op, entity string) *AppError {
	return &AppError{
		Code:   code,
		Op:     op,
		Entity: entity,
	}
}

// Wrap wraps an existing error with an error code and operation context.
func Wrap(code ErrorCode, op, entity string, err error) *AppError {
	return &AppError{
		Code:   code,
		Op:     op,
		Entity: entity,
		Err:    err,
	}
}

// Is checks if an error is of a specific code. It walks the Unwrap
// chain so wrapped AppErrors are still matched.
func Is(err error, code ErrorCode) bool {
	for err != nil {
		if appErr, ok := err.(*AppError); ok && appErr.Code == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
