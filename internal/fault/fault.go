// Package fault defines the four error kinds every store operation reports.
//
// Package-level sentinels elsewhere wrap one of these kinds, so callers
// classify with errors.Is regardless of which package raised the error:
//
//	var ErrSiteNotFound = fmt.Errorf("location: site %w", fault.ErrNotFound)
//
//	if errors.Is(err, fault.ErrNotFound) {
//	    // 404
//	}
package fault

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound is the kind for a referenced record that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is the kind for malformed or incomplete input.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is the kind for duplicate unique keys and blocked deletes.
	ErrConflict = errors.New("conflict")

	// ErrIntegrity is the kind for store constraint failures not otherwise classified.
	ErrIntegrity = errors.New("integrity violation")
)

// Kind names one of the error kinds.
type Kind string

// Error kinds.
const (
	KindNotFound   Kind = "not_found"
	KindValidation Kind = "validation"
	KindConflict   Kind = "conflict"
	KindIntegrity  Kind = "integrity"
	KindInternal   Kind = "internal"
)

// Classify reports which kind err belongs to.
// Errors that wrap none of the kinds are KindInternal.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrIntegrity):
		return KindIntegrity
	default:
		return KindInternal
	}
}

// Validation returns a validation error carrying a field-specific message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// FromSQL converts a go-sqlite3 constraint failure into a classified error.
// Unique and primary key violations become conflicts; check, not-null and
// foreign key violations become integrity errors. Any other error is
// returned unchanged.
func FromSQL(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) || sqliteErr.Code != sqlite3.ErrConstraint {
		return err
	}

	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return fmt.Errorf("%w: %s", ErrConflict, sqliteErr.Error())
	default:
		return fmt.Errorf("%w: %s", ErrIntegrity, sqliteErr.Error())
	}
}

// IsUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY failure.
func IsUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
