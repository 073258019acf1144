package core

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrOutOfScope   = errors.New("out of scope")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
)

var validationErrors = []error{
	ErrInvalidDay,
	ErrInvalidMonth,
	ErrInvalidDate,
	ErrInvalidAmount,
	ErrInvalidPrice,
	ErrEmptyDescription,
	ErrEmptyName,
	ErrMissingLinkage,
	ErrInvalidStatus,
	ErrInvalidRole,
	ErrWeakPassword,
	ErrDescriptionLength,
}

// IsValidation reports whether err is one of the input validation sentinels.
func IsValidation(err error) bool {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}
