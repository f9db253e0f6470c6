package patient

import "errors"

var (
	ErrRecordNotFound     = errors.New("patient record not found")
	ErrUnknownField       = errors.New("unknown record field")
	ErrInvalidDateOfBirth = errors.New("date of birth cannot be in the future")
)
