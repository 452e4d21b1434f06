package profile

import "errors"

// Sentinel errors for library operations. Callers match with errors.Is;
// each failure aborts only the single operation and leaves the library
// usable.
var (
	ErrDuplicateName  = errors.New("profile name already exists")
	ErrNotFound       = errors.New("profile not found")
	ErrEmptyRegion    = errors.New("profile region spans zero frames or bins")
	ErrRegionTooLarge = errors.New("profile region exceeds maximum template size")
)

// Common error codes for profile operations.
const (
	ErrCodeDuplicate      = "DUPLICATE_NAME"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeEmptyRegion    = "EMPTY_REGION"
	ErrCodeRegionTooLarge = "REGION_TOO_LARGE"
	ErrCodeCorruptRecord  = "CORRUPT_RECORD"
)

// Error represents a profile-related error with the name it concerns.
type Error struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new profile error.
func NewError(code, name, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Name:    name,
		Message: message,
		Cause:   cause,
	}
}
