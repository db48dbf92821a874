package service

import (
	"errors"
	"fmt"
)

// Error codes returned to API callers.
const (
	CodeFieldsRequired      = "FIELDS_REQUIRED"
	CodeBelowMinimum        = "BELOW_MINIMUM"
	CodeActiveRequestExists = "ACTIVE_REQUEST_EXISTS"
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeInvalidStatus       = "INVALID_STATUS"
	CodeInvalidAmount       = "INVALID_AMOUNT"
	CodeInvalidPercentage   = "INVALID_PERCENTAGE"
	CodeUnknownSetting      = "UNKNOWN_SETTING"
)

// Error is a user-facing validation failure carrying a stable code.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrorCode returns the code of a *Error anywhere in err's chain, or "".
func ErrorCode(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

var (
	ErrInvalidCreds     = errors.New("invalid email or password")
	ErrNotAdmin         = errors.New("admin access required")
	ErrTelegramDisabled = errors.New("telegram login is not configured")
	ErrUploadsDisabled  = errors.New("receipt uploads are not configured")
)
