package domain

import "errors"

// ErrorCode identifies the class of a user-facing failure.
type ErrorCode string

const (
	ErrorCodeStartup    ErrorCode = "startup"
	ErrorCodePermission ErrorCode = "permission"
	ErrorCodeSession    ErrorCode = "session"
	ErrorCodeValidation ErrorCode = "validation"
	ErrorCodeAnalysis   ErrorCode = "analysis"
	ErrorCodeDelivery   ErrorCode = "delivery"
)

// Sentinels usable with errors.Is against any *Error of the same code.
var (
	ErrPermission = errors.New("media device access denied")
	ErrSession    = errors.New("streaming session failed")
	ErrValidation = errors.New("required field is empty")
	ErrAnalysis   = errors.New("analysis failed")
	ErrDelivery   = errors.New("delivery failed")
)

// Error tags an underlying failure with its code. The message is the
// underlying error's text, unchanged.
type Error struct {
	Code ErrorCode
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Code)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == sentinelFor(e.Code) && target != nil
}

// NewError wraps err with code. A nil err yields the code's sentinel.
func NewError(code ErrorCode, err error) *Error {
	if err == nil {
		err = sentinelFor(code)
	}
	return &Error{Code: code, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func sentinelFor(code ErrorCode) error {
	switch code {
	case ErrorCodePermission:
		return ErrPermission
	case ErrorCodeSession:
		return ErrSession
	case ErrorCodeValidation:
		return ErrValidation
	case ErrorCodeAnalysis:
		return ErrAnalysis
	case ErrorCodeDelivery:
		return ErrDelivery
	default:
		return nil
	}
}
