package apperrors

import (
	"errors"
	"strings"
)

// appError implements the apperrors.Error interface.
// Package-level error values are shared, so every modifier returns a derived copy
// instead of mutating the receiver.
type appError struct {
	msg           string
	base          *appError
	wrappedErrors []error
	statuscode    int
	expandError   bool
	prefix        string
	suffix        string
}

func (e *appError) Error() string {
	msg := e.msg
	if e.prefix != "" {
		msg = e.prefix + ": " + msg
	}
	if e.suffix != "" {
		msg += ": " + e.suffix
	}
	return msg
}

func (e *appError) ErrorAll() string {
	if !e.expandError || len(e.wrappedErrors) == 0 {
		return e.Error()
	}
	causes := make([]string, 0, len(e.wrappedErrors))
	for _, err := range e.wrappedErrors {
		if err != nil {
			causes = append(causes, err.Error())
		}
	}
	if len(causes) == 0 {
		return e.Error()
	}
	return e.Error() + ": " + strings.Join(causes, ";")
}

func (e *appError) Unwrap() []error {
	return e.wrappedErrors
}

func (e *appError) derive() *appError {
	c := *e
	c.base = e
	c.wrappedErrors = append([]error(nil), e.wrappedErrors...)
	return &c
}

func (e *appError) New(msg string) Error {
	return &appError{
		msg:         msg,
		statuscode:  e.statuscode,
		expandError: e.expandError,
		base:        e,
	}
}

func (e *appError) Msg(msg string) Error {
	c := e.derive()
	c.msg = msg
	return c
}

func (e *appError) Prefix(prefix string) Error {
	c := e.derive()
	c.prefix = prefix
	return c
}

func (e *appError) Suffix(suffix string) Error {
	c := e.derive()
	c.suffix = suffix
	return c
}

func (e *appError) MsgErr(msg string, err ...error) Error {
	c := e.derive()
	c.msg = msg
	c.wrappedErrors = append(c.wrappedErrors, err...)
	return c
}

func (e *appError) Err(err ...error) Error {
	c := e.derive()
	c.wrappedErrors = append(c.wrappedErrors, err...)
	return c
}

func (e *appError) Is(target error) bool {
	if target == nil {
		return false
	}
	for cur := e; cur != nil; cur = cur.base {
		if error(cur) == target {
			return true
		}
	}
	for _, err := range e.wrappedErrors {
		if err != nil && errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (e *appError) SetExpandError(expand bool) Error {
	c := e.derive()
	c.expandError = expand
	return c
}

func (e *appError) SetStatusCode(code int) Error {
	c := e.derive()
	c.statuscode = code
	return c
}

func (e *appError) StatusCode() int {
	return e.statuscode
}

func New(msg string) Error {
	return &appError{
		msg: msg,
	}
}

// StatusCodeOf returns the status code attached to the first apperrors.Error found in err's chain,
// or 0 when there is none.
func StatusCodeOf(err error) int {
	var appErr Error
	if errors.As(err, &appErr) {
		return appErr.StatusCode()
	}
	return 0
}
