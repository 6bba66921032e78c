// Package apperrors provides the error type shared by the server packages. Errors form a tree:
// a package declares a base error with a status code and derives specific errors from it, so
// callers can match either the specific error or any of its ancestors with errors.Is.
package apperrors

type Error interface {
	Error() string
	// ErrorAll returns the message followed by the wrapped causes when expansion is enabled.
	ErrorAll() string
	New(msg string) Error
	MsgErr(msg string, err ...error) Error
	Msg(msg string) Error
	Prefix(prefix string) Error
	Suffix(suffix string) Error
	Err(err ...error) Error
	Unwrap() []error
	Is(target error) bool
	SetExpandError(expand bool) Error
	SetStatusCode(code int) Error
	StatusCode() int
}
