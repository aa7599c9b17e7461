package protocol

import "errors"

// Code classifies client side failures.
type Code string

const (
	// Bad caller input; no I/O was attempted.
	CodeInvalidArgument Code = "E_INVALID_ARGUMENT"
	// HTTP or stream I/O failure.
	CodeTransport Code = "E_TRANSPORT"
	// Non-zero application status on login.
	CodeAuth Code = "E_AUTH"
	// Malformed frame or payload.
	CodeDecode Code = "E_DECODE"
	// Connect attempted without a session token.
	CodeMissingToken Code = "E_MISSING_TOKEN"
	// Non-zero application status on a generic HTTP request.
	CodeStatus Code = "E_STATUS"
)

var knownCodes = map[Code]struct{}{
	CodeInvalidArgument: {},
	CodeTransport:       {},
	CodeAuth:            {},
	CodeDecode:          {},
	CodeMissingToken:    {},
	CodeStatus:          {},
}

func IsKnownCode(code Code) bool {
	_, ok := knownCodes[code]
	return ok
}

// Error is the client error type. Two errors match under errors.Is when
// their codes are equal, so the sentinels below work as class checks.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return string(e.Code) + ": " + e.Message + ": " + e.Cause.Error()
	}
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

var (
	ErrInvalidArgument = New(CodeInvalidArgument, "invalid argument")
	ErrTransport       = New(CodeTransport, "transport error")
	ErrAuth            = New(CodeAuth, "auth error")
	ErrDecode          = New(CodeDecode, "decode error")
	ErrMissingToken    = New(CodeMissingToken, "missing session token")
	ErrStatus          = New(CodeStatus, "request failed")

	// ErrEmptyCommand is returned by Decode for envelopes without a command.
	ErrEmptyCommand = New(CodeDecode, "empty command")
)
