package status

import (
	"errors"
	"fmt"
)

// Code is the wire-visible failure kind reported to webhook and gate callers.
type Code string

const (
	CodeInvalidInput   Code = "INVALID_INPUT"
	CodeNoToken        Code = "NO_TOKEN"
	CodeBadToken       Code = "BAD_TOKEN"
	CodeSignInvalid    Code = "SIGN_INVALID"
	CodeBadJSON        Code = "BAD_JSON"
	CodeNoOrderID      Code = "NO_ORDER_ID"
	CodeNoEmail        Code = "NO_EMAIL"
	CodeUnauthorized   Code = "UNAUTHORIZED"
	CodeForbidden      Code = "FORBIDDEN"
	CodeRateLimited    Code = "RATE_LIMITED"
	CodeMethod         Code = "METHOD_NOT_ALLOWED"
	CodeAlreadyUsed    Code = "ALREADY_USED"
	CodeNotFound       Code = "NOT_FOUND"
	CodeDBCheckFailed  Code = "DB_CHECK_FAILED"
	CodeDBInsertFailed Code = "DB_INSERT_FAILED"
	CodeDBClaimFailed  Code = "DB_CLAIM_FAILED"
	CodeDBLookupFailed Code = "DB_LOOKUP_FAILED"
	CodeRenderFailed   Code = "RENDER_FAILED"
	CodeDelivery       Code = "DELIVERY_FAILED"
	CodeEnvMissing     Code = "ENV_MISSING"
	CodeServerError    Code = "SERVER_ERROR"
)

var (
	ErrInvalidInput      = errors.New("input: invalid input")
	ErrMalformed         = errors.New("token: malformed token")
	ErrSignatureMismatch = errors.New("token: signature mismatch")
	ErrDuplicateID       = errors.New("ticket: duplicate id")
	ErrNotFound          = errors.New("ticket: not found")
	ErrAlreadyUsed       = errors.New("ticket: already used")
	ErrConfig            = errors.New("config: missing configuration")
)

// Error is a step failure carrying the code reported to the caller and the
// underlying cause.
type Error struct {
	Code Code
	Step string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Step, e.Code)
	}
	return fmt.Sprintf("%s: %s: %v", e.Step, e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Wrap tags err with code and step. A nil err still produces an error so a
// failed step is never reported as success.
func Wrap(code Code, step string, err error) error {
	return &Error{Code: code, Step: step, Err: err}
}

// CodeOf classifies err. Sentinel errors map to their input or conflict code;
// anything unrecognised is a server error.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}

	switch {
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrMalformed):
		return CodeBadToken
	case errors.Is(err, ErrSignatureMismatch):
		return CodeSignInvalid
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrAlreadyUsed):
		return CodeAlreadyUsed
	case errors.Is(err, ErrConfig):
		return CodeEnvMissing
	}
	return CodeServerError
}

// IsInput reports whether code is a caller mistake rather than a dependency
// failure.
func IsInput(code Code) bool {
	switch code {
	case CodeInvalidInput, CodeNoToken, CodeBadToken, CodeSignInvalid,
		CodeBadJSON, CodeNoOrderID, CodeNoEmail, CodeNotFound:
		return true
	}
	return false
}
