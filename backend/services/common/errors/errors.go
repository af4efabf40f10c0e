package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies an Error by who is at fault and how the caller should react.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindSignature     Kind = "signature"
	KindCollaborator  Kind = "collaborator"
	KindSerialization Kind = "serialization"
)

// Error represents an application error
type Error struct {
	Kind    Kind   `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	// Step names the stage of a multi-step flow that failed (ledger_append, notify_customer...).
	Step string `json:"-"`
	Err  error  `json:"-"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *Error) Unwrap() error {
	return e.Err
}

// JSON returns the client-facing body. Wrapped causes are never included.
func (e *Error) JSON() string {
	b, _ := json.Marshal(map[string]string{"error": e.Message})
	return string(b)
}

// New creates a new Error
func New(kind Kind, code int, message string, err error) *Error {
	return &Error{
		Kind:    kind,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Validation reports bad or missing request fields.
func Validation(message string) *Error {
	return New(KindValidation, http.StatusBadRequest, message, nil)
}

// Configuration reports a required setting that is absent.
func Configuration(key string) *Error {
	return New(KindConfiguration, http.StatusInternalServerError,
		fmt.Sprintf("Server misconfigured: %s is not set", key), nil)
}

// Signature reports a webhook whose signature did not verify.
func Signature(err error) *Error {
	return New(KindSignature, http.StatusBadRequest, "Webhook signature verification failed", err)
}

// Collaborator reports a failure of the payment provider, mail transport or ledger.
func Collaborator(step, message string, err error) *Error {
	e := New(KindCollaborator, http.StatusInternalServerError, message, err)
	e.Step = step
	return e
}

// Serialization reports a malformed body. Before trust is established the
// client is at fault (400); afterwards the payload came from a verified
// source and the failure is ours (500).
func Serialization(message string, err error, trusted bool) *Error {
	code := http.StatusBadRequest
	if trusted {
		code = http.StatusInternalServerError
	}
	return New(KindSerialization, code, message, err)
}

// As returns the *Error in err's chain, if any.
func As(err error) (*Error, bool) {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// StatusOf maps any error to an HTTP status; unknown errors are 500.
func StatusOf(err error) int {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// MessageOf returns the terse client-facing message for err.
func MessageOf(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Message
	}
	return "Internal server error"
}

// KindOf returns the Kind of err, or "" when it is not an *Error.
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return ""
}

// HandleError writes err as a JSON response.
func HandleError(w http.ResponseWriter, err error) {
	appErr, ok := As(err)
	if !ok {
		appErr = New(KindCollaborator, http.StatusInternalServerError, "Internal server error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(appErr.Code)
	w.Write([]byte(appErr.JSON()))
}
