// Package apperr provides the typed failure used across the conversion pipeline.
// Every failure carries a Kind, from which the wire code and HTTP status are derived.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a failure. Values are stable; the wire code is looked up from it.
type Kind uint8

const (
	InternalError Kind = iota

	NoToken
	MalformedToken
	TokenInvalid
	TokenExpired

	NoFile
	InvalidType
	TooLarge
	InvalidRequest

	SubscriptionRequired

	JobNotFound
	JobNotReady
	JobConflict

	ExtractionError

	UploadError
	DownloadError
	DeleteError
	UrlError
	ExistsError

	AnalysisEmpty
	AnalysisProviderError
	OptimizationError

	SynthesisFailed
	VoicesError
	ValidationError
)

type kindInfo struct {
	code   string
	status int
}

var kinds = map[Kind]kindInfo{
	InternalError: {"INTERNAL_ERROR", http.StatusInternalServerError},

	NoToken:        {"AUTH_NO_TOKEN", http.StatusUnauthorized},
	MalformedToken: {"AUTH_INVALID_TOKEN", http.StatusUnauthorized},
	TokenInvalid:   {"AUTH_TOKEN_ERROR", http.StatusUnauthorized},
	TokenExpired:   {"AUTH_TOKEN_EXPIRED", http.StatusUnauthorized},

	NoFile:         {"UPLOAD_NO_FILE", http.StatusBadRequest},
	InvalidType:    {"UPLOAD_INVALID_TYPE", http.StatusBadRequest},
	TooLarge:       {"UPLOAD_FILE_TOO_LARGE", http.StatusBadRequest},
	InvalidRequest: {"INVALID_REQUEST", http.StatusBadRequest},

	SubscriptionRequired: {"SUBSCRIPTION_REQUIRED", http.StatusForbidden},

	JobNotFound: {"JOB_NOT_FOUND", http.StatusNotFound},
	JobNotReady: {"JOB_NOT_READY", http.StatusConflict},
	JobConflict: {"JOB_CONFLICT", http.StatusConflict},

	ExtractionError: {"PDF_EXTRACTION_ERROR", http.StatusUnprocessableEntity},

	UploadError:   {"STORAGE_UPLOAD_ERROR", http.StatusInternalServerError},
	DownloadError: {"STORAGE_DOWNLOAD_ERROR", http.StatusInternalServerError},
	DeleteError:   {"STORAGE_DELETE_ERROR", http.StatusInternalServerError},
	UrlError:      {"STORAGE_URL_ERROR", http.StatusInternalServerError},
	ExistsError:   {"STORAGE_CHECK_ERROR", http.StatusInternalServerError},

	AnalysisEmpty:         {"OPENAI_ANALYSIS_ERROR", http.StatusInternalServerError},
	AnalysisProviderError: {"OPENAI_ANALYSIS_ERROR", http.StatusInternalServerError},
	OptimizationError:     {"OPENAI_OPTIMIZATION_ERROR", http.StatusInternalServerError},

	SynthesisFailed: {"SPEECH_SYNTHESIS_ERROR", http.StatusInternalServerError},
	VoicesError:     {"SPEECH_VOICES_ERROR", http.StatusInternalServerError},
	ValidationError: {"SPEECH_VALIDATION_ERROR", http.StatusInternalServerError},
}

// Code returns the machine-readable wire code for k.
func (k Kind) Code() string {
	if info, ok := kinds[k]; ok {
		return info.code
	}
	return kinds[InternalError].code
}

// Status returns the HTTP status for k.
func (k Kind) Status() int {
	if info, ok := kinds[k]; ok {
		return info.status
	}
	return http.StatusInternalServerError
}

// Error is the structured failure. msg is safe to show to callers;
// details carries the collaborator's reason and is only exposed outside production.
type Error struct {
	kind    Kind
	msg     string
	details string
	orig    error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	}
	return e.msg
}

// Unwrap returns the wrapped cause, if any
func (e *Error) Unwrap() error { return e.orig }

func (e *Error) Kind() Kind      { return e.kind }
func (e *Error) Code() string    { return e.kind.Code() }
func (e *Error) Status() int     { return e.kind.Status() }
func (e *Error) Message() string { return e.msg }

// Details returns the explicit details, falling back to the wrapped cause.
func (e *Error) Details() string {
	if e.details != "" {
		return e.details
	}
	if e.orig != nil {
		return e.orig.Error()
	}
	return ""
}

// New returns a new *Error of kind k.
func New(k Kind, msg string) error { return &Error{kind: k, msg: msg} }

// Newf returns a new *Error of kind k with a formatted message.
func Newf(k Kind, format string, a ...any) error {
	return &Error{kind: k, msg: fmt.Sprintf(format, a...)}
}

// Wrap returns a new *Error of kind k wrapping orig.
func Wrap(orig error, k Kind, msg string) error {
	return &Error{kind: k, msg: msg, orig: orig}
}

// WithDetails attaches details to an *Error (copy-on-write). Foreign errors are returned unchanged.
func WithDetails(err error, details string) error {
	if e, ok := As(err); ok {
		c := *e
		c.details = details
		return &c
	}
	return err
}

// As unwraps and returns (*Error, true) if err is one of ours
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf extracts the Kind from any error, defaulting to InternalError.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.kind
	}
	return InternalError
}

// Is reports whether err carries kind k.
func Is(err error, k Kind) bool {
	e, ok := As(err)
	return ok && e.kind == k
}

// StatusOf returns the mapped HTTP status for any error.
func StatusOf(err error) int { return KindOf(err).Status() }
