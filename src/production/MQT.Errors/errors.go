package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for transport mapping
type Kind int

const (
	KindInternal Kind = iota
	KindInvalidRequest
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindInvalidRequest:
		return "invalid_request"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Stable error codes returned to clients
const (
	CodeMissingParams   = "missing_params"
	CodeMissingSiteName = "missing_site_name"
	CodeInvalidDevices  = "invalid_devices"
	CodeInvalidDevice   = "invalid_device"
	CodeInvalidModuleID = "invalid_module_id"
	CodeInvalidPayload  = "invalid_payload"
	CodeInvalidLabel    = "invalid_label"
	CodeSiteNotFound    = "site_not_found"
	CodeDeviceNotFound  = "device_not_found"
	CodeNoDevices       = "no_devices"
	CodeNoData          = "no_data"
	CodeDraftNotFound   = "draft_not_found"
	CodeSiteLocked      = "site_locked"
	CodeVersionConflict = "version_conflict"
	CodeInternal        = "internal"
)

// Error is the application error carried from services to controllers
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// InvalidRequest reports malformed or incomplete input
func InvalidRequest(code, message string) *Error {
	return &Error{Kind: KindInvalidRequest, Code: code, Message: message}
}

// NotFound reports a missing site, device, draft or data set
func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// Conflict reports a lost concurrent update
func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

// Internal wraps a storage or infrastructure failure
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: message, Err: err}
}

// As extracts an *Error from err
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindInternal for foreign errors
func KindOf(err error) Kind {
	if appErr, ok := As(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

// CodeOf returns the stable code of err
func CodeOf(err error) string {
	if appErr, ok := As(err); ok {
		return appErr.Code
	}
	return CodeInternal
}

// HTTPStatus maps an error to its HTTP status code
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
