// Package errors defines the failures raised while building read capabilities
// and while compiling or executing a read request.
//
// Every failure is a *CapabilityError carrying a Code. Build-time codes describe
// misconfiguration and should stop the process from serving; request-time codes
// describe client misuse and are returned to the caller as a 400.
package errors

import (
	goerrors "errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

type Code string

const (
	CodeUnknownFilterField  Code = "UnknownFilterField"
	CodeInvalidComparator   Code = "InvalidComparator"
	CodeInvalidFilterValue  Code = "InvalidFilterValue"
	CodeInvalidSortPath     Code = "InvalidSortPath"
	CodeMissingResolver     Code = "MissingResolver"
	CodeLimitExceeded       Code = "LimitExceeded"
	CodeInvalidPageRequest  Code = "InvalidPageRequest"
	CodeUnsupportedArgument Code = "UnsupportedArgument"
	CodeEnumNameCollision   Code = "EnumNameCollision"
	CodeRegistryFrozen      Code = "RegistryFrozen"
	CodeUnknownEntity       Code = "UnknownEntity"
)

// Sentinels for errors.Is. Matching is by code only.
var (
	ErrUnknownFilterField  = &CapabilityError{Code: CodeUnknownFilterField}
	ErrInvalidComparator   = &CapabilityError{Code: CodeInvalidComparator}
	ErrInvalidFilterValue  = &CapabilityError{Code: CodeInvalidFilterValue}
	ErrInvalidSortPath     = &CapabilityError{Code: CodeInvalidSortPath}
	ErrMissingResolver     = &CapabilityError{Code: CodeMissingResolver}
	ErrLimitExceeded       = &CapabilityError{Code: CodeLimitExceeded}
	ErrInvalidPageRequest  = &CapabilityError{Code: CodeInvalidPageRequest}
	ErrUnsupportedArgument = &CapabilityError{Code: CodeUnsupportedArgument}
	ErrEnumNameCollision   = &CapabilityError{Code: CodeEnumNameCollision}
	ErrRegistryFrozen      = &CapabilityError{Code: CodeRegistryFrozen}
	ErrUnknownEntity       = &CapabilityError{Code: CodeUnknownEntity}
)

// requestCodes are raised while serving a request; everything else is raised while building.
var requestCodes = map[Code]bool{
	CodeUnknownFilterField:  true,
	CodeInvalidComparator:   true,
	CodeInvalidFilterValue:  true,
	CodeInvalidSortPath:     true,
	CodeLimitExceeded:       true,
	CodeInvalidPageRequest:  true,
	CodeUnsupportedArgument: true,
	CodeUnknownEntity:       true,
}

type CapabilityError struct {
	Code    Code
	Entity  string
	Path    string
	Message string
}

func New(code Code, msg string) *CapabilityError {
	return &CapabilityError{
		Code:    code,
		Message: msg,
	}
}

func Newf(code Code, format string, args ...any) *CapabilityError {
	return New(code, fmt.Sprintf(format, args...))
}

func (e *CapabilityError) Error() string {
	parts := []string{string(e.Code)}
	if e.Entity != "" {
		parts = append(parts, fmt.Sprintf("entity '%s'", e.Entity))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path '%s'", e.Path))
	}

	if e.Message == "" {
		return strings.Join(parts, " -> ")
	}
	return strings.Join(parts, " -> ") + ": " + e.Message
}

func (e *CapabilityError) Is(target error) bool {
	t, ok := target.(*CapabilityError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

func (e *CapabilityError) AddEntity(entity string) *CapabilityError {
	e.Entity = entity
	return e
}

func (e *CapabilityError) AddPath(path string) *CapabilityError {
	e.Path = path
	return e
}

// IsRequestError reports whether the failure was caused by the caller's input.
func (e *CapabilityError) IsRequestError() bool {
	return requestCodes[e.Code]
}

func (e *CapabilityError) ToHTTPError() *httperror.HTTPError {
	status := http.StatusInternalServerError
	if e.IsRequestError() {
		status = http.StatusBadRequest
	}
	if e.Code == CodeUnknownEntity {
		status = http.StatusNotFound
	}

	return httperror.NewHTTPError(status, e.Error()).
		AddMetaValue("code", string(e.Code)).
		AddMetaValue("entity", e.Entity).
		AddMetaValue("path", e.Path)
}

// As unwraps err into a *CapabilityError.
func As(err error) (*CapabilityError, bool) {
	var capErr *CapabilityError
	if goerrors.As(err, &capErr) {
		return capErr, true
	}
	return nil, false
}

func HasCode(err error, code Code) bool {
	capErr, ok := As(err)
	return ok && capErr.Code == code
}
