package faults

import (
	"errors"
	"net/http"
)

// ErrorCategory classifica falhas do emulador. Cada categoria tem um status HTTP fixo.
type ErrorCategory string

const (
	BuildError            ErrorCategory = "BuildError"
	ConflictError         ErrorCategory = "ConflictError"
	NotFoundError         ErrorCategory = "NotFoundError"
	ReferentialError      ErrorCategory = "ReferentialError"
	AuthError             ErrorCategory = "AuthError"
	MethodNotAllowedError ErrorCategory = "MethodNotAllowedError"
	ValidationError       ErrorCategory = "ValidationError"
	InternalError         ErrorCategory = "InternalError"
)

// Códigos de erro devolvidos no corpo JSON (campo errorCode).
var errorCodes = map[ErrorCategory]string{
	BuildError:            "BUILD-001",
	ConflictError:         "STATE-409",
	NotFoundError:         "STATE-404",
	ReferentialError:      "STATE-422",
	AuthError:             "AUTH-001",
	MethodNotAllowedError: "ROUTE-405",
	ValidationError:       "REQ-400",
	InternalError:         "INT-500",
}

var statuses = map[ErrorCategory]int{
	BuildError:            http.StatusInternalServerError,
	ConflictError:         http.StatusConflict,
	NotFoundError:         http.StatusNotFound,
	ReferentialError:      http.StatusUnprocessableEntity,
	AuthError:             http.StatusUnauthorized,
	MethodNotAllowedError: http.StatusMethodNotAllowed,
	ValidationError:       http.StatusBadRequest,
	InternalError:         http.StatusInternalServerError,
}

type TypedError struct {
	Category ErrorCategory
	Message  string
	Cause    error
}

func (e *TypedError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Message != "" && e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return string(e.Category)
}

func (e *TypedError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func NewTypedError(category ErrorCategory, message string, cause error) *TypedError {
	return &TypedError{
		Category: category,
		Message:  message,
		Cause:    cause,
	}
}

// Atalhos usados pelos módulos de estado e pelo dispatcher.

func Conflict(message string) *TypedError    { return NewTypedError(ConflictError, message, nil) }
func NotFound(message string) *TypedError    { return NewTypedError(NotFoundError, message, nil) }
func Referential(message string) *TypedError { return NewTypedError(ReferentialError, message, nil) }
func Auth(message string) *TypedError        { return NewTypedError(AuthError, message, nil) }
func Validation(message string) *TypedError  { return NewTypedError(ValidationError, message, nil) }

func IsCategory(err error, category ErrorCategory) bool {
	if err == nil {
		return false
	}

	var typedErr *TypedError
	if !errors.As(err, &typedErr) {
		return false
	}
	return typedErr.Category == category
}

// CategoryOf devolve a categoria do erro. Erros não tipados são InternalError.
func CategoryOf(err error) ErrorCategory {
	var typedErr *TypedError
	if errors.As(err, &typedErr) {
		return typedErr.Category
	}
	return InternalError
}

// HTTPStatus mapeia o erro para o status HTTP correspondente.
func HTTPStatus(err error) int {
	return statuses[CategoryOf(err)]
}

// Body é o corpo JSON padrão de erro, compatível com o formato "developerMessage/errorCode".
type Body struct {
	DeveloperMessage string `json:"developerMessage"`
	ErrorCode        string `json:"errorCode"`
	Category         string `json:"category"`
}

// ToBody converte qualquer erro no corpo JSON padrão.
func ToBody(err error) Body {
	category := CategoryOf(err)
	msg := "erro interno"
	if err != nil {
		msg = err.Error()
	}
	return Body{
		DeveloperMessage: msg,
		ErrorCode:        errorCodes[category],
		Category:         string(category),
	}
}
