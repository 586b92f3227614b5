package errors

import (
	"fmt"
	"net/http"
)

// AppError define la estructura estándar para errores HTTP del BFF.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"` // No se serializa, usado para el header
	Err        error  `json:"-"` // Causa original, útil para logs, nunca se expone al cliente
}

// Error implementa la interfaz error
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap permite acceder al error original
func (e *AppError) Unwrap() error {
	return e.Err
}

// New crea un nuevo AppError
func New(status int, code, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: status,
	}
}

// WithDetail agrega detalle adicional. Devuelve una COPIA para no mutar las
// variables globales base.
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithCause adjunta la causa original. Devuelve una COPIA.
func (e *AppError) WithCause(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// Errores base.
var (
	ErrBadRequest          = New(http.StatusBadRequest, "bad_request", "Invalid request")
	ErrUnauthorized        = New(http.StatusUnauthorized, "unauthorized", "Authentication required")
	ErrForbidden           = New(http.StatusForbidden, "forbidden", "Access denied")
	ErrNotFound            = New(http.StatusNotFound, "not_found", "Resource not found")
	ErrMethodNotAllowed    = New(http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	ErrTooManyRequests     = New(http.StatusTooManyRequests, "rate_limited", "Too many requests")
	ErrInternalServerError = New(http.StatusInternalServerError, "internal_error", "Internal server error")
	ErrBadGateway          = New(http.StatusBadGateway, "bad_gateway", "Upstream dependency failed")
)
