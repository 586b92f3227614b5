// Package errors define el formato de error HTTP del BFF y el mapeo desde los
// errores de dominio de auth. El detalle interno (Detail, causa) se loguea
// pero nunca viaja al browser.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dropDatabas3/hellobff/internal/auth"
)

// errorResponse estructura interna para la serialización JSON.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError escribe una respuesta HTTP basada en el error proporcionado.
// Maneja *AppError, errores de auth y errores genéricos.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)

	resp := errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

// FromError convierte un error genérico en un AppError.
// Los errores de dominio auth se mapean por Kind; cualquier otro error
// desconocido se vuelve un 500 genérico conservando la causa para logs.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if kind, ok := auth.KindOf(err); ok {
		return fromAuthKind(kind, err)
	}

	return ErrInternalServerError.WithCause(err)
}

// fromAuthKind mapea la taxonomía de errores de auth a status HTTP. Los
// mensajes son genéricos a propósito: los detalles del provider/backend se
// quedan en los logs.
func fromAuthKind(kind auth.Kind, err error) *AppError {
	switch kind {
	case auth.KindMetadataFetch:
		return ErrBadGateway.WithCause(err)
	case auth.KindAuthProvider:
		return New(http.StatusUnauthorized, string(kind), "Sign-in was not completed").WithCause(err)
	case auth.KindCallback:
		return New(http.StatusUnauthorized, string(kind), "Sign-in failed, please try again").WithCause(err)
	case auth.KindTokenRefresh:
		return New(http.StatusUnauthorized, string(kind), "Session expired, please sign in again").WithCause(err)
	case auth.KindInvalidReturnPath:
		return ErrBadRequest.WithCause(err)
	case auth.KindBackendAuth, auth.KindTokenVerification:
		return New(http.StatusForbidden, string(kind), "Access denied").WithCause(err)
	default:
		return ErrInternalServerError.WithCause(err)
	}
}
