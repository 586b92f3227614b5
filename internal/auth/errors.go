package auth

import (
	"errors"
	"fmt"
)

// Kind is the stable machine-readable code of an auth error. Every failure
// the package surfaces carries exactly one of these.
type Kind string

const (
	// KindMetadataFetch: discovery endpoint unreachable or non-2xx. Fatal to
	// provider client construction; never retried automatically.
	KindMetadataFetch Kind = "metadata_fetch_error"

	// KindAuthProvider: the provider returned error/error_description on the
	// callback. Fatal to that login attempt.
	KindAuthProvider Kind = "auth_provider_error"

	// KindCallback: the code exchange failed (expired code, PKCE or state
	// mismatch, network). Caller redirects back to login.
	KindCallback Kind = "callback_error"

	// KindTokenRefresh: silent refresh failed; treated as session expiry.
	KindTokenRefresh Kind = "token_refresh_error"

	// KindInvalidReturnPath: logout called with an absolute/external return
	// path. Rejected before any provider call.
	KindInvalidReturnPath Kind = "invalid_return_path"

	// KindBackendAuth: the backend enrichment endpoint answered non-2xx.
	KindBackendAuth Kind = "backend_auth_error"

	// KindTokenVerification: the backend JWT failed signature or expiry
	// verification.
	KindTokenVerification Kind = "token_verification_error"

	// KindPartitionKeyMissing: an account entity without a home account id
	// reached the partition strategy.
	KindPartitionKeyMissing Kind = "partition_key_missing"
)

// Error is the package's error type. Message is safe to show a user; Detail
// and the wrapped cause are for logs only.
type Error struct {
	Kind    Kind
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two auth errors by Kind, so callers can write
// errors.Is(err, &auth.Error{Kind: auth.KindCallback}).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// WithDetail returns a copy carrying extra diagnostic detail.
func (e *Error) WithDetail(detail string) *Error {
	cp := *e
	cp.Detail = detail
	return &cp
}

// NewError creates an auth error.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates an auth error wrapping a cause.
func WrapError(err error, kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the Kind from an error chain. ok is false when the chain
// has no auth error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
