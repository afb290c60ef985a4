// Package apperr defines the error taxonomy shared by all domain services.
// Handlers translate these sentinels to HTTP statuses; services wrap them
// with context via fmt.Errorf("...: %w", err).
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrPermissionDenied means a role or capability check failed. It is
	// raised before any write reaches the store and is never retried.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrTenantNotReady means the caller has no tenant assigned yet.
	ErrTenantNotReady = errors.New("tenant not ready")

	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// ErrAdminAlreadyExists aborts the bootstrap procedure when another
	// account already holds the admin role.
	ErrAdminAlreadyExists = errors.New("admin already exists")

	ErrCannotRemoveOwner = errors.New("cannot remove tenant owner")

	// ErrBootstrapFailed is the only error bootstrap shows callers. The
	// underlying cause is logged, never returned.
	ErrBootstrapFailed = errors.New("bootstrap failed")

	ErrValidation = errors.New("validation failed")

	// ErrStoreUnavailable marks transient store failures. Callers surface
	// it; nothing in this codebase retries automatically.
	ErrStoreUnavailable = errors.New("store unavailable")

	// Identity provider failures, translated from the auth backend.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrEmailInUse         = errors.New("email already in use")
	ErrWeakSecret         = errors.New("password too weak")
	ErrRateLimited        = errors.New("too many attempts")
)

// Validation returns a validation error carrying a caller-facing message.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Status maps an error to the HTTP status a handler should respond with.
// Unknown errors map to 500 so transient failures stay distinguishable
// from permission and validation failures.
func Status(err error) int {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrAdminAlreadyExists), errors.Is(err, ErrEmailInUse):
		return http.StatusConflict
	case errors.Is(err, ErrValidation), errors.Is(err, ErrWeakSecret), errors.Is(err, ErrCannotRemoveOwner):
		return http.StatusBadRequest
	case errors.Is(err, ErrTenantNotReady):
		return http.StatusPreconditionFailed
	case errors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAccountDisabled):
		return http.StatusForbidden
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
