package tclsdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ============================================================================
// Authentication errors
// ============================================================================

const (
	// ErrorCodeInvalidCredentials: the account rejected the email/password
	// digest. User-correctable; retrying the same credentials cannot help.
	ErrorCodeInvalidCredentials = "invalid_credentials"

	// ErrorCodeTokenExchangeFailed: the SSO token could not be exchanged for
	// the SaaS/Cognito pair.
	ErrorCodeTokenExchangeFailed = "token_exchange_failed"

	// ErrorCodeIdentityPoolRejected: the identity pool refused to mint
	// temporary AWS credentials for the Cognito token.
	ErrorCodeIdentityPoolRejected = "identity_pool_rejected"

	// ErrorCodeReauthenticationRequired: refresh needed a full login but the
	// password digest is no longer held in memory.
	ErrorCodeReauthenticationRequired = "reauthentication_required"

	// ErrorCodeStaleCredentials: an endpoint rejected a presented token that
	// the store still considered valid. A refresh usually clears it.
	ErrorCodeStaleCredentials = "stale_credentials"
)

// AuthError reports a terminal failure of the login or refresh pipeline,
// tagged by the step that failed. No partial session ever accompanies one.
type AuthError struct {
	Code        string
	Description string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Is allows matching against the predefined sentinel values with errors.Is,
// comparing by code so wrapped and reconstructed errors still match.
func (e *AuthError) Is(target error) bool {
	var other *AuthError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

var (
	// ErrInvalidCredentials is the sentinel for ErrorCodeInvalidCredentials.
	ErrInvalidCredentials = &AuthError{
		Code:        ErrorCodeInvalidCredentials,
		Description: "the account rejected the supplied credentials",
	}

	// ErrTokenExchangeFailed is the sentinel for ErrorCodeTokenExchangeFailed.
	ErrTokenExchangeFailed = &AuthError{
		Code:        ErrorCodeTokenExchangeFailed,
		Description: "token exchange was rejected",
	}

	// ErrIdentityPoolRejected is the sentinel for ErrorCodeIdentityPoolRejected.
	ErrIdentityPoolRejected = &AuthError{
		Code:        ErrorCodeIdentityPoolRejected,
		Description: "the identity pool rejected the credential request",
	}

	// ErrReauthenticationRequired is the sentinel for
	// ErrorCodeReauthenticationRequired.
	ErrReauthenticationRequired = &AuthError{
		Code:        ErrorCodeReauthenticationRequired,
		Description: "a full login is required but no password digest is retained",
	}

	// ErrStaleCredentials is the sentinel for ErrorCodeStaleCredentials.
	ErrStaleCredentials = &AuthError{
		Code:        ErrorCodeStaleCredentials,
		Description: "the cloud rejected a presented token as stale",
	}
)

// newAuthError builds an AuthError with a step-specific description. The
// description must never contain token or password material.
func newAuthError(code, description string) *AuthError {
	return &AuthError{Code: code, Description: description}
}

// ============================================================================
// Network errors
// ============================================================================

// NetworkError reports a transient transport-level failure: a timeout or an
// unreachable/unhealthy endpoint. These are the only errors the bounded
// retry policy applies to.
type NetworkError struct {
	Op      string // which call failed, e.g. "account_login"
	Timeout bool
	Err     error
}

func (e *NetworkError) Error() string {
	kind := "unreachable"
	if e.Timeout {
		kind = "timeout"
	}
	return fmt.Sprintf("network %s during %s: %v", kind, e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// isTransient reports whether err should be retried under the backoff policy.
func isTransient(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// classifyTransportError wraps a failed http.Client.Do error as a
// NetworkError, distinguishing timeouts (including context deadlines) from
// unreachable endpoints. Caller-initiated cancellation passes through
// untouched so it is never retried.
func classifyTransportError(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	timeout := errors.Is(err, context.DeadlineExceeded)
	var tErr interface{ Timeout() bool }
	if errors.As(err, &tErr) && tErr.Timeout() {
		timeout = true
	}

	return &NetworkError{Op: op, Timeout: timeout, Err: err}
}

// ============================================================================
// Directory errors
// ============================================================================

const (
	// ErrorCodeSessionUnavailable: no authenticated session could be produced
	// within the directory's wait window.
	ErrorCodeSessionUnavailable = "session_unavailable"
)

// DirectoryError reports a device-directory failure.
type DirectoryError struct {
	Code        string
	Description string
}

func (e *DirectoryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

func (e *DirectoryError) Is(target error) bool {
	var other *DirectoryError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// ErrSessionUnavailable is the sentinel for ErrorCodeSessionUnavailable.
var ErrSessionUnavailable = &DirectoryError{
	Code:        ErrorCodeSessionUnavailable,
	Description: "no authenticated session available",
}

// ============================================================================
// Command errors
// ============================================================================

// CommandErrorKind classifies a broker rejection of a dispatched command.
type CommandErrorKind string

const (
	CommandErrorDeviceOffline    CommandErrorKind = "device_offline"
	CommandErrorUnauthorized     CommandErrorKind = "unauthorized"
	CommandErrorThrottled        CommandErrorKind = "throttled"
	CommandErrorMalformedPayload CommandErrorKind = "malformed_payload"
)

// CommandError carries a broker rejection alongside the HTTP status that
// produced it. Only Unauthorized triggers a (single) refresh-and-retry; the
// other kinds describe device- or payload-level conditions a retry cannot fix.
type CommandError struct {
	Kind       CommandErrorKind
	StatusCode int
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("command rejected (%s): HTTP %d", e.Kind, e.StatusCode)
}

// classifyBrokerStatus maps a broker HTTP status to a rejection kind. The IoT
// HTTP bridge answers with status codes rather than a structured ack body.
func classifyBrokerStatus(status int) (CommandErrorKind, bool) {
	switch {
	case status >= 200 && status < 300:
		return "", false
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return CommandErrorUnauthorized, true
	case status == http.StatusNotFound || status == http.StatusGone:
		return CommandErrorDeviceOffline, true
	case status == http.StatusTooManyRequests:
		return CommandErrorThrottled, true
	default:
		return CommandErrorMalformedPayload, true
	}
}
