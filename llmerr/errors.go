// Package llmerr defines the typed error taxonomy shared by every package
// in the provider-dispatch runtime. Errors are values, never bare strings:
// callers match on kind with errors.As/errors.Is rather than parsing
// messages.
package llmerr

import (
	"errors"
	"fmt"
)

// Sentinel kinds usable with errors.Is.
var (
	ErrUnknownProvider = errors.New("unknown provider")
	ErrUnknownModel    = errors.New("unknown model")
	ErrNoProviders     = errors.New("no providers registered")
)

// AuthError reports that no credential could be resolved for a provider.
type AuthError struct {
	ProviderName string
	Hint         string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error for provider %q: %s", e.ProviderName, e.Hint)
}

// ConfigError reports a malformed settings file or an unknown settings key.
type ConfigError struct {
	Key     string
	Message string
}

func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error: %s (key=%s)", e.Message, e.Key)
	}
	return "config error: " + e.Message
}

// InputError reports an invalid argument surfaced directly to the caller.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return "invalid input: " + e.Message }

// TurnLimitError reports that a session exceeded its per-session turn cap.
type TurnLimitError struct {
	Limit int
}

func (e *TurnLimitError) Error() string {
	return fmt.Sprintf("turn limit exceeded: limit=%d", e.Limit)
}

// ToolDisabledError reports that a tool name is disabled by settings.
type ToolDisabledError struct {
	ToolName string
}

func (e *ToolDisabledError) Error() string {
	return fmt.Sprintf("tool %q is disabled", e.ToolName)
}

// ApiError wraps an upstream HTTP failure. RetryAfter carries the raw
// header value, if the response sent one, so the retry package's
// RetryAfterFromError can honor it without this package depending on
// retry (which would cycle).
type ApiError struct {
	Provider   string
	Status     int
	Message    string
	RetryAfter string
	Cause      error
}

func (e *ApiError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: api error %d: %s: %v", e.Provider, e.Status, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: api error %d: %s", e.Provider, e.Status, e.Message)
}

func (e *ApiError) Unwrap() error { return e.Cause }

// StatusCode and RetryAfterHeader implement retry.RetryAfterHeaderSource.
func (e *ApiError) StatusCode() int          { return e.Status }
func (e *ApiError) RetryAfterHeader() string { return e.RetryAfter }

// StreamInterruptedCode is the machine-readable code carried by
// StreamInterruptionError.
const StreamInterruptedCode = "LLXPRT_STREAM_INTERRUPTED"

// StreamInterruptionError reports a mid-body disconnect of a streaming
// response. It always classifies as transient (see retry.IsTransient) so
// that the whole call is retried by the outer retry boundary.
type StreamInterruptionError struct {
	Details string
	Cause   error
}

func (e *StreamInterruptionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("stream interrupted (%s): %s: %v", StreamInterruptedCode, e.Details, e.Cause)
	}
	return fmt.Sprintf("stream interrupted (%s): %s", StreamInterruptedCode, e.Details)
}

func (e *StreamInterruptionError) Unwrap() error { return e.Cause }

// Code returns the machine-readable code for this error.
func (e *StreamInterruptionError) Code() string { return StreamInterruptedCode }

// MissingProviderRuntimeError is fatal: it indicates that a RuntimeContext
// could not be snapshotted because required settings or config fields were
// absent.
type MissingProviderRuntimeError struct {
	ProviderKey   string
	MissingFields []string
	Stage         string
	Metadata      map[string]any
}

func (e *MissingProviderRuntimeError) Error() string {
	return fmt.Sprintf("missing provider runtime fields %v for %q at stage %q", e.MissingFields, e.ProviderKey, e.Stage)
}

// ProfileError reports a missing or malformed persisted profile. It always
// carries the profile name so the message identifies which file on disk
// was at fault.
type ProfileError struct {
	Name    string
	Message string
	Cause   error
}

func (e *ProfileError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("profile %q: %s: %v", e.Name, e.Message, e.Cause)
	}
	return fmt.Sprintf("profile %q: %s", e.Name, e.Message)
}

func (e *ProfileError) Unwrap() error { return e.Cause }

// UnhandledError wraps a lower-level cause that does not fit any other kind.
type UnhandledError struct {
	Cause error
}

func (e *UnhandledError) Error() string { return "unhandled error: " + e.Cause.Error() }

func (e *UnhandledError) Unwrap() error { return e.Cause }

// ExitCode maps an error's kind to the process-level exit code a CLI
// caller should use. Kinds not named here return 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return 41
	}
	var inputErr *InputError
	if errors.As(err, &inputErr) {
		return 42
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return 52
	}
	var turnErr *TurnLimitError
	if errors.As(err, &turnErr) {
		return 53
	}
	return 1
}
