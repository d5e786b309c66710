// Package retry implements the backoff/jitter engine that sits under every
// HTTP call made by a provider adapter. It is grounded on the teacher's
// middleware.RetryMiddleware (exponential backoff over a Provider-shaped
// call) but operates one level lower: it wraps a single HTTP round trip
// (or a whole streaming attempt) rather than the public Provider interface,
// because the streaming state machine needs a retry boundary around the
// entire attempt, not around each chunk.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/llxprt/core/llmerr"
)

// Options configures a retry run. The zero value is not usable; use
// DefaultOptions to obtain sane defaults and override individual fields.
type Options struct {
	MaxAttempts    int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	JitterFraction float64 // fraction of delay randomized, e.g. 0.3 for ±30%

	// ShouldRetry overrides the default transient classification. Return
	// true to retry the attempt that produced err.
	ShouldRetry func(err error) bool

	// RetryAfter extracts a server-requested wait from err, if any. The
	// returned bool is false when no Retry-After is present.
	RetryAfter func(err error) (time.Duration, bool)

	// OnWait is invoked with every slept duration (Retry-After honored or
	// backoff), for session-level throttle-wait accumulation.
	OnWait func(d time.Duration)
}

// DefaultOptions returns the spec's defaults: 5 attempts, 5s initial delay,
// 30s max delay, ±30% jitter, the package's transient classifier.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:    5,
		InitialDelay:   5 * time.Second,
		MaxDelay:       30 * time.Second,
		JitterFraction: 0.3,
		ShouldRetry:    ShouldRetryDefault,
		RetryAfter:     RetryAfterFromError,
	}
}

// Do runs op until it succeeds, op's error is non-retryable, or attempts
// are exhausted. On exhaustion the last error is returned as-is (callers
// that want a wrapped "max retries exceeded" kind should wrap at the call
// site; the spec requires the final error to be re-raised unchanged).
func Do[T any](ctx context.Context, opts Options, op func(ctx context.Context, attempt int) (T, error)) (T, error) {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}
	if opts.ShouldRetry == nil {
		opts.ShouldRetry = ShouldRetryDefault
	}

	b := &backoff.ExponentialBackOff{
		InitialInterval:     opts.InitialDelay,
		RandomizationFactor: 0, // we jitter ourselves per the spec's formula
		Multiplier:          2,
		MaxInterval:         opts.MaxDelay,
		MaxElapsedTime:      0,
		Clock:               backoff.SystemClock,
	}
	b.Reset()

	var zero T
	var lastErr error

	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := nextDelay(b, opts, lastErr)
			if opts.OnWait != nil {
				opts.OnWait(delay)
			}
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
		}

		val, err := op(ctx, attempt)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if attempt == opts.MaxAttempts-1 || !opts.ShouldRetry(err) {
			return zero, err
		}
	}

	return zero, lastErr
}

// nextDelay picks the delay before the next attempt: Retry-After wins (and
// resets backoff progression), else exponential backoff with jitter.
func nextDelay(b *backoff.ExponentialBackOff, opts Options, lastErr error) time.Duration {
	if opts.RetryAfter != nil {
		if d, ok := opts.RetryAfter(lastErr); ok {
			b.Reset()
			if d < 0 {
				d = 0
			}
			return d
		}
	}

	base := b.NextBackOff()
	if base == backoff.Stop || base <= 0 {
		base = opts.InitialDelay
	}
	if base > opts.MaxDelay {
		base = opts.MaxDelay
	}

	frac := opts.JitterFraction
	if frac <= 0 {
		return base
	}
	// delay * frac * U(-1, 1)
	jitter := float64(base) * frac * (rand.Float64()*2 - 1)
	d := time.Duration(float64(base) + jitter)
	if d < 0 {
		d = 0
	}
	return d
}

// RetryAfterHeaderSource is implemented by errors that carry an upstream
// HTTP response, so RetryAfterFromError can inspect its Retry-After header.
type RetryAfterHeaderSource interface {
	RetryAfterHeader() string
	StatusCode() int
}

// RetryAfterFromError implements the §4.A delay-selection rule: honor
// Retry-After only on a 429 whose header parses as integer seconds or as
// an HTTP date.
func RetryAfterFromError(err error) (time.Duration, bool) {
	var src RetryAfterHeaderSource
	if !errors.As(err, &src) {
		return 0, false
	}
	if src.StatusCode() != http.StatusTooManyRequests {
		return 0, false
	}
	header := src.RetryAfterHeader()
	if header == "" {
		return 0, false
	}

	if secs, err := strconv.Atoi(strings.TrimSpace(header)); err == nil {
		if secs < 0 {
			secs = 0
		}
		return time.Duration(secs) * time.Second, true
	}

	if t, err := http.ParseTime(header); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return d, true
	}

	return 0, false
}

// --- transient classification (§4.A "Transient-network classification") ---

var transientPhrases = []string{
	"connection", "socket", "stream", "timeout", "fetch failed",
	"request aborted", "read econnreset", "write econnreset",
	"network is unreachable", "broken pipe",
}

var (
	reEconn       = regexp.MustCompile(`(?i)econn(reset|refused|aborted)`)
	reEtimedout   = regexp.MustCompile(`(?i)etimedout`)
	reUndErr      = regexp.MustCompile(`(?i)und_err_(socket|connect|headers_timeout|body_timeout)`)
	reTCPReset    = regexp.MustCompile(`(?i)tcp connection.*(reset|closed)`)
	reStatus5xx   = regexp.MustCompile(`5\d{2}`)
	transientCode = map[string]bool{
		"ECONNRESET": true, "ECONNREFUSED": true, "ECONNABORTED": true,
		"ENETUNREACH": true, "EHOSTUNREACH": true, "ETIMEDOUT": true,
		"EPIPE": true, "EAI_AGAIN": true,
	}
)

// causer is satisfied by errors exposing a Cause() error (a common
// alternate-spelling of Unwrap in this corpus).
type causer interface{ Cause() error }

// withOriginalError is satisfied by dynamically-shaped upstream SDK errors
// that expose an OriginalError() or InnerError() method instead of
// implementing Unwrap.
type withOriginalError interface{ OriginalError() error }
type withInner interface{ InnerError() error }

// classifiable exposes Code() for transient-code matching, in addition to
// errors.Unwrap-compatible chains.
type classifiable interface{ Code() string }

// IsTransient walks err, its Unwrap() chain, and the alternate nesting
// shapes the corpus uses (Cause(), OriginalError(), InnerError()), guarding
// against cycles with a visited-pointer set, and classifies the whole
// chain as transient if any node's message or code matches the fixed
// phrase/regex/code sets from the spec.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var sie *llmerr.StreamInterruptionError
	if errors.As(err, &sie) {
		return true
	}

	visited := map[error]bool{}
	var walk func(e error) bool
	walk = func(e error) bool {
		if e == nil || visited[e] {
			return false
		}
		visited[e] = true

		msg := strings.ToLower(e.Error())
		for _, phrase := range transientPhrases {
			if strings.Contains(msg, phrase) {
				return true
			}
		}
		if reEconn.MatchString(msg) || reEtimedout.MatchString(msg) ||
			reUndErr.MatchString(msg) || reTCPReset.MatchString(msg) {
			return true
		}

		if c, ok := e.(classifiable); ok {
			if transientCode[strings.ToUpper(c.Code())] {
				return true
			}
		}

		if next := errors.Unwrap(e); next != nil && walk(next) {
			return true
		}
		if c, ok := e.(causer); ok && walk(c.Cause()) {
			return true
		}
		if c, ok := e.(withOriginalError); ok && walk(c.OriginalError()) {
			return true
		}
		if c, ok := e.(withInner); ok && walk(c.InnerError()) {
			return true
		}
		return false
	}

	return walk(err)
}

// ShouldRetryDefault implements §4.A's default shouldRetry: 429/5xx status,
// a message containing "429" or matching /5\d{2}/, or transient-network
// classification.
func ShouldRetryDefault(err error) bool {
	if err == nil {
		return false
	}

	var src RetryAfterHeaderSource
	if errors.As(err, &src) {
		code := src.StatusCode()
		if code == http.StatusTooManyRequests || (code >= 500 && code < 600) {
			return true
		}
	}

	msg := err.Error()
	if strings.Contains(msg, "429") || reStatus5xx.MatchString(msg) {
		return true
	}

	return IsTransient(err)
}
