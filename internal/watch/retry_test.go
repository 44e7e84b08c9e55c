package watch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryTransientCauses(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(3)
	timeout := &FetchError{Cause: CauseTimeout, Err: context.DeadlineExceeded}
	conn := &FetchError{Cause: CauseConnection, Err: errors.New("connection refused")}

	require.True(t, p.ShouldRetry(timeout, 1))
	require.True(t, p.ShouldRetry(conn, 2))
	require.False(t, p.ShouldRetry(conn, 3), "attempt budget exhausted")
}

func TestRetryClientTimeoutWrappingDeadline(t *testing.T) {
	t.Parallel()

	// net/http client timeouts satisfy errors.Is(err, context.DeadlineExceeded);
	// the timeout cause must still win over the cancellation check.
	p := NewExponentialRetryPolicy(3)
	err := &FetchError{
		URL:   "https://example.test/page",
		Cause: CauseTimeout,
		Err: fmt.Errorf(
			"Get %q: %w (Client.Timeout exceeded while awaiting headers)",
			"https://example.test/page", context.DeadlineExceeded,
		),
	}
	require.True(t, p.ShouldRetry(err, 1))
	require.False(t, p.ShouldRetry(context.DeadlineExceeded, 1),
		"a bare deadline means the run context itself expired")
}

func TestRetryNeverRepeatsDefinitiveAnswers(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(3)
	httpErr := &FetchError{Cause: CauseHTTPStatus, StatusCode: 404}
	tlsErr := &FetchError{Cause: CauseTLS, Err: errors.New("certificate expired")}
	oversize := &FetchError{Cause: CauseOversize, Err: errors.New("body exceeds 1024 bytes")}

	require.False(t, p.ShouldRetry(httpErr, 1))
	require.False(t, p.ShouldRetry(tlsErr, 1))
	require.False(t, p.ShouldRetry(oversize, 1))
	require.False(t, p.ShouldRetry(nil, 1))
	require.False(t, p.ShouldRetry(context.Canceled, 1))
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(5)
	first := p.Backoff(0)
	require.Greater(t, first, time.Duration(0))
	// Late attempts stay under the cap plus jitter headroom.
	require.LessOrEqual(t, p.Backoff(10), 5*time.Second)
}
