package clients

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Upstream failure classes. Handlers map these onto 503/504/502 the same way
// for every stage service.
var (
	// ErrServiceUnavailable indicates the service could not be reached.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrServiceTimeout indicates the request exceeded its stage timeout.
	ErrServiceTimeout = errors.New("service timed out")

	// ErrBadResponse indicates the service answered with a non-200 status or
	// an unparseable body.
	ErrBadResponse = errors.New("service returned bad response")
)

// classifyTransportErr wraps a transport-level error from http.Client.Do with
// the matching failure class and the URL that was being called.
func classifyTransportErr(err error, url string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrServiceTimeout, url, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s: %v", ErrServiceTimeout, url, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", ErrServiceUnavailable, url, err)
}

// badStatusErr wraps a non-200 reply, keeping the status and a body excerpt.
func badStatusErr(url string, status int, body []byte) error {
	const maxExcerpt = 200
	if len(body) > maxExcerpt {
		body = body[:maxExcerpt]
	}
	return fmt.Errorf("%w: %s returned status %d: %s", ErrBadResponse, url, status, body)
}
