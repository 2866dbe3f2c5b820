package notifications

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/thocc/newsrelay/internal/notifications/telegram"
)

// Outcome classifies one delivery attempt.
type Outcome int

// Delivery outcomes.
const (
	Delivered Outcome = iota
	RetryableFailure
	NonRetryableFailure
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case RetryableFailure:
		return "retryable"
	case NonRetryableFailure:
		return "non_retryable"
	default:
		return "unknown"
	}
}

// RetryPolicy is the single classification and retry configuration used by
// every send path.
type RetryPolicy struct {
	MaxAttempts          int
	RetryInterval        time.Duration
	RetryableStatusFloor int
	RetryableBodyMarkers []string
}

// DefaultRetryPolicy returns the production retry settings.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:          5,
		RetryInterval:        15 * time.Minute,
		RetryableStatusFloor: 500,
		RetryableBodyMarkers: []string{
			"WEBPAGE_MEDIA_EMPTY",
			"WEBPAGE_CURL_FAILED",
			"Failed to get HTTP URL content",
		},
	}
}

// Classify maps a send error to an outcome.
//
// API errors are retryable when the status is at or above the floor, or when
// a 400 body contains one of the transient markers. Transport timeouts and
// dropped connections are retryable. Everything else is not.
func (p RetryPolicy) Classify(err error) Outcome {
	if err == nil {
		return Delivered
	}

	var apiErr *telegram.APIError
	if errors.As(err, &apiErr) {
		if p.RetryableStatusFloor > 0 && apiErr.StatusCode >= p.RetryableStatusFloor {
			return RetryableFailure
		}
		if apiErr.StatusCode == 400 && p.hasMarker(apiErr.Body) {
			return RetryableFailure
		}
		return NonRetryableFailure
	}

	if isTransient(err) {
		return RetryableFailure
	}
	return NonRetryableFailure
}

func (p RetryPolicy) hasMarker(body string) bool {
	body = strings.ToLower(body)
	for _, m := range p.RetryableBodyMarkers {
		if m != "" && strings.Contains(body, strings.ToLower(m)) {
			return true
		}
	}
	return false
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.EOF)
}
