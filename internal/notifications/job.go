// Package notifications delivers news items to the chat and retries
// transient delivery failures.
package notifications

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryMode is the chat API call used for a job.
type DeliveryMode string

// Delivery modes.
const (
	ModeText        DeliveryMode = "text"
	ModeSinglePhoto DeliveryMode = "single_photo"
	ModeAlbum       DeliveryMode = "album"
)

// Job is one rendered notification. A job enters the retry queue only after
// a retryable failure and leaves it on success, fallback or exhaustion.
type Job struct {
	ID            string
	ChatID        string
	Caption       string
	PhotoURLs     []string
	Mode          DeliveryMode
	Pin           bool
	Attempts      int
	MaxAttempts   int
	LastAttemptAt time.Time
}

func newJobID() string {
	return uuid.NewString()
}

// Eligible reports whether the retry interval has elapsed since the last
// attempt.
func (j *Job) Eligible(now time.Time, interval time.Duration) bool {
	return now.Sub(j.LastAttemptAt) >= interval
}

// Exhausted reports whether no further attempts are allowed.
func (j *Job) Exhausted() bool {
	return j.Attempts >= j.MaxAttempts
}
