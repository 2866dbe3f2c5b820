package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/thocc/newsrelay/internal/domain"
	"github.com/thocc/newsrelay/internal/notifications/telegram"
	"github.com/thocc/newsrelay/internal/pkg/ctxlog"
)

// Sender is the chat API used for delivery. *telegram.Client implements it.
type Sender interface {
	SendMessage(ctx context.Context, chatID, text string) (telegram.Message, error)
	SendPhoto(ctx context.Context, chatID, photoURL, caption string) (telegram.Message, error)
	SendMediaGroup(ctx context.Context, chatID string, media []telegram.InputMediaPhoto) ([]telegram.Message, error)
	PinChatMessage(ctx context.Context, chatID string, messageID int64, silent bool) error
}

// Dispatcher renders items, delivers them and routes failures through the
// retry policy.
type Dispatcher struct {
	sender Sender
	chatID string
	policy RetryPolicy
	queue  *RetryQueue
	now    func() time.Time
}

// NewDispatcher creates a dispatcher for a single target chat.
func NewDispatcher(sender Sender, chatID string, policy RetryPolicy, queue *RetryQueue) *Dispatcher {
	return &Dispatcher{
		sender: sender,
		chatID: chatID,
		policy: policy,
		queue:  queue,
		now:    time.Now,
	}
}

// Queue returns the retry queue fed by this dispatcher.
func (d *Dispatcher) Queue() *RetryQueue {
	return d.queue
}

// Policy returns the retry policy.
func (d *Dispatcher) Policy() RetryPolicy {
	return d.policy
}

// Notify makes the first delivery attempt for item. A retryable failure
// queues the job; a non-retryable one sends the plain-text fallback.
func (d *Dispatcher) Notify(ctx context.Context, item domain.CandidateItem, pin bool) Outcome {
	job := Render(d.chatID, item, pin, d.policy.MaxAttempts)
	logger := ctxlog.FromContext(ctx)

	outcome, err := d.send(ctx, job)
	switch outcome {
	case Delivered:
		logger.Info("notification sent", "job_id", job.ID, "mode", job.Mode, "link", item.Link)
	case RetryableFailure:
		job.Attempts = 1
		job.LastAttemptAt = d.now()
		if job.Exhausted() {
			logger.Warn("notification failed, no retries configured",
				"job_id", job.ID, "mode", job.Mode, "error", err)
			d.fallback(ctx, job)
			break
		}
		logger.Warn("notification failed, queued for retry",
			"job_id", job.ID, "mode", job.Mode, "link", item.Link, "error", err)
		d.queue.Enqueue(job)
	case NonRetryableFailure:
		logger.Error("notification failed",
			"job_id", job.ID, "mode", job.Mode, "link", item.Link, "error", err)
		d.fallback(ctx, job)
	}
	return outcome
}

// Announce delivers item without pinning.
func (d *Dispatcher) Announce(ctx context.Context, item domain.CandidateItem) {
	d.Notify(ctx, item, false)
}

// Retry re-attempts a queued job. On a retryable failure the job goes back
// to the queue while attempts remain; otherwise the fallback is sent and the
// job is dropped.
func (d *Dispatcher) Retry(ctx context.Context, job *Job) Outcome {
	outcome, err := d.send(ctx, job)
	if outcome == Delivered {
		slog.Info("queued notification sent", "job_id", job.ID, "mode", job.Mode, "attempt", job.Attempts+1)
		return outcome
	}

	job.Attempts++
	job.LastAttemptAt = d.now()

	if outcome == RetryableFailure && !job.Exhausted() {
		slog.Warn("retry failed, requeued",
			"job_id", job.ID, "mode", job.Mode, "attempt", job.Attempts, "max_attempts", job.MaxAttempts, "error", err)
		d.queue.Enqueue(job)
		return outcome
	}

	slog.Error("retry failed, sending fallback",
		"job_id", job.ID, "mode", job.Mode, "attempt", job.Attempts, "outcome", outcome, "error", err)
	d.fallback(ctx, job)
	return outcome
}

func (d *Dispatcher) send(ctx context.Context, job *Job) (Outcome, error) {
	start := d.now()
	messageID, err := d.deliver(ctx, job)
	outcome := d.policy.Classify(err)
	recordAttempt(job.Mode, outcome, d.now().Sub(start))

	if outcome == Delivered && job.Pin && messageID != 0 {
		if err := d.sender.PinChatMessage(ctx, job.ChatID, messageID, true); err != nil {
			slog.Warn("failed to pin message", "job_id", job.ID, "message_id", messageID, "error", err)
		}
	}
	return outcome, err
}

// deliver issues the API call for the job's mode and returns the id of the
// first message sent.
func (d *Dispatcher) deliver(ctx context.Context, job *Job) (int64, error) {
	switch job.Mode {
	case ModeSinglePhoto:
		msg, err := d.sender.SendPhoto(ctx, job.ChatID, job.PhotoURLs[0], truncate(job.Caption, MaxCaptionLength))
		return msg.MessageID, err
	case ModeAlbum:
		media := make([]telegram.InputMediaPhoto, 0, len(job.PhotoURLs))
		for i, u := range job.PhotoURLs {
			caption := ""
			if i == 0 {
				caption = truncate(job.Caption, MaxCaptionLength)
			}
			media = append(media, telegram.NewInputMediaPhoto(u, caption))
		}
		msgs, err := d.sender.SendMediaGroup(ctx, job.ChatID, media)
		if err != nil || len(msgs) == 0 {
			return 0, err
		}
		return msgs[0].MessageID, nil
	case ModeText:
		msg, err := d.sender.SendMessage(ctx, job.ChatID, truncate(job.Caption, MaxTextLength))
		return msg.MessageID, err
	default:
		return 0, fmt.Errorf("unknown delivery mode %q", job.Mode)
	}
}

// fallback sends the caption as plain text exactly once.
func (d *Dispatcher) fallback(ctx context.Context, job *Job) {
	_, err := d.sender.SendMessage(ctx, job.ChatID, truncate(job.Caption, MaxTextLength))
	recordFallback(err)
	if err != nil {
		slog.Error("fallback send failed, dropping notification", "job_id", job.ID, "error", err)
		return
	}
	slog.Info("fallback text sent", "job_id", job.ID, "attempts", job.Attempts)
}
