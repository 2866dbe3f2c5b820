package notifications

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thocc/newsrelay/internal/domain"
	"github.com/thocc/newsrelay/internal/notifications/telegram"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestDispatcher(sender Sender) *Dispatcher {
	d := NewDispatcher(sender, "-100500", DefaultRetryPolicy(), NewRetryQueue())
	d.now = func() time.Time { return testNow }
	return d
}

func photoItem(photos ...string) domain.CandidateItem {
	return domain.CandidateItem{
		DisplayName:  "Keyboard",
		OriginalName: "键盘",
		Link:         "https://www.zfrontier.com/app/flow/1",
		SourceID:     domain.SourceZFrontier,
		PhotoURLs:    photos,
	}
}

func mediaFetchError() error {
	return &telegram.APIError{
		Method:      "sendPhoto",
		StatusCode:  400,
		Description: "Bad Request: Failed to get HTTP URL content",
		Body:        `{"ok":false,"error_code":400,"description":"Failed to get HTTP URL content"}`,
	}
}

func TestDispatcher_Notify_Text(t *testing.T) {
	sender := newFakeSender()
	d := newTestDispatcher(sender)

	outcome := d.Notify(context.Background(), photoItem(), false)

	assert.Equal(t, Delivered, outcome)
	calls := sender.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sendMessage", calls[0].Method)
	assert.Equal(t, "-100500", calls[0].ChatID)
	assert.Equal(t, "[ZF] Keyboard - https://www.zfrontier.com/app/flow/1", calls[0].Text)
	assert.Empty(t, sender.pinned)
	assert.Zero(t, d.Queue().Len())
}

func TestDispatcher_Notify_PinsDeliveredMessage(t *testing.T) {
	sender := newFakeSender()
	d := newTestDispatcher(sender)

	item := domain.CandidateItem{DisplayName: "[IC] Board", Link: "https://geekhack.org/t/1", SourceID: domain.SourceGeekhack}
	outcome := d.Notify(context.Background(), item, true)

	assert.Equal(t, Delivered, outcome)
	assert.Equal(t, []int64{1}, sender.pinned)
}

func TestDispatcher_Notify_PinFailureIsIgnored(t *testing.T) {
	sender := newFakeSender()
	sender.failWith("pinChatMessage", &telegram.APIError{StatusCode: 400, Body: "not enough rights"})
	d := newTestDispatcher(sender)

	outcome := d.Notify(context.Background(), photoItem(), true)

	assert.Equal(t, Delivered, outcome)
	assert.Equal(t, 1, sender.count("sendMessage"))
	assert.Zero(t, d.Queue().Len())
}

func TestDispatcher_Notify_SinglePhoto(t *testing.T) {
	sender := newFakeSender()
	d := newTestDispatcher(sender)

	outcome := d.Notify(context.Background(), photoItem("https://img.example/1.jpg"), false)

	assert.Equal(t, Delivered, outcome)
	calls := sender.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sendPhoto", calls[0].Method)
	assert.Equal(t, []string{"https://img.example/1.jpg"}, calls[0].Photos)
	assert.Equal(t, "[ZF] Keyboard - https://www.zfrontier.com/app/flow/1", calls[0].Caption)
}

func TestDispatcher_Notify_Album(t *testing.T) {
	sender := newFakeSender()
	d := newTestDispatcher(sender)

	outcome := d.Notify(context.Background(), photoItem("https://img.example/1.jpg", "https://img.example/2.jpg"), false)

	assert.Equal(t, Delivered, outcome)
	calls := sender.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sendMediaGroup", calls[0].Method)
	assert.Len(t, calls[0].Photos, 2)
	assert.Contains(t, calls[0].Caption, "[ZF] Keyboard")
}

func TestDispatcher_Notify_InvalidPhotoDemotesToSinglePhoto(t *testing.T) {
	sender := newFakeSender()
	d := newTestDispatcher(sender)

	d.Notify(context.Background(), photoItem("https://img.example/1.jpg", "not a url"), false)

	calls := sender.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "sendPhoto", calls[0].Method)
}

func TestDispatcher_Notify_CaptionTruncated(t *testing.T) {
	sender := newFakeSender()
	d := newTestDispatcher(sender)

	item := photoItem("https://img.example/1.jpg")
	item.DisplayName = strings.Repeat("й", 2000)
	d.Notify(context.Background(), item, false)

	calls := sender.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, MaxCaptionLength, len([]rune(calls[0].Caption)))
}

func TestDispatcher_Notify_RetryableFailureQueuesJob(t *testing.T) {
	sender := newFakeSender()
	sender.failWith("sendPhoto", mediaFetchError())
	d := newTestDispatcher(sender)

	outcome := d.Notify(context.Background(), photoItem("https://img.example/1.jpg"), false)

	assert.Equal(t, RetryableFailure, outcome)
	jobs := d.Queue().Snapshot()
	require.Len(t, jobs, 1)
	assert.Equal(t, 1, jobs[0].Attempts)
	assert.Equal(t, 5, jobs[0].MaxAttempts)
	assert.Equal(t, ModeSinglePhoto, jobs[0].Mode)
	assert.Equal(t, testNow, jobs[0].LastAttemptAt)
	assert.Zero(t, sender.count("sendMessage"), "no fallback while retries remain")
}

func TestDispatcher_Notify_NonRetryableSendsFallback(t *testing.T) {
	sender := newFakeSender()
	sender.failWith("sendMediaGroup", &telegram.APIError{StatusCode: 400, Body: `{"description":"Bad Request: wrong file identifier"}`})
	d := newTestDispatcher(sender)

	outcome := d.Notify(context.Background(), photoItem("https://img.example/1.jpg", "https://img.example/2.jpg"), false)

	assert.Equal(t, NonRetryableFailure, outcome)
	assert.Zero(t, d.Queue().Len())
	calls := sender.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "sendMessage", calls[1].Method)
	assert.Equal(t, "[ZF] Keyboard - https://www.zfrontier.com/app/flow/1", calls[1].Text)
}

func TestDispatcher_Notify_UnexpectedErrorSendsOneFallback(t *testing.T) {
	sender := newFakeSender()
	sender.failWith("sendPhoto", errors.New("encode request: boom"))
	d := newTestDispatcher(sender)

	outcome := d.Notify(context.Background(), photoItem("https://img.example/1.jpg"), false)

	assert.Equal(t, NonRetryableFailure, outcome)
	assert.Equal(t, 1, sender.count("sendMessage"))
	assert.Zero(t, d.Queue().Len())
}

func TestDispatcher_Notify_SingleAttemptPolicyFallsBack(t *testing.T) {
	sender := newFakeSender()
	sender.failWith("sendPhoto", mediaFetchError())
	policy := DefaultRetryPolicy()
	policy.MaxAttempts = 1
	d := NewDispatcher(sender, "-1", policy, NewRetryQueue())

	outcome := d.Notify(context.Background(), photoItem("https://img.example/1.jpg"), false)

	assert.Equal(t, RetryableFailure, outcome)
	assert.Zero(t, d.Queue().Len())
	assert.Equal(t, 1, sender.count("sendMessage"))
}

func TestDispatcher_Retry_Success(t *testing.T) {
	sender := newFakeSender()
	d := newTestDispatcher(sender)
	job := Render("-1", photoItem("https://img.example/1.jpg"), false, 5)
	job.Attempts = 2

	outcome := d.Retry(context.Background(), job)

	assert.Equal(t, Delivered, outcome)
	assert.Equal(t, 2, job.Attempts)
	assert.Zero(t, d.Queue().Len())
	assert.Equal(t, 1, sender.count("sendPhoto"))
}

func TestDispatcher_Retry_RetryableRequeues(t *testing.T) {
	sender := newFakeSender()
	sender.failWith("sendPhoto", &telegram.APIError{StatusCode: 502})
	d := newTestDispatcher(sender)
	job := Render("-1", photoItem("https://img.example/1.jpg"), false, 5)
	job.Attempts = 2

	outcome := d.Retry(context.Background(), job)

	assert.Equal(t, RetryableFailure, outcome)
	jobs := d.Queue().Snapshot()
	require.Len(t, jobs, 1)
	assert.Equal(t, 3, jobs[0].Attempts)
	assert.Equal(t, testNow, jobs[0].LastAttemptAt)
	assert.Zero(t, sender.count("sendMessage"))
}

func TestDispatcher_Retry_ExhaustedSendsFallbackAndDrops(t *testing.T) {
	sender := newFakeSender()
	sender.failWith("sendPhoto", mediaFetchError())
	d := newTestDispatcher(sender)
	job := Render("-1", photoItem("https://img.example/1.jpg"), false, 5)
	job.Attempts = 4

	outcome := d.Retry(context.Background(), job)

	assert.Equal(t, RetryableFailure, outcome)
	assert.Equal(t, 5, job.Attempts)
	assert.Zero(t, d.Queue().Len())
	assert.Equal(t, 1, sender.count("sendMessage"))
}

func TestDispatcher_Retry_NonRetryableSendsFallback(t *testing.T) {
	sender := newFakeSender()
	sender.failWith("sendPhoto", &telegram.APIError{StatusCode: 403, Body: "bot was kicked"})
	d := newTestDispatcher(sender)
	job := Render("-1", photoItem("https://img.example/1.jpg"), false, 5)
	job.Attempts = 1

	outcome := d.Retry(context.Background(), job)

	assert.Equal(t, NonRetryableFailure, outcome)
	assert.Zero(t, d.Queue().Len())
	assert.Equal(t, 1, sender.count("sendMessage"))
}

func TestDispatcher_FallbackFailureDropsJob(t *testing.T) {
	sender := newFakeSender()
	sender.failWith("sendPhoto", &telegram.APIError{StatusCode: 400, Body: "bad"})
	sender.failWith("sendMessage", &telegram.APIError{StatusCode: 500})
	d := newTestDispatcher(sender)

	outcome := d.Notify(context.Background(), photoItem("https://img.example/1.jpg"), false)

	assert.Equal(t, NonRetryableFailure, outcome)
	assert.Zero(t, d.Queue().Len())
	assert.Equal(t, 1, sender.count("sendMessage"))
}

func TestDispatcher_Announce(t *testing.T) {
	sender := newFakeSender()
	d := newTestDispatcher(sender)

	d.Announce(context.Background(), domain.CandidateItem{DisplayName: "Manual", Link: "https://x.example", SourceID: domain.SourceOther})

	calls := sender.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "[Other] Manual - https://x.example", calls[0].Text)
	assert.Empty(t, sender.pinned)
}
