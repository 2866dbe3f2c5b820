package notifications

import (
	"context"
	"sync"

	"github.com/thocc/newsrelay/internal/notifications/telegram"
)

type sentCall struct {
	Method  string
	ChatID  string
	Text    string
	Photos  []string
	Caption string
}

// fakeSender returns queued errors per method in order; once a method's
// queue is empty its calls succeed.
type fakeSender struct {
	mu     sync.Mutex
	calls  []sentCall
	errs   map[string][]error
	pinned []int64
	nextID int64
}

func newFakeSender() *fakeSender {
	return &fakeSender{errs: make(map[string][]error)}
}

func (f *fakeSender) failWith(method string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[method] = append(f.errs[method], errs...)
}

func (f *fakeSender) next(method string) error {
	queued := f.errs[method]
	if len(queued) == 0 {
		return nil
	}
	f.errs[method] = queued[1:]
	return queued[0]
}

func (f *fakeSender) SendMessage(_ context.Context, chatID, text string) (telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sentCall{Method: "sendMessage", ChatID: chatID, Text: text})
	if err := f.next("sendMessage"); err != nil {
		return telegram.Message{}, err
	}
	f.nextID++
	return telegram.Message{MessageID: f.nextID}, nil
}

func (f *fakeSender) SendPhoto(_ context.Context, chatID, photoURL, caption string) (telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, sentCall{Method: "sendPhoto", ChatID: chatID, Photos: []string{photoURL}, Caption: caption})
	if err := f.next("sendPhoto"); err != nil {
		return telegram.Message{}, err
	}
	f.nextID++
	return telegram.Message{MessageID: f.nextID}, nil
}

func (f *fakeSender) SendMediaGroup(_ context.Context, chatID string, media []telegram.InputMediaPhoto) ([]telegram.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := sentCall{Method: "sendMediaGroup", ChatID: chatID}
	for _, m := range media {
		call.Photos = append(call.Photos, m.Media)
	}
	if len(media) > 0 {
		call.Caption = media[0].Caption
	}
	f.calls = append(f.calls, call)

	if err := f.next("sendMediaGroup"); err != nil {
		return nil, err
	}
	msgs := make([]telegram.Message, 0, len(media))
	for range media {
		f.nextID++
		msgs = append(msgs, telegram.Message{MessageID: f.nextID})
	}
	return msgs, nil
}

func (f *fakeSender) PinChatMessage(_ context.Context, _ string, messageID int64, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.next("pinChatMessage"); err != nil {
		return err
	}
	f.pinned = append(f.pinned, messageID)
	return nil
}

func (f *fakeSender) Calls() []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentCall(nil), f.calls...)
}

func (f *fakeSender) count(method string) int {
	n := 0
	for _, c := range f.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}
