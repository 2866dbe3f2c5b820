// Package telegram is a minimal Telegram Bot API client.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultAPIURL    = "https://api.telegram.org"
	defaultRateLimit = 1.0
	defaultTimeout   = 30 * time.Second

	// maxErrorBody bounds how much of a failed response is kept on APIError.
	maxErrorBody = 4096

	// maxRetryAfter caps how long a flood-control answer can hold the client.
	maxRetryAfter = time.Minute
)

// Config holds client configuration.
type Config struct {
	APIURL    string
	BotToken  string
	RateLimit float64 // requests per second
	Timeout   time.Duration
}

// Client calls the Bot API. It is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string

	mu        sync.Mutex
	holdUntil time.Time
}

// NewClient creates a new client.
func NewClient(config Config) (*Client, error) {
	if config.BotToken == "" {
		return nil, errors.New("telegram: bot token is required")
	}
	if config.APIURL == "" {
		config.APIURL = defaultAPIURL
	}
	if config.RateLimit <= 0 {
		config.RateLimit = defaultRateLimit
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}

	slog.Info("telegram client configured",
		"api_url", config.APIURL,
		"rate_limit", config.RateLimit,
		"timeout", config.Timeout,
	)

	return &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		baseURL:    strings.TrimRight(config.APIURL, "/") + "/bot" + config.BotToken,
	}, nil
}

// Message is the subset of a sent message the service uses.
type Message struct {
	MessageID int64 `json:"message_id"`
}

// InputMediaPhoto is one element of a media group.
type InputMediaPhoto struct {
	Type    string `json:"type"`
	Media   string `json:"media"`
	Caption string `json:"caption,omitempty"`
}

// NewInputMediaPhoto builds a photo element.
func NewInputMediaPhoto(url, caption string) InputMediaPhoto {
	return InputMediaPhoto{Type: "photo", Media: url, Caption: caption}
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendPhotoRequest struct {
	ChatID  string `json:"chat_id"`
	Photo   string `json:"photo"`
	Caption string `json:"caption,omitempty"`
}

type sendMediaGroupRequest struct {
	ChatID string            `json:"chat_id"`
	Media  []InputMediaPhoto `json:"media"`
}

type pinChatMessageRequest struct {
	ChatID              string `json:"chat_id"`
	MessageID           int64  `json:"message_id"`
	DisableNotification bool   `json:"disable_notification"`
}

type response struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
}

// SendMessage sends a plain text message.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) (Message, error) {
	var msg Message
	err := c.call(ctx, "sendMessage", sendMessageRequest{ChatID: chatID, Text: text}, &msg)
	return msg, err
}

// SendPhoto sends one photo by URL.
func (c *Client) SendPhoto(ctx context.Context, chatID, photoURL, caption string) (Message, error) {
	var msg Message
	err := c.call(ctx, "sendPhoto", sendPhotoRequest{ChatID: chatID, Photo: photoURL, Caption: caption}, &msg)
	return msg, err
}

// SendMediaGroup sends an album of 2 to 10 photos.
func (c *Client) SendMediaGroup(ctx context.Context, chatID string, media []InputMediaPhoto) ([]Message, error) {
	var msgs []Message
	err := c.call(ctx, "sendMediaGroup", sendMediaGroupRequest{ChatID: chatID, Media: media}, &msgs)
	return msgs, err
}

// PinChatMessage pins a message in the chat.
func (c *Client) PinChatMessage(ctx context.Context, chatID string, messageID int64, silent bool) error {
	return c.call(ctx, "pinChatMessage", pinChatMessageRequest{
		ChatID:              chatID,
		MessageID:           messageID,
		DisableNotification: silent,
	}, nil)
}

func (c *Client) call(ctx context.Context, method string, payload, result any) error {
	if err := c.waitHold(ctx); err != nil {
		return fmt.Errorf("telegram %s: flood wait: %w", method, err)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram %s: rate limiter: %w", method, err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram %s: marshal request: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram %s: create request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("telegram %s: read response: %w", method, err)
	}

	var envelope response
	decodeErr := json.Unmarshal(raw, &envelope)

	if resp.StatusCode != http.StatusOK || decodeErr != nil || !envelope.OK {
		apiErr := newAPIError(method, resp.StatusCode, envelope, raw)
		if apiErr.RetryAfter > 0 {
			c.hold(apiErr.RetryAfter)
		}
		return apiErr
	}

	if result != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, result); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}

// hold pauses every call until d has passed. The Bot API answers 429 with
// retry_after when the bot exceeds flood limits.
func (c *Client) hold(d time.Duration) {
	d = min(d, maxRetryAfter)
	until := time.Now().Add(d)

	c.mu.Lock()
	defer c.mu.Unlock()
	if until.After(c.holdUntil) {
		c.holdUntil = until
		slog.Warn("telegram: flood control, holding sends", "retry_after", d)
	}
}

func (c *Client) waitHold(ctx context.Context) error {
	c.mu.Lock()
	wait := time.Until(c.holdUntil)
	c.mu.Unlock()
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// APIError is a non-OK answer from the Bot API. Body holds the raw response
// so callers can look for provider-specific markers.
type APIError struct {
	Method      string
	StatusCode  int
	Description string
	Body        string
	// RetryAfter is the flood-control pause requested by the API. The client
	// honors it before its next call.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	desc := e.Description
	if desc == "" {
		desc = e.Body
	}
	return fmt.Sprintf("telegram %s: status %d: %s", e.Method, e.StatusCode, desc)
}

func newAPIError(method string, status int, envelope response, raw []byte) *APIError {
	if len(raw) > maxErrorBody {
		raw = raw[:maxErrorBody]
	}
	e := &APIError{
		Method:      method,
		StatusCode:  status,
		Description: envelope.Description,
		Body:        string(raw),
	}
	if envelope.Parameters != nil && envelope.Parameters.RetryAfter > 0 {
		e.RetryAfter = time.Duration(envelope.Parameters.RetryAfter) * time.Second
	}
	return e
}
